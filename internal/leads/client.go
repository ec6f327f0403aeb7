package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production leads API endpoint.
const DefaultBaseURL = "https://tributario.falavinhanext.com.br/api/api/v1"

const maxErrorBody = 64 << 10

// ErrInvalidID is returned when an empty identifier is passed to the client.
var ErrInvalidID = errors.New("leads: identifier required")

// APIError is the single error kind surfaced by Client.
type APIError struct {
	Message string
	Status  int
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil && e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// API is the set of upstream operations the Store depends on.
type API interface {
	FetchAll(ctx context.Context) (ListResponse, error)
	SetActive(ctx context.Context, leadID string) (*Lead, error)
	AssignConsultant(ctx context.Context, leadID, consultantID string) (*Lead, error)
	Delete(ctx context.Context, leadID string) error
}

// Client talks to the upstream leads API over HTTP+JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a new client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll loads the complete lead collection.
func (c *Client) FetchAll(ctx context.Context) (ListResponse, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/leads/findAll", nil, &raw); err != nil {
		return ListResponse{}, wrap(err, "failed to fetch leads")
	}
	resp, err := decodeList(raw)
	if err != nil {
		return ListResponse{}, wrap(err, "failed to fetch leads")
	}
	return resp, nil
}

// SetActive asks the server to flip the active flag of a lead.
func (c *Client) SetActive(ctx context.Context, leadID string) (*Lead, error) {
	if leadID == "" {
		return nil, wrap(ErrInvalidID, "failed to update lead status")
	}
	var env Envelope[*Lead]
	if err := c.do(ctx, http.MethodPatch, "/leads/changeAtivo/"+url.PathEscape(leadID), nil, &env); err != nil {
		return nil, wrap(err, "failed to update lead status")
	}
	return env.Data, nil
}

// AssignConsultant sets the owning consultant of a lead.
func (c *Client) AssignConsultant(ctx context.Context, leadID, consultantID string) (*Lead, error) {
	if leadID == "" || consultantID == "" {
		return nil, wrap(ErrInvalidID, "failed to assign consultant")
	}
	body := map[string]string{"consultorId": consultantID}
	var env Envelope[*Lead]
	if err := c.do(ctx, http.MethodPatch, "/leads/"+url.PathEscape(leadID)+"/assign-consultor", body, &env); err != nil {
		return nil, wrap(err, "failed to assign consultant")
	}
	return env.Data, nil
}

// Delete removes a lead upstream. The response body is ignored.
func (c *Client) Delete(ctx context.Context, leadID string) error {
	if leadID == "" {
		return wrap(ErrInvalidID, "failed to delete lead")
	}
	if err := c.do(ctx, http.MethodDelete, "/leads/"+url.PathEscape(leadID), nil, nil); err != nil {
		return wrap(err, "failed to delete lead")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("leads api request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Debug("leads api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := "Unknown error"
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); readErr == nil {
			text = string(data)
		}
		return &APIError{Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text), Status: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeList accepts either {leads, total} or a bare array.
func decodeList(raw json.RawMessage) (ListResponse, error) {
	trimmed := bytes.TrimSpace(raw)
	var items []Lead
	total := 0
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return ListResponse{}, err
		}
	default:
		var obj struct {
			Leads []Lead `json:"leads"`
			Total int    `json:"total"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return ListResponse{}, err
		}
		items = obj.Leads
		total = obj.Total
	}
	if items == nil {
		items = []Lead{}
	}
	if total == 0 {
		total = len(items)
	}
	return ListResponse{Leads: items, Total: total, Page: 1, TotalPages: 1}, nil
}

func wrap(err error, message string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Message: message, Err: err}
}
