package leads

import (
	"strings"
	"time"
)

// Lead is a sales prospect as served by the upstream leads API.
type Lead struct {
	ID             string  `json:"id"`
	Name           string  `json:"nome"`
	Email          string  `json:"email"`
	Phone          *string `json:"telefone,omitempty"`
	AnnualRevenue  float64 `json:"faturamentoAnual"`
	Segment        string  `json:"segmento"`
	TaxRegime      string  `json:"regimeTributario"`
	TaxID          *string `json:"cnpj,omitempty"`
	Active         bool    `json:"ativo"`
	ConsultantID   *string `json:"consultorId,omitempty"`
	ConsultantName *string `json:"consultorNome,omitempty"`
	CreatedAt      string  `json:"dataCadastro"`
	UpdatedAt      *string `json:"dataAtualizacao,omitempty"`
}

// Consultant is a staff member who can own a lead.
type Consultant struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"nome" yaml:"nome"`
	Email  string `json:"email" yaml:"email"`
	Active bool   `json:"ativo" yaml:"ativo"`
}

// ListResponse wraps the full lead collection returned by FetchAll.
type ListResponse struct {
	Leads      []Lead `json:"leads"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

// Envelope is the upstream wrapper around mutation responses.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CreatedTime parses CreatedAt. Unparsable values yield the zero time.
func (l Lead) CreatedTime() time.Time {
	return parseTimestamp(l.CreatedAt)
}

// UpdatedTime parses UpdatedAt when present.
func (l Lead) UpdatedTime() time.Time {
	if l.UpdatedAt == nil {
		return time.Time{}
	}
	return parseTimestamp(*l.UpdatedAt)
}

// PhoneValue returns the phone or an empty string.
func (l Lead) PhoneValue() string {
	return deref(l.Phone)
}

// TaxIDValue returns the CNPJ or an empty string.
func (l Lead) TaxIDValue() string {
	return deref(l.TaxID)
}

// ConsultantIDValue returns the assigned consultant id or an empty string.
func (l Lead) ConsultantIDValue() string {
	return deref(l.ConsultantID)
}

// ConsultantNameValue returns the assigned consultant name or an empty string.
func (l Lead) ConsultantNameValue() string {
	return deref(l.ConsultantName)
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	return &s
}
