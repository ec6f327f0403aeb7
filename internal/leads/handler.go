package leads

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/leadboard/leadboard/internal/platform/httpx"
	"github.com/leadboard/leadboard/internal/shared"
	"github.com/leadboard/leadboard/internal/view"
)

const (
	basePath        = "/leads"
	defaultPageSize = 12
)

// PDFRenderer converts an HTML document into a PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler serves the lead dashboard pages and JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	templates *view.Engine
	csrf      *shared.CSRFManager
	pdf       PDFRenderer
	pageSize  int
	validator *validator.Validate
}

// NewHandler constructs a Handler. pdf may be nil to disable PDF export.
func NewHandler(
	logger *slog.Logger,
	store *Store,
	templates *view.Engine,
	csrf *shared.CSRFManager,
	pdf PDFRenderer,
	pageSize int,
) *Handler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		store:     store,
		templates: templates,
		csrf:      csrf,
		pdf:       pdf,
		pageSize:  pageSize,
		validator: validator.New(),
	}
}

type formErrors map[string]string

type cardView struct {
	Lead      Lead
	CSRFToken string
	ReturnTo  string
	Pending   bool
}

type listView struct {
	Term       string
	Pagination shared.Pagination
	Filtered   []Lead
	Page       []Lead
	Stats      Summary
	Count      int
	Loading    bool
	// LoadErr is set when the list has never been loaded from the API.
	LoadErr error
}

func (h *Handler) buildList(ctx context.Context, req ListLeadsRequest) listView {
	loadErr := h.ensureLoaded(ctx)
	snap := h.store.Snapshot()
	filtered := Filter(snap.Leads, req.Search)
	pagination := shared.NewPagination(req.Page, h.pageSize, len(filtered))
	count := snap.Total
	if req.Search != "" {
		count = len(filtered)
	}
	return listView{
		Term:       req.Search,
		Pagination: pagination,
		Filtered:   filtered,
		Page:       shared.Paginate(filtered, pagination),
		Stats:      Stats(filtered),
		Count:      count,
		Loading:    snap.Loading,
		LoadErr:    loadErr,
	}
}

// ensureLoaded triggers the first load and reports an error only while the
// Store still has nothing to serve.
func (h *Handler) ensureLoaded(ctx context.Context) error {
	err := h.store.EnsureLoaded(ctx)
	if err == nil {
		return nil
	}
	h.logger.Warn("initial lead load failed", slog.Any("error", err))
	if h.store.Snapshot().Loaded {
		return nil
	}
	return err
}

// List renders the lead grid with search and pagination.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := parseListRequest(r)
	lv := h.buildList(r.Context(), req)

	sess := shared.SessionFromContext(r.Context())
	token := h.csrf.Token(sess)
	returnTo := view.PageURL(basePath, lv.Term, lv.Pagination.Page)

	cards := make([]cardView, 0, len(lv.Page))
	for _, lead := range lv.Page {
		_, pending := h.store.Pending(lead.ID)
		cards = append(cards, cardView{Lead: lead, CSRFToken: token, ReturnTo: returnTo, Pending: pending})
	}

	h.render(w, r, http.StatusOK, "pages/leads_list.html", "Leads", map[string]any{
		"Query":    lv.Term,
		"Cards":    cards,
		"Stats":    lv.Stats,
		"Count":    lv.Count,
		"Loading":  lv.Loading,
		"Skeleton": make([]int, h.pageSize),
		"ReturnTo": returnTo,
		"Pagination": map[string]any{
			"Pager": shared.NewPager(lv.Pagination, lv.Loading),
			"Path":  basePath,
			"Query": lv.Term,
		},
	})
}

// Show renders the lead detail view.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	if err := h.store.EnsureLoaded(r.Context()); err != nil {
		h.logger.Warn("initial lead load failed", slog.Any("error", err))
	}
	id := chi.URLParam(r, "id")
	lead, ok := h.store.Select(id)
	if !ok {
		h.render(w, r, http.StatusNotFound, "pages/not_found.html", "Lead não encontrado", map[string]any{})
		return
	}
	h.renderDetail(w, r, http.StatusOK, lead, formErrors{})
}

func (h *Handler) renderDetail(w http.ResponseWriter, r *http.Request, status int, lead Lead, errs formErrors) {
	_, pending := h.store.Pending(lead.ID)
	h.render(w, r, status, "pages/lead_detail.html", lead.Name, map[string]any{
		"Lead":        lead,
		"Consultants": Active(h.store.Directory()),
		"Errors":      errs,
		"Pending":     pending,
		"ReturnTo":    safeReturn(r.FormValue("return_to"), basePath),
	})
}

// Refresh reloads the lead list from the API.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Refresh(r.Context()); err != nil {
		h.logger.Error("refresh leads failed", slog.Any("error", err))
	}
	http.Redirect(w, r, safeReturn(r.PostFormValue("return_to"), basePath), http.StatusSeeOther)
}

// Toggle flips the active flag of a lead.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.ToggleStatus(r.Context(), id); err != nil {
		h.logger.Error("toggle lead failed", slog.String("id", id), slog.Any("error", err))
	}
	http.Redirect(w, r, safeReturn(r.PostFormValue("return_to"), basePath), http.StatusSeeOther)
}

// Delete removes a lead after explicit confirmation.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	form := DeleteLeadRequest{Confirm: r.PostFormValue("confirm")}
	if err := h.validator.Struct(form); err != nil {
		http.Error(w, "Confirmation required", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteLead(r.Context(), id); err != nil {
		h.logger.Error("delete lead failed", slog.String("id", id), slog.Any("error", err))
	}
	target := safeReturn(r.PostFormValue("return_to"), basePath)
	if strings.HasPrefix(target, basePath+"/"+id) {
		target = basePath
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Assign sets the consultant responsible for a lead.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, ok := h.store.Lead(id)
	if !ok {
		h.render(w, r, http.StatusNotFound, "pages/not_found.html", "Lead não encontrado", map[string]any{})
		return
	}

	form := AssignConsultantRequest{ConsultantID: strings.TrimSpace(r.PostFormValue("consultant_id"))}
	if err := h.validator.Struct(form); err != nil {
		h.renderDetail(w, r, http.StatusBadRequest, lead, formErrors{"consultant_id": "Selecione um consultor."})
		return
	}

	if err := h.store.AssignConsultant(r.Context(), id, form.ConsultantID); err != nil {
		h.logger.Error("assign consultant failed", slog.String("id", id), slog.Any("error", err))
		if errors.Is(err, ErrUnknownConsultant) {
			h.renderDetail(w, r, http.StatusBadRequest, lead, formErrors{"consultant_id": "Consultor desconhecido."})
			return
		}
	}
	target := basePath + "/" + id
	if ret := safeReturn(r.PostFormValue("return_to"), ""); ret != "" {
		target += "?return_to=" + url.QueryEscape(ret)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ExportCSV streams the filtered view as CSV.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	lv := h.buildList(r.Context(), ListLeadsRequest{Search: r.URL.Query().Get("q")})

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write([]string{"id", "nome", "email", "telefone", "cnpj", "segmento", "regimeTributario", "faturamentoAnual", "ativo", "consultorId", "consultorNome", "dataCadastro"})
	for _, l := range lv.Filtered {
		_ = cw.Write([]string{
			l.ID, l.Name, l.Email, l.PhoneValue(), l.TaxIDValue(), l.Segment, l.TaxRegime,
			strconv.FormatFloat(l.AnnualRevenue, 'f', 2, 64), strconv.FormatBool(l.Active),
			l.ConsultantIDValue(), l.ConsultantNameValue(), l.CreatedAt,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("export csv failed", slog.Any("error", err))
		http.Error(w, "Failed to export leads", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.csv"`, time.Now().Format("20060102")))
	_, _ = buf.WriteTo(w)
}

// ExportPDF renders the filtered view and converts it to PDF.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		http.Error(w, "PDF export unavailable", http.StatusServiceUnavailable)
		return
	}
	lv := h.buildList(r.Context(), ListLeadsRequest{Search: r.URL.Query().Get("q")})

	var html bytes.Buffer
	if err := h.templates.Execute(&html, "pages/leads_export.html", map[string]any{
		"Query":       lv.Term,
		"Leads":       lv.Filtered,
		"Stats":       lv.Stats,
		"GeneratedAt": time.Now(),
	}); err != nil {
		h.logger.Error("render export template failed", slog.Any("error", err))
		http.Error(w, "Failed to export leads", http.StatusInternalServerError)
		return
	}

	pdf, err := h.pdf.RenderHTML(r.Context(), html.String())
	if err != nil {
		h.logger.Error("pdf export failed", slog.Any("error", err))
		http.Error(w, "Failed to export leads", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.pdf"`, time.Now().Format("20060102")))
	_, _ = w.Write(pdf)
}

// APIList returns one page of the filtered view as JSON.
func (h *Handler) APIList(w http.ResponseWriter, r *http.Request) {
	req := parseListRequest(r)
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	lv := h.buildList(r.Context(), req)
	if lv.LoadErr != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, lv.LoadErr))
		return
	}
	httpx.JSON(w, http.StatusOK, ListLeadsResponse{
		Leads:      lv.Page,
		Total:      lv.Count,
		Page:       lv.Pagination.Page,
		TotalPages: lv.Pagination.TotalPages,
		Stats:      lv.Stats,
	})
}

// APIShow returns a single lead as JSON.
func (h *Handler) APIShow(w http.ResponseWriter, r *http.Request) {
	if err := h.ensureLoaded(r.Context()); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
		return
	}
	id := chi.URLParam(r, "id")
	lead, ok := h.store.Lead(id)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: lead %s", httpx.ErrNotFound, id))
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

// Helpers
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tmpl, title string, data map[string]any) {
	sess := shared.SessionFromContext(r.Context())
	var flashes []shared.FlashMessage
	if sess != nil {
		flashes = sess.PopFlashes()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   h.csrf.Token(sess),
		Flashes:     flashes,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, status, tmpl, viewData); err != nil {
		h.logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func parseListRequest(r *http.Request) ListLeadsRequest {
	req := ListLeadsRequest{Search: r.URL.Query().Get("q"), Page: 1}
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			req.Page = parsed
		}
	}
	return req
}

// safeReturn only accepts local dashboard paths.
func safeReturn(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, basePath) || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return fallback
	}
	return target
}
