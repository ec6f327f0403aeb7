package leads_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadboard/leadboard/internal/leads"
	"github.com/leadboard/leadboard/internal/shared"
	"github.com/leadboard/leadboard/internal/view"
	_ "github.com/leadboard/leadboard/testing"
)

type stubPDF struct {
	html string
	err  error
}

func (s *stubPDF) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7"), nil
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	store    *leads.Store
	api      *fakeAPI
	pdf      *stubPDF
	sessID   string
}

func newHarness(t *testing.T, api *fakeAPI) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	dir, err := leads.LoadDirectory("")
	require.NoError(t, err)
	store := leads.NewStore(leads.StoreConfig{
		API:       api,
		Directory: dir,
		Notifier:  shared.FlashNotifier{},
	})
	pdf := &stubPDF{}
	handler := leads.NewHandler(nil, store, templates, csrf, pdf, 2)

	r := chi.NewRouter()
	r.Route("/leads", handler.MountRoutes)
	r.Route("/api/leads", handler.MountAPIRoutes)
	return &harness{router: r, sessions: sessions, store: store, api: api, pdf: pdf}
}

func (h *harness) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if h.sessID != "" {
		req.AddCookie(&http.Cookie{Name: "test_session", Value: h.sessID})
	}
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	require.NoError(t, h.sessions.Commit(ctx, res, sess))
	h.sessID = sess.ID
	return res
}

func threeLeads() leads.ListResponse {
	return leads.ListResponse{
		Leads: []leads.Lead{
			{ID: "a", Name: "Alfa Ltda", Email: "alfa@example.com", Active: true, Phone: strptr("11987654321"), AnnualRevenue: 1234.5},
			{ID: "b", Name: "Beta SA", Email: "beta@example.com", Active: false},
			{ID: "c", Name: "Gama ME", Email: "gama@example.com", Active: true},
		},
		Total: 3,
	}
}

func TestListRendersFirstPage(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})

	res := h.do(t, http.MethodGet, "/leads", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Alfa Ltda")
	assert.Contains(t, body, "Beta SA")
	assert.NotContains(t, body, "Gama ME")
	assert.Contains(t, body, "(11) 98765-4321")
	assert.Contains(t, body, "Página 1 de 2")
}

func TestListSearchAndSecondPage(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})

	res := h.do(t, http.MethodGet, "/leads?page=2", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Gama ME")

	res = h.do(t, http.MethodGet, "/leads?q=beta", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Beta SA")
	assert.NotContains(t, body, "Alfa Ltda")
	assert.Contains(t, body, "1 resultado")
}

func TestListEmptyState(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: leads.ListResponse{}})

	res := h.do(t, http.MethodGet, "/leads", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Nenhum lead encontrado")
}

func TestListShowsLoadErrorFlash(t *testing.T) {
	h := newHarness(t, &fakeAPI{fetchErr: errors.New("down")})

	res := h.do(t, http.MethodGet, "/leads", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Não foi possível carregar a lista de leads")
}

func TestShowDetailAndNotFound(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})

	res := h.do(t, http.MethodGet, "/leads/a", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Detalhes do Lead")
	assert.Contains(t, body, "João Santos")
	assert.Contains(t, body, "Nenhum consultor atribuído")

	sel, ok := h.store.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", sel.ID)

	res = h.do(t, http.MethodGet, "/leads/zzz", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestToggleRedirectsWithFlash(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})
	h.do(t, http.MethodGet, "/leads", nil)

	res := h.do(t, http.MethodPost, "/leads/a/toggle", url.Values{"return_to": {"/leads?page=1"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/leads?page=1", res.Header().Get("Location"))

	lead, _ := h.store.Lead("a")
	assert.False(t, lead.Active)

	res = h.do(t, http.MethodGet, "/leads", nil)
	assert.Contains(t, res.Body.String(), "Lead desativado com sucesso.")
}

func TestToggleRejectsForeignReturnTo(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})
	h.do(t, http.MethodGet, "/leads", nil)

	res := h.do(t, http.MethodPost, "/leads/a/toggle", url.Values{"return_to": {"https://evil.example"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/leads", res.Header().Get("Location"))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})
	h.do(t, http.MethodGet, "/leads", nil)

	res := h.do(t, http.MethodPost, "/leads/a/delete", url.Values{})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Empty(t, h.api.deleted)

	res = h.do(t, http.MethodPost, "/leads/a/delete", url.Values{"confirm": {"yes"}, "return_to": {"/leads/a"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/leads", res.Header().Get("Location"))
	assert.Equal(t, []string{"a"}, h.api.deleted)
	_, ok := h.store.Lead("a")
	assert.False(t, ok)
	assert.Equal(t, 2, h.store.Snapshot().Total)
}

func TestAssignConsultant(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})
	h.do(t, http.MethodGet, "/leads", nil)

	res := h.do(t, http.MethodPost, "/leads/a/assign", url.Values{"consultant_id": {"2"}, "return_to": {"/leads?page=2"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/leads/a?return_to=%2Fleads%3Fpage%3D2", res.Header().Get("Location"))

	lead, _ := h.store.Lead("a")
	assert.Equal(t, "João Santos", lead.ConsultantNameValue())
	assert.Equal(t, []string{"a:2"}, h.api.assigned)
}

func TestAssignValidation(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})
	h.do(t, http.MethodGet, "/leads", nil)

	res := h.do(t, http.MethodPost, "/leads/a/assign", url.Values{"consultant_id": {""}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Selecione um consultor.")

	res = h.do(t, http.MethodPost, "/leads/a/assign", url.Values{"consultant_id": {"99"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Consultor desconhecido.")
	assert.Empty(t, h.api.assigned)
}

func TestRefreshReloads(t *testing.T) {
	api := &fakeAPI{list: threeLeads()}
	h := newHarness(t, api)
	h.do(t, http.MethodGet, "/leads", nil)

	res := h.do(t, http.MethodPost, "/leads/refresh", url.Values{})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, 2, api.fetchCalls)
}

func TestExportCSV(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})

	res := h.do(t, http.MethodGet, "/leads/export.csv?q=alfa", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,nome,email"))
	assert.Contains(t, lines[1], "Alfa Ltda")
	assert.Contains(t, lines[1], "1234.50")
}

func TestExportPDF(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})

	res := h.do(t, http.MethodGet, "/leads/export.pdf", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "application/pdf", res.Header().Get("Content-Type"))
	assert.Contains(t, h.pdf.html, "Gama ME")

	h.pdf.err = errors.New("gotenberg down")
	res = h.do(t, http.MethodGet, "/leads/export.pdf", nil)
	assert.Equal(t, http.StatusBadGateway, res.Code)
}

func TestAPIList(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})

	res := h.do(t, http.MethodGet, "/api/leads?page=2", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var body leads.ListLeadsResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 2, body.TotalPages)
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Leads, 1)
	assert.Equal(t, "c", body.Leads[0].ID)
	assert.Equal(t, 2, body.Stats.Active)
}

func TestAPIShow(t *testing.T) {
	h := newHarness(t, &fakeAPI{list: threeLeads()})

	res := h.do(t, http.MethodGet, "/api/leads/b", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var lead leads.Lead
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &lead))
	assert.Equal(t, "Beta SA", lead.Name)

	res = h.do(t, http.MethodGet, "/api/leads/nope", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
}

func TestAPIUpstreamDownIsBadGateway(t *testing.T) {
	h := newHarness(t, &fakeAPI{fetchErr: &leads.APIError{Message: "HTTP 500: boom", Status: 500}})

	for _, target := range []string{"/api/leads", "/api/leads/a"} {
		res := h.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadGateway, res.Code, target)
		assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"), target)
		assert.Contains(t, res.Body.String(), "upstream unavailable", target)
	}
}

func TestAPIServesCachedListWhenRefreshFails(t *testing.T) {
	api := &fakeAPI{list: threeLeads()}
	h := newHarness(t, api)
	require.NoError(t, h.store.Refresh(context.Background()))

	api.mu.Lock()
	api.fetchErr = errors.New("down")
	api.mu.Unlock()
	require.Error(t, h.store.Refresh(context.Background()))

	res := h.do(t, http.MethodGet, "/api/leads/b", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	res = h.do(t, http.MethodGet, "/api/leads", nil)
	assert.Equal(t, http.StatusOK, res.Code)
}
