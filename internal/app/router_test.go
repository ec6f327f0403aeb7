package app_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadboard/leadboard/internal/app"
	"github.com/leadboard/leadboard/internal/leads"
	"github.com/leadboard/leadboard/internal/observability"
	"github.com/leadboard/leadboard/internal/shared"
	"github.com/leadboard/leadboard/internal/view"
	_ "github.com/leadboard/leadboard/testing"
)

type routerFixture struct {
	handler http.Handler
	csrf    *shared.CSRFManager
	calls   *int
}

func newRouter(t *testing.T) routerFixture {
	t.Helper()
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/leads/findAll":
			_, _ = io.WriteString(w, `{"leads":[{"id":"1","nome":"Acme","ativo":true}],"total":1}`)
		case r.Method == http.MethodPatch && r.URL.Path == "/leads/changeAtivo/1":
			calls++
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":"1","nome":"Acme","ativo":false}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "leadboard_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	dir, err := leads.LoadDirectory("")
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	store := leads.NewStore(leads.StoreConfig{
		API:       leads.NewClient(upstream.URL),
		Directory: dir,
		Notifier:  shared.FlashNotifier{},
		Observer:  metrics,
	})
	handler := app.NewRouter(app.RouterParams{
		Config:         &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager: sessions,
		CSRFManager:    csrf,
		LeadsHandler:   leads.NewHandler(nil, store, templates, csrf, nil, 12),
		Metrics:        metrics,
	})
	return routerFixture{handler: handler, csrf: csrf, calls: &calls}
}

func (f routerFixture) get(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	f := newRouter(t)
	rr := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRootRedirectsToLeads(t *testing.T) {
	f := newRouter(t)
	rr := f.get(t, "/")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/leads", rr.Header().Get("Location"))
}

func TestStaticAssetsServed(t *testing.T) {
	f := newRouter(t)
	rr := f.get(t, "/static/css/app.css")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestPostWithoutCSRFIsForbidden(t *testing.T) {
	f := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/leads/1/toggle", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, *f.calls)
}

func TestToggleThroughFullStack(t *testing.T) {
	f := newRouter(t)

	list := f.get(t, "/leads")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "Acme")

	var sessionCookie *http.Cookie
	for _, c := range list.Result().Cookies() {
		if c.Name == "leadboard_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	token := f.csrf.Token(&shared.Session{ID: sessionCookie.Value})

	form := url.Values{shared.CSRFFormField: {token}, "return_to": {"/leads"}}
	req := httptest.NewRequest(http.MethodPost, "/leads/1/toggle", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionCookie)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, 1, *f.calls)

	after := f.get(t, "/leads", sessionCookie)
	body := after.Body.String()
	assert.Contains(t, body, "Lead desativado com sucesso.")
	assert.Contains(t, body, "Inativo")

	metrics := f.get(t, "/metrics")
	assert.Contains(t, metrics.Body.String(), `leadboard_lead_operations_total{op="toggle",result="success"} 1`)
	assert.Contains(t, metrics.Body.String(), `leadboard_http_requests_total{code="303",route="/leads/{id}/toggle"} 1`)
}

func TestAPIIsReachable(t *testing.T) {
	f := newRouter(t)
	rr := f.get(t, "/api/leads/1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"nome":"Acme"`)

	rr = f.get(t, "/api/leads/404")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIRejectionIsProblemJSON(t *testing.T) {
	f := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"status":403`)
}
