package app

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/leadboard/leadboard/internal/observability"
	"github.com/leadboard/leadboard/internal/platform/httpx"
	"github.com/leadboard/leadboard/internal/shared"
)

// requestsPerMinute caps each client IP. A dashboard page issues one request
// plus static assets, so this only trips on scripted clients.
const requestsPerMinute = 120

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

// MiddlewareStack returns the chain in the order it must be installed.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := 30 * time.Second
	production := false
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		production = cfg.Config.IsProduction()
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		sessionMiddleware(cfg.SessionManager, logger),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		secureHeaders(production, logger),
		middleware.Compress(5),
		rateLimit(logger),
		csrfMiddleware(cfg.CSRFManager, logger),
	}
	if cfg.Metrics != nil {
		chain = append(chain, cfg.Metrics.Middleware)
	}
	return chain
}

// sessionMiddleware loads the session into the request context and saves it
// just before the first byte of the response goes out, so flashes added by
// handlers survive the redirect.
func sessionMiddleware(manager *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := manager.Load(ctx, r)
			if err != nil {
				logger.Error("load session", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)
			next.ServeHTTP(&sessionCommitWriter{
				ResponseWriter: w,
				commit: func() {
					if err := manager.Commit(ctx, w, sess); err != nil {
						logger.Error("commit session", slog.Any("error", err))
					}
				},
			}, r.WithContext(ctx))
		})
	}
}

type sessionCommitWriter struct {
	http.ResponseWriter
	commit func()
	once   sync.Once
}

func (w *sessionCommitWriter) WriteHeader(status int) {
	w.once.Do(w.commit)
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionCommitWriter) Write(data []byte) (int, error) {
	w.once.Do(w.commit)
	return w.ResponseWriter.Write(data)
}

func secureHeaders(production bool, logger *slog.Logger) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; style-src 'self'; img-src 'self' data:",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				logger.Warn("secure headers blocked request", slog.String("path", r.URL.Path), slog.Any("error", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimit(logger *slog.Logger) func(http.Handler) http.Handler {
	return httprate.Limit(requestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("rate limited", slog.String("path", r.URL.Path))
			reject(w, r, http.StatusTooManyRequests, "Muitas requisições. Aguarde um instante.")
		}),
	)
}

// csrfMiddleware checks the token on every state-changing request.
func csrfMiddleware(manager *shared.CSRFManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				reject(w, r, http.StatusForbidden, "Sessão expirada. Recarregue a página.")
				return
			}
			token := r.PostFormValue(shared.CSRFFormField)
			if token == "" {
				token = r.Header.Get("X-CSRF-Token")
			}
			if err := manager.VerifyToken(sess, token); err != nil {
				logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				reject(w, r, http.StatusForbidden, "Sessão expirada. Recarregue a página.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// reject answers API clients with a problem document and browsers with text.
func reject(w http.ResponseWriter, r *http.Request, status int, detail string) {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json") {
		httpx.Problem(w, status, http.StatusText(status), detail)
		return
	}
	http.Error(w, detail, status)
}
