// Package api implements the HTTP surface of the relay: credential
// submission, session lifecycle, and the streaming chat proxy.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/keyrelay/envelope"
	"github.com/jmcleod/keyrelay/provider"
	"github.com/jmcleod/keyrelay/session"
	"github.com/jmcleod/keyrelay/storage"
)

// API holds the dependencies needed by the REST handlers. Everything is
// constructed once at process start and shared read-only across
// requests; per-request state lives entirely on the request itself.
type API struct {
	sealer   *envelope.Sealer
	sessions *session.Service
	upstream *provider.Client

	audit         *auditLogger
	submitLimiter *submitRateLimiter
	metrics       *metricsCollector

	defaultModel  string
	allowedModels map[string]bool
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit.logger = logger.With("component", "audit")
	}
}

// WithAuditStore enables persistent audit event storage.
func WithAuditStore(store storage.AuditStore) Option {
	return func(a *API) {
		a.audit.store = store
	}
}

// WithAlertFunc sets the callback invoked on anomaly detection.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.metrics.alertFn = fn
	}
}

// WithModels overrides the model allow-list and its default.
func WithModels(defaultModel string, allowed ...string) Option {
	return func(a *API) {
		a.defaultModel = defaultModel
		a.allowedModels = make(map[string]bool, len(allowed))
		for _, m := range allowed {
			a.allowedModels[m] = true
		}
	}
}

// New creates a new API instance.
func New(sealer *envelope.Sealer, sessions *session.Service, upstream *provider.Client, opts ...Option) *API {
	a := &API{
		sealer:        sealer,
		sessions:      sessions,
		upstream:      upstream,
		submitLimiter: newSubmitRateLimiter(),
		metrics:       newMetricsCollector(),
	}
	a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)), a.metrics)

	WithModels(defaultChatModel, defaultAllowedModels...)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.CSRFMiddleware)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/key", a.SubmitKey)
	r.Post("/auth/logout", a.Logout)
	r.Get("/session", a.SessionStatus)
	r.Post("/chat", a.Chat)
	r.Get("/audit", a.ListAuditEvents)

	return r
}
