package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-bootstrap/internal/health"
	"github.com/noah-isme/checkout-bootstrap/internal/obs"
)

// RouterConfig wires the page host handlers and middleware.
type RouterConfig struct {
	Logger      zerolog.Logger
	Pages       *Pages
	Backend     http.Handler
	Health      health.Handler
	AssetsDir   string
	HTTPMetrics *obs.HTTPMetrics
	Metrics     http.Handler
	Tracing     bool
}

// NewRouter builds the page host router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	if cfg.Pages != nil {
		r.Get("/", cfg.Pages.Index)
		r.Get("/preview", cfg.Pages.Preview)
		r.Get("/checkout", cfg.Pages.Checkout)
		r.Get("/redirect", cfg.Pages.Redirect)
		r.Get("/result/{type}", cfg.Pages.Result)
	}
	if cfg.AssetsDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(cfg.AssetsDir))))
	}
	if cfg.Backend != nil {
		r.Handle("/api/*", cfg.Backend)
	}
	return r
}
