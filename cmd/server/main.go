package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/checkout-bootstrap/internal/checkout"
	"github.com/noah-isme/checkout-bootstrap/internal/config"
	"github.com/noah-isme/checkout-bootstrap/internal/health"
	"github.com/noah-isme/checkout-bootstrap/internal/obs"
	"github.com/noah-isme/checkout-bootstrap/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "checkout-host",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	metrics := newMetrics(cfg.Obs, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)

	backendURL, err := url.Parse(cfg.BackendURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse backend url")
	}

	pages, err := web.NewPages(web.PageConfig{
		ClientKey: cfg.Checkout.ClientKey,
		Defaults: checkout.Settings{
			Locale:      cfg.Checkout.Locale,
			Environment: cfg.Checkout.Environment,
			Amount:      checkout.Amount{Value: cfg.Checkout.AmountValue, Currency: cfg.Checkout.AmountCurrency},
			CardName:    cfg.Checkout.CardName,
		},
		SDKScriptURL: cfg.Checkout.SDKScriptURL,
		SDKStyleURL:  cfg.Checkout.SDKStyleURL,
		PaymentTypes: cfg.Checkout.PaymentTypes,
	}, metrics.checkout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse page templates")
	}

	router := web.NewRouter(web.RouterConfig{
		Logger:  logger,
		Pages:   pages,
		Backend: web.NewBackendProxy(backendURL, cfg.Checkout.RequestTimeout, metrics.checkout, logger),
		Health: health.Handler{
			Checker:        web.BackendProbe{URL: cfg.BackendURL},
			BackendTimeout: cfg.Checkout.ReadyTimeout,
		},
		AssetsDir:   cfg.AssetsDir,
		HTTPMetrics: metrics.httpObs,
		Metrics:     metrics.handler,
		Tracing:     tracingEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("backend", cfg.BackendURL).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

type metricsSet struct {
	httpObs  *obs.HTTPMetrics
	checkout *obs.CheckoutMetrics
	handler  http.Handler
}

// newMetrics registers collectors only when Prometheus is enabled. Disabled metrics leave
// every field nil, which the router, pages and proxy treat as "not instrumented".
func newMetrics(cfg config.Obs, reg prometheus.Registerer, gatherer prometheus.Gatherer) metricsSet {
	if !cfg.MetricsEnabled {
		return metricsSet{}
	}
	return metricsSet{
		httpObs:  obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), reg),
		checkout: obs.NewCheckoutMetrics(cfg.MetricsNamespace, reg),
		handler:  promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
	}
}
