package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/checkout-bootstrap/internal/obs"
)

// NewBackendProxy forwards /api requests to the checkout backend unchanged. When the backend
// cannot be reached the shopper's page receives a plain-text 502, which the bootstrap treats
// like any other unparsable response. A positive timeout bounds the wait for response headers.
func NewBackendProxy(target *url.URL, timeout time.Duration, metrics *obs.CheckoutMetrics, logger zerolog.Logger) *httputil.ReverseProxy {
	base := http.DefaultTransport
	if timeout > 0 {
		if t, ok := http.DefaultTransport.(*http.Transport); ok {
			clone := t.Clone()
			clone.ResponseHeaderTimeout = timeout
			base = clone
		}
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: otelhttp.NewTransport(base),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if metrics != nil {
				metrics.BackendErrors.WithLabelValues(r.URL.Path).Inc()
			}
			evt := logger.Error()
			if errors.Is(err, context.Canceled) {
				evt = logger.Warn()
			}
			evt.Err(err).
				Str("endpoint", r.URL.Path).
				Str("target_host", target.Host).
				Msg("backend_proxy_failed")
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
}

// BackendProbe checks that the checkout backend answers HTTP requests.
type BackendProbe struct {
	URL    string
	Client *http.Client
}

// PingBackend issues a GET against the backend root. Any response below 500 counts as
// reachable since the root path is not part of the payment API.
func (p BackendProbe) PingBackend(ctx context.Context, timeout time.Duration) error {
	if p.URL == "" {
		return errors.New("backend not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe backend: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("backend status %d", resp.StatusCode)
	}
	return nil
}
