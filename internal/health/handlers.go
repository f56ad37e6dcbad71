package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/checkout-bootstrap/internal/common"
)

var draining atomic.Bool

// SetReady toggles readiness. The server clears it when shutdown starts so load balancers stop
// routing shoppers to an instance that is draining.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Checker probes the checkout backend the page host forwards to.
type Checker interface {
	PingBackend(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker        Checker
	BackendTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports whether the backend answers. Pages can be served without it but no checkout
// can start.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "DRAINING", "server is shutting down", nil)
		return
	}
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "backend checker unavailable", nil)
		return
	}
	status := "ok"
	if err := h.Checker.PingBackend(r.Context(), h.backendTimeout()); err != nil {
		status = err.Error()
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, map[string]string{"backend": status})
}

func (h Handler) backendTimeout() time.Duration {
	if h.BackendTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.BackendTimeout
}
