package web_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-bootstrap/internal/checkout"
	"github.com/noah-isme/checkout-bootstrap/internal/health"
	"github.com/noah-isme/checkout-bootstrap/internal/obs"
	"github.com/noah-isme/checkout-bootstrap/internal/web"
)

type hostFixture struct {
	router  http.Handler
	metrics *obs.CheckoutMetrics
}

func newHost(t *testing.T, backendURL string) hostFixture {
	t.Helper()
	registry := prometheus.NewRegistry()
	metrics := obs.NewCheckoutMetrics("checkout", registry)
	pages, err := web.NewPages(web.PageConfig{
		ClientKey:    "test_CLIENTKEY",
		SDKScriptURL: "https://cdn.example.com/adyen.js",
		SDKStyleURL:  "https://cdn.example.com/adyen.css",
		PaymentTypes: []string{"dropin", "card"},
	}, metrics, zerolog.Nop())
	require.NoError(t, err)

	target, err := url.Parse(backendURL)
	require.NoError(t, err)

	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "main.wasm"), []byte("\x00asm"), 0o600))

	router := web.NewRouter(web.RouterConfig{
		Logger:    zerolog.Nop(),
		Pages:     pages,
		Backend:   web.NewBackendProxy(target, 0, metrics, zerolog.Nop()),
		Health:    health.Handler{Checker: web.BackendProbe{URL: backendURL}, BackendTimeout: time.Second},
		AssetsDir: assets,
	})
	return hostFixture{router: router, metrics: metrics}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestCheckoutPageEmbedsSettings(t *testing.T) {
	host := newHost(t, "http://127.0.0.1:1")

	rr := get(t, host.router, "/checkout?type=dropin")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	require.Contains(t, body, `<div id="clientKey" hidden>test_CLIENTKEY</div>`)
	require.Contains(t, body, `<div id="type" hidden>dropin</div>`)
	require.Contains(t, body, `id="payment"`)
	require.Contains(t, body, `data-locale="en_US"`)
	require.Contains(t, body, `data-amount-value="9999"`)
	require.Contains(t, body, `data-amount-currency="EUR"`)
	require.Contains(t, body, `src="https://cdn.example.com/adyen.js"`)
	require.Contains(t, body, `/assets/main.wasm`)
}

func TestCheckoutPageEscapesType(t *testing.T) {
	host := newHost(t, "http://127.0.0.1:1")

	rr := get(t, host.router, "/checkout?type="+url.QueryEscape("<script>"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, rr.Body.String(), `<div id="type" hidden><script>`)
	require.Contains(t, rr.Body.String(), `&lt;script&gt;`)
}

func TestPagesRequireType(t *testing.T) {
	host := newHost(t, "http://127.0.0.1:1")

	require.Equal(t, http.StatusBadRequest, get(t, host.router, "/checkout").Code)
	require.Equal(t, http.StatusBadRequest, get(t, host.router, "/preview?type=%20").Code)
}

func TestIndexAndPreview(t *testing.T) {
	host := newHost(t, "http://127.0.0.1:1")

	index := get(t, host.router, "/")
	require.Equal(t, http.StatusOK, index.Code)
	require.Contains(t, index.Body.String(), `href="/preview?type=dropin"`)
	require.Contains(t, index.Body.String(), `href="/preview?type=card"`)

	preview := get(t, host.router, "/preview?type=card")
	require.Equal(t, http.StatusOK, preview.Code)
	require.Contains(t, preview.Body.String(), "99.99 EUR")
	require.Contains(t, preview.Body.String(), `href="/checkout?type=card"`)
}

func TestRedirectPageEmbedsClientKey(t *testing.T) {
	host := newHost(t, "http://127.0.0.1:1")

	rr := get(t, host.router, "/redirect?redirectResult=abc")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `<div id="clientKey" hidden>test_CLIENTKEY</div>`)
	require.Contains(t, rr.Body.String(), `/assets/wasm_exec.js`)
}

func TestResultPagesCountOutcomes(t *testing.T) {
	host := newHost(t, "http://127.0.0.1:1")

	for _, page := range checkout.ResultPages {
		rr := get(t, host.router, page.Path())
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), `data-outcome="`+string(page)+`"`)
	}
	unknown := get(t, host.router, "/result/refund?reason=Refused")
	require.Equal(t, http.StatusOK, unknown.Code)
	require.Contains(t, unknown.Body.String(), `data-outcome="error"`)
	require.Contains(t, unknown.Body.String(), "Reason: Refused")

	require.Equal(t, 1.0, testutil.ToFloat64(host.metrics.ResultViews.WithLabelValues("success")))
	require.Equal(t, 2.0, testutil.ToFloat64(host.metrics.ResultViews.WithLabelValues("error")))
}

func TestAssetsAreServed(t *testing.T) {
	host := newHost(t, "http://127.0.0.1:1")

	rr := get(t, host.router, "/assets/main.wasm")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/wasm", rr.Header().Get("Content-Type"))
	require.Equal(t, http.StatusNotFound, get(t, host.router, "/assets/missing.js").Code)
}

func TestProxyForwardsRequestsVerbatim(t *testing.T) {
	type seen struct {
		method, path, contentType, body string
	}
	received := make(chan seen, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- seen{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(body)}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"resultCode":"Refused"}`)
	}))
	t.Cleanup(backend.Close)
	host := newHost(t, backend.URL)

	req := httptest.NewRequest(http.MethodPost, checkout.PaymentsPath, strings.NewReader(`{"foo":1}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	host.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.JSONEq(t, `{"resultCode":"Refused"}`, rr.Body.String())
	got := <-received
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/api/payments", got.path)
	require.Equal(t, "application/json", got.contentType)
	require.Equal(t, `{"foo":1}`, got.body)
}

func TestProxyFailureIsPlainTextBadGateway(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	backend.Close()
	host := newHost(t, backend.URL)

	rr := httptest.NewRecorder()
	host.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, checkout.PaymentMethodsPath, nil))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Equal(t, "Bad Gateway\n", rr.Body.String())
	require.Equal(t, 1.0, testutil.ToFloat64(host.metrics.BackendErrors.WithLabelValues(checkout.PaymentMethodsPath)))
}

func TestBootstrapThroughHost(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"resultCode":"Authorised"}`)
	}))
	t.Cleanup(backend.Close)
	host := httptest.NewServer(newHost(t, backend.URL).router)
	t.Cleanup(host.Close)

	client := checkout.NewClient(host.URL, time.Second)
	raw, err := client.SendPostRequest(context.Background(), checkout.PaymentsPath, map[string]bool{"ok": true})
	require.NoError(t, err)
	resp, err := checkout.ParsePaymentResponse(raw)
	require.NoError(t, err)
	require.Equal(t, checkout.PageSuccess, checkout.RouteResult(resp.ResultCode))
}

func TestBootstrapSeesMalformedBodyWhenBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	backend.Close()
	host := httptest.NewServer(newHost(t, backend.URL).router)
	t.Cleanup(host.Close)

	client := checkout.NewClient(host.URL, time.Second)
	_, err := client.SendPostRequest(context.Background(), checkout.PaymentMethodsPath, nil)
	require.ErrorIs(t, err, checkout.ErrMalformedResponse)
}

func TestReadyProbesBackend(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(backend.Close)
	host := newHost(t, backend.URL)

	require.Equal(t, http.StatusOK, get(t, host.router, "/health/ready").Code)

	backend.Close()
	rr := get(t, host.router, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "probe backend")
}

func TestBackendProbeReportsServerErrors(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(backend.Close)

	err := web.BackendProbe{URL: backend.URL}.PingBackend(context.Background(), time.Second)
	require.EqualError(t, err, "backend status 503")
	require.EqualError(t, web.BackendProbe{}.PingBackend(context.Background(), time.Second), "backend not configured")
}

func TestProxyTimeoutReturnsBadGateway(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(backend.Close)
	t.Cleanup(func() { close(release) })

	target, err := url.Parse(backend.URL)
	require.NoError(t, err)
	metrics := obs.NewCheckoutMetrics("checkout", prometheus.NewRegistry())
	proxy := web.NewBackendProxy(target, 50*time.Millisecond, metrics, zerolog.Nop())

	rr := httptest.NewRecorder()
	proxy.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, checkout.PaymentsPath, strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.BackendErrors.WithLabelValues(checkout.PaymentsPath)))
}
