package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"weatherwax/internal/provider"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

// TestMetricsMiddleware_EmitsRequestCounters verifies that wrapping a handler
// with MetricsMiddleware results in request metrics being exposed via the
// Prometheus /metrics handler.
func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := scrape(t); !bytes.Contains(body, []byte("weatherwax_http_requests_total")) {
		t.Fatalf("expected to find weatherwax_http_requests_total in metrics")
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/12345", nil))
	body := scrape(t)
	if !bytes.Contains(body, []byte(`path="/items/{id}"`)) {
		t.Fatalf("expected route pattern label")
	}
	if bytes.Contains(body, []byte(`path="/items/12345"`)) {
		t.Fatalf("raw path leaked into labels")
	}
	if !bytes.Contains(body, []byte(`status="418"`)) {
		t.Fatalf("expected status label 418")
	}
}

func TestStatusRecorder_Flushes(t *testing.T) {
	rr := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rr, status: 200}
	var f http.Flusher = sr
	f.Flush()
	if !rr.Flushed {
		t.Fatalf("flush not forwarded")
	}
	if sr.Unwrap() != http.ResponseWriter(rr) {
		t.Fatalf("unwrap mismatch")
	}
}

func TestInvokeCountsFrames(t *testing.T) {
	svc := &mockService{prov: &mockProvider{chunks: []string{"a"}}}
	postInvoke(t, NewMux(svc), helloBody)
	if body := scrape(t); !bytes.Contains(body, []byte(`weatherwax_sse_frames_total{kind="message"}`)) {
		t.Fatalf("expected sse frame counter")
	}
}

func TestInvokeErrors_CountedByStatus(t *testing.T) {
	baseline := testutil.ToFloat64(invokeErrorsTotal.WithLabelValues("404"))
	postInvoke(t, NewMux(&mockService{resolveErr: provider.ErrModelNotFound("x")}), helloBody)
	postInvoke(t, NewMux(&mockService{resolveErr: provider.ErrModelNotFound("y")}), helloBody)
	if got := testutil.ToFloat64(invokeErrorsTotal.WithLabelValues("404")); got < baseline+2 {
		t.Fatalf("expected 404 errors >= %v, got %v", baseline+2, got)
	}

	before := testutil.ToFloat64(sseFramesTotal.WithLabelValues("error"))
	postInvoke(t, NewMux(&mockService{prov: &mockProvider{err: provider.ErrUpstream("down")}}), helloBody)
	if after := testutil.ToFloat64(sseFramesTotal.WithLabelValues("error")); after < before+1 {
		t.Fatalf("expected in-band error frame to be counted: before=%v after=%v", before, after)
	}
}
