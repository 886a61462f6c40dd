package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/requestctx"
)

func TestRequestLoggerLogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(InjectLoggerMiddleware(logger), RequestLoggerMiddleware())
	r.Get("/api/v1/products/{productId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/api/v1/products/{productId}" {
		t.Fatalf("unexpected route field %v", fields["route"])
	}
	if fields["status"] != int64(http.StatusNotFound) {
		t.Fatalf("unexpected status field %v", fields["status"])
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for 4xx, got %s", entries[0].Level)
	}
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal_server_error") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("expected panic to be logged")
	}
}

func TestTraceMiddlewareHonoursCloudTraceHeader(t *testing.T) {
	var got string
	handler := TraceMiddleware("demo")(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestctx.TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("expected trace id to propagate, got %q", got)
	}
}

func TestParseCloudTraceHeaderRejectsGarbage(t *testing.T) {
	for _, header := range []string{"", "nope", "zz/1", "105445aa7843bc8bf206b12000100000/abc"} {
		if _, ok := parseCloudTraceHeader(header); ok {
			t.Fatalf("expected %q to be rejected", header)
		}
	}
}

func TestMetricsMiddlewareCountsByRoute(t *testing.T) {
	m := NewMetrics("test")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/1", nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/items/{id}", "418")); got != 2 {
		t.Fatalf("expected 2 requests recorded, got %v", got)
	}

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "test_http_requests_total") {
		t.Fatal("expected metrics output to include request counter")
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)

	log := EventLogger(zap.New(baseCore))
	log(context.Background(), "catalog.list", map[string]any{"count": 3})
	log(requestctx.WithLogger(context.Background(), zap.New(reqCore)), "catalog.fallback", map[string]any{"error": "down"})

	if baseLogs.FilterMessage("catalog.list").Len() != 1 {
		t.Fatal("expected base logger to receive event without request logger")
	}
	entries := reqLogs.FilterMessage("catalog.fallback").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn entry on request logger, got %+v", entries)
	}
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	if got := SanitizeRoute("/a\nb"); got != "/ab" {
		t.Fatalf("unexpected sanitised route %q", got)
	}
	if got := SanitizeMethod(strings.Repeat("G", 20)); len(got) != 10 {
		t.Fatalf("expected method to be truncated, got %q", got)
	}
}
