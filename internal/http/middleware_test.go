package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

func TestMiddleware_GeneratesCorrelationID(t *testing.T) {
	router := NewRouter(newTestHandler(defaultDirectory(), &mockWeatherProvider{snapshot: berlin}, "key", zap.NewNop()), nil, zap.NewNop(), testTimeout)

	w := serve(t, router, "GET", "/api/weather?capital=Berlin")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationID(r.Context())
	})

	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	if seen != "client-provided-id" {
		t.Errorf("context correlation ID = %q, want client-provided-id", seen)
	}
}

// TestMiddleware_RequestLoggerCarriesCorrelationID verifies handlers log through a
// logger already tagged with the request's correlation ID.
func TestMiddleware_RequestLoggerCarriesCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		observability.LoggerFrom(r.Context()).Info("probe")
	})

	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("probe").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["correlation_id"]; got != "abc-123" {
		t.Errorf("correlation_id = %v, want abc-123", got)
	}
}

func TestMiddleware_NotFoundCarriesCorrelationID(t *testing.T) {
	router := NewRouter(newTestHandler(defaultDirectory(), &mockWeatherProvider{}, "key", zap.NewNop()), nil, zap.NewNop(), testTimeout)

	w := serve(t, router, "GET", "/nope")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing on 404")
	}
	if got := decodeError(t, w); got != "Not found" {
		t.Errorf("error = %q, want Not found", got)
	}
}

func TestMiddleware_MetricsRoute(t *testing.T) {
	router := NewRouter(newTestHandler(defaultDirectory(), &mockWeatherProvider{snapshot: berlin}, "key", zap.NewNop()), nil, zap.NewNop(), testTimeout)
	serve(t, router, "GET", "/api/weather?capital=Berlin")

	w := serve(t, router, "GET", "/metrics")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	// Route labels use the template, never the raw query.
	if !strings.Contains(w.Body.String(), `route="/api/weather"`) {
		t.Error("metrics missing route=\"/api/weather\" label")
	}
}

func TestGetRoute_Template(t *testing.T) {
	var got string
	router := mux.NewRouter()
	router.HandleFunc("/refresh/{widget}", func(w http.ResponseWriter, r *http.Request) {
		got = getRoute(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/refresh/humidity", nil))

	if got != "/refresh/{widget}" {
		t.Errorf("getRoute() = %q, want /refresh/{widget}", got)
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := map[int]string{200: "2xx", 303: "3xx", 400: "4xx", 503: "5xx"}
	for code, want := range tests {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	// Arrange: provider blocks until the request context ends
	provider := &mockWeatherProvider{snapshot: berlin, block: make(chan struct{})}
	defer close(provider.block)
	router := NewRouter(newTestHandler(defaultDirectory(), provider, "key", zap.NewNop()), nil, zap.NewNop(), 50*time.Millisecond)

	// Act
	start := time.Now()
	w := serve(t, router, "GET", "/api/weather?capital=Berlin")

	// Assert
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d (timeout should surface as upstream error)", w.Code, http.StatusInternalServerError)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request took %v, want it cut off near 50ms", elapsed)
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/slow", nil))
		close(done)
	}()

	<-entered
	if got := InFlightCount(); got < 1 {
		t.Errorf("InFlightCount() during request = %d, want >= 1", got)
	}
	close(release)
	<-done
	if got := InFlightCount(); got != 0 {
		t.Errorf("InFlightCount() after request = %d, want 0", got)
	}
}
