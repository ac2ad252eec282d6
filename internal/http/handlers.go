package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/capital-weather-dashboard/internal/apperr"
	"github.com/kjstillabower/capital-weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/capital-weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

// snapshotCacheControl is sent with full snapshots; widget patches are not cacheable.
const snapshotCacheControl = "public, max-age=300"

// HealthConfig holds the inputs of the health handler.
type HealthConfig struct {
	// WeatherKeyConfigured is false when OPENWEATHER_API_KEY is unset; health then reports degraded.
	WeatherKeyConfigured bool
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for the JSON API handlers.
type Handler struct {
	countries        dashboard.CountryLister
	weather          dashboard.WeatherLookup
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(countries dashboard.CountryLister, weather dashboard.WeatherLookup, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		countries:    countries,
		weather:      weather,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetCountries handles GET /api/countries.
func (h *Handler) GetCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.countries.ListCountries(r.Context())
	if err != nil {
		writeAPIError(w, r, "/api/countries", err, false)
		return
	}
	if countries == nil {
		countries = []models.Country{}
	}
	writeJSON(w, http.StatusOK, countries)
}

// GetWeather handles GET /api/weather?capital=&widget=. An empty widget parameter
// means the full snapshot.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	capital := q.Get("capital")
	widget := q.Get("widget")

	if widget != "" {
		patch, err := h.weather.GetWidget(r.Context(), capital, widget)
		if err != nil {
			writeAPIError(w, r, "/api/weather", err, true)
			return
		}
		writeJSON(w, http.StatusOK, patch)
		return
	}

	snap, err := h.weather.GetSnapshot(r.Context(), capital)
	if err != nil {
		writeAPIError(w, r, "/api/weather", err, true)
		return
	}
	w.Header().Set("Cache-Control", snapshotCacheControl)
	writeJSON(w, http.StatusOK, snap)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	now := time.Now()
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":         result.status,
		"service":        observability.ServiceName,
		"checks":         result.checks,
		"uptime_seconds": int64(lifecycle.Uptime(now).Seconds()),
		"timestamp":      now.UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > cache unreachable > weather key missing > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	checks := map[string]string{"weatherApiKey": "configured"}
	if h.healthConfig != nil && !h.healthConfig.WeatherKeyConfigured {
		checks["weatherApiKey"] = "missing"
	}
	cacheOK := true
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(); err != nil {
			cacheOK = false
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}

	switch {
	case lifecycle.IsShuttingDown():
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	case !cacheOK:
		return healthResult{"unhealthy", http.StatusServiceUnavailable, "cache_unreachable", checks}
	case checks["weatherApiKey"] == "missing":
		// Countries and pages still work; weather lookups fail with a config error.
		return healthResult{"degraded", http.StatusOK, "weather_api_key_missing", checks}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {error: message} envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAPIError maps err to its status and client message and logs the cause.
// With hideInternal set, 5xx messages other than configuration errors are
// replaced with the generic message so upstream details stay server-side.
func writeAPIError(w http.ResponseWriter, r *http.Request, route string, err error, hideInternal bool) {
	e := apperr.From(err)
	msg := e.Message
	if hideInternal && e.Status >= http.StatusInternalServerError && !apperr.IsKind(err, apperr.KindConfig) {
		msg = apperr.GenericMessage
	}
	observability.APIErrorsTotal.WithLabelValues(route, string(e.Kind)).Inc()

	logger := observability.LoggerFrom(r.Context())
	fields := []zap.Field{
		zap.String("route", route),
		zap.String("kind", string(e.Kind)),
		zap.Int("status", e.Status),
		zap.Error(err),
	}
	if e.Status >= http.StatusInternalServerError {
		logger.Error("api request failed", fields...)
	} else {
		logger.Info("api request rejected", fields...)
	}
	writeError(w, e.Status, msg)
}
