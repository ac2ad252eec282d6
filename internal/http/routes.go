package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

// NewRouter mounts the API, page, health and metrics routes. Routes that reach
// upstream APIs run under requestTimeout.
func NewRouter(h *Handler, pages *PageHandler, logger *zap.Logger, requestTimeout time.Duration) *mux.Router {
	correlation := CorrelationIDMiddleware(logger)

	router := mux.NewRouter()
	router.Use(correlation)
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(TimeoutMiddleware(requestTimeout))
	apiRouter.HandleFunc("/countries", h.GetCountries).Methods("GET")
	apiRouter.HandleFunc("/weather", h.GetWeather).Methods("GET")

	pageRouter := router.NewRoute().Subrouter()
	pageRouter.Use(TimeoutMiddleware(requestTimeout))
	pageRouter.HandleFunc("/", pages.GetDashboard).Methods("GET")
	pageRouter.HandleFunc("/select", pages.PostSelect).Methods("POST")
	pageRouter.HandleFunc("/refresh/{widget}", pages.PostRefresh).Methods("POST")
	pageRouter.HandleFunc("/dismiss", pages.PostDismiss).Methods("POST")

	// mux skips middleware for unmatched routes; wrap them so every response carries a correlation ID.
	router.NotFoundHandler = correlation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	}))
	router.MethodNotAllowedHandler = correlation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
	return router
}
