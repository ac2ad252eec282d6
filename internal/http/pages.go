package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/capital-weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
	"github.com/kjstillabower/capital-weather-dashboard/internal/validation"
)

// SessionCookie names the cookie that carries the dashboard session ID.
const SessionCookie = "dashboard_session"

// PageHandler serves the server-rendered dashboard. POST routes mutate the
// session and redirect back to GET / (post/redirect/get).
type PageHandler struct {
	store    *dashboard.Store
	renderer *dashboard.Renderer
	logger   *zap.Logger
}

// NewPageHandler returns a new PageHandler.
func NewPageHandler(store *dashboard.Store, renderer *dashboard.Renderer, logger *zap.Logger) *PageHandler {
	return &PageHandler{store: store, renderer: renderer, logger: logger}
}

// GetDashboard handles GET /. A fresh session loads countries and the snapshot
// for the default country. While an error banner is shown nothing is refetched;
// dismissing the banner lets the next render retry.
func (p *PageHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sess := p.session(w, r)
	ctx := r.Context()

	if sess.View().Error == "" {
		if !sess.CountriesLoaded() {
			_ = sess.LoadCountries(ctx)
		} else {
			_ = sess.EnsureSnapshot(ctx)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := p.renderer.Render(w, sess.View()); err != nil {
		observability.LoggerFrom(ctx).Error("dashboard render failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// PostSelect handles POST /select with form field code.
func (p *PageHandler) PostSelect(w http.ResponseWriter, r *http.Request) {
	code, err := validation.ValidateCountryCode(r.FormValue("code"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess := p.session(w, r)
	if !sess.CountriesLoaded() {
		_ = sess.LoadCountries(r.Context())
	}
	_ = sess.Select(r.Context(), code)
	redirectHome(w, r)
}

// PostRefresh handles POST /refresh/{widget}.
func (p *PageHandler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	widget, err := models.ParseWidget(mux.Vars(r)["widget"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sess, ok := p.existingSession(r)
	if !ok {
		redirectHome(w, r)
		return
	}
	// Failures are recorded on the session as widget state and banner.
	err = sess.RefreshWidget(r.Context(), widget)
	if errors.Is(err, dashboard.ErrRefreshInProgress) || errors.Is(err, dashboard.ErrNoSnapshot) {
		observability.LoggerFrom(r.Context()).Debug("widget refresh skipped",
			zap.String("widget", string(widget)), zap.Error(err))
	}
	redirectHome(w, r)
}

// PostDismiss handles POST /dismiss.
func (p *PageHandler) PostDismiss(w http.ResponseWriter, r *http.Request) {
	if sess, ok := p.existingSession(r); ok {
		sess.DismissError()
	}
	redirectHome(w, r)
}

// existingSession returns the session named by the cookie, if it is still live.
// Refresh and dismiss use it so a cookieless client cannot grow the store.
func (p *PageHandler) existingSession(r *http.Request) (*dashboard.Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return p.store.Get(c.Value)
}

// session returns the caller's session, starting a new one and setting the
// cookie when the cookie is absent or its session has expired. Only GET / and
// POST /select start sessions.
func (p *PageHandler) session(w http.ResponseWriter, r *http.Request) *dashboard.Session {
	if sess, ok := p.existingSession(r); ok {
		return sess
	}
	sess := p.store.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	observability.LoggerFrom(r.Context()).Debug("dashboard session started", zap.String("session", sess.ID()))
	return sess
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
