package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

const (
	msgCountriesFailed = "Failed to load countries. Please try again later."
	msgWeatherFailed   = "Failed to load weather data. Please refresh or try again later."
)

var (
	// ErrRefreshInProgress is returned when the widget is already refreshing.
	ErrRefreshInProgress = errors.New("dashboard: widget refresh already in progress")
	// ErrNoSnapshot is returned when a widget refresh is requested with nothing displayed.
	ErrNoSnapshot = errors.New("dashboard: no snapshot to refresh")
	// ErrSuperseded is returned when a newer snapshot fetch started while this one was in flight.
	// The result was discarded.
	ErrSuperseded = errors.New("dashboard: result superseded by a newer fetch")
)

// WidgetState is the refresh state of one widget.
type WidgetState int

const (
	WidgetIdle WidgetState = iota
	WidgetRefreshing
	WidgetFailed
)

func (s WidgetState) String() string {
	switch s {
	case WidgetIdle:
		return "idle"
	case WidgetRefreshing:
		return "refreshing"
	case WidgetFailed:
		return "failed"
	}
	return "unknown"
}

// Session is one user's dashboard. Its mutex guards state only; it is never
// held across a backend call.
type Session struct {
	id      string
	backend Backend

	mu              sync.Mutex
	countries       []models.Country
	countriesLoaded bool
	selected        string
	snapshot        *models.WeatherSnapshot
	loading         bool
	banner          string
	widgets         map[models.Widget]WidgetState
	seq             uint64 // latest started snapshot fetch
}

// NewSession returns an empty session with defaultCountry selected.
func NewSession(id string, backend Backend, defaultCountry string) *Session {
	return &Session{
		id:       id,
		backend:  backend,
		selected: defaultCountry,
		widgets:  make(map[models.Widget]WidgetState, len(models.Widgets)),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LoadCountries fetches the country list. On success the snapshot for the
// current selection is loaded as well; on failure the list is left empty and the
// error banner is set.
func (s *Session) LoadCountries(ctx context.Context) error {
	logger := observability.LoggerFrom(ctx)

	list, err := s.backend.Countries(ctx)

	s.mu.Lock()
	if err != nil {
		s.countries = nil
		s.countriesLoaded = false
		s.banner = msgCountriesFailed
		s.mu.Unlock()
		logger.Warn("dashboard countries load failed", zap.String("session", s.id), zap.Error(err))
		return err
	}
	s.countries = list
	s.countriesLoaded = true
	capital, ok := s.capitalLocked(s.selected)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.loadSnapshot(ctx, capital)
}

// Select changes the selected country and loads its snapshot. A code with no
// matching country is stored and nothing is fetched.
func (s *Session) Select(ctx context.Context, code string) error {
	s.mu.Lock()
	s.selected = code
	capital, ok := s.capitalLocked(code)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.loadSnapshot(ctx, capital)
}

// EnsureSnapshot loads the snapshot for the current selection when none is shown
// and none is loading. It is how a page reload retries after a failed load.
func (s *Session) EnsureSnapshot(ctx context.Context) error {
	s.mu.Lock()
	capital, ok := s.capitalLocked(s.selected)
	idle := s.snapshot == nil && !s.loading
	s.mu.Unlock()

	if !ok || !idle {
		return nil
	}
	return s.loadSnapshot(ctx, capital)
}

func (s *Session) loadSnapshot(ctx context.Context, capital string) error {
	logger := observability.LoggerFrom(ctx)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading = true
	s.banner = ""
	s.snapshot = nil
	s.mu.Unlock()

	snap, err := s.backend.Snapshot(ctx, capital)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		logger.Debug("discarding superseded snapshot", zap.String("session", s.id), zap.String("capital", capital))
		return ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.snapshot = nil
		s.banner = msgWeatherFailed
		logger.Warn("dashboard weather load failed", zap.String("session", s.id), zap.String("capital", capital), zap.Error(err))
		return err
	}
	s.snapshot = &snap
	for w, st := range s.widgets {
		if st == WidgetFailed {
			s.widgets[w] = WidgetIdle
		}
	}
	return nil
}

// RefreshWidget reloads one metric and replaces only that value of the current
// snapshot. The widget leaves the refreshing state whatever the outcome.
func (s *Session) RefreshWidget(ctx context.Context, w models.Widget) error {
	logger := observability.LoggerFrom(ctx)

	s.mu.Lock()
	if s.widgets[w] == WidgetRefreshing {
		s.mu.Unlock()
		observability.WidgetRefreshesTotal.WithLabelValues(string(w), "busy").Inc()
		return ErrRefreshInProgress
	}
	capital, ok := s.capitalLocked(s.selected)
	if !ok || s.snapshot == nil {
		s.mu.Unlock()
		return ErrNoSnapshot
	}
	s.widgets[w] = WidgetRefreshing
	seq := s.seq
	s.mu.Unlock()

	patch, err := s.backend.Widget(ctx, capital, w)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq || s.snapshot == nil {
		s.widgets[w] = WidgetIdle
		observability.WidgetRefreshesTotal.WithLabelValues(string(w), "superseded").Inc()
		return ErrSuperseded
	}
	if err == nil {
		var next models.WeatherSnapshot
		next, err = s.snapshot.Apply(w, patch)
		if err == nil {
			*s.snapshot = next
			s.widgets[w] = WidgetIdle
			observability.WidgetRefreshesTotal.WithLabelValues(string(w), "success").Inc()
			return nil
		}
	}
	s.widgets[w] = WidgetFailed
	s.banner = fmt.Sprintf("Failed to refresh %s data.", w)
	observability.WidgetRefreshesTotal.WithLabelValues(string(w), "failure").Inc()
	logger.Warn("dashboard widget refresh failed",
		zap.String("session", s.id), zap.String("capital", capital), zap.String("widget", string(w)), zap.Error(err))
	return err
}

// DismissError clears the banner.
func (s *Session) DismissError() {
	s.mu.Lock()
	s.banner = ""
	s.mu.Unlock()
}

// CountriesLoaded reports whether the country list has been loaded successfully.
func (s *Session) CountriesLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countriesLoaded
}

func (s *Session) capitalLocked(code string) (string, bool) {
	for _, c := range s.countries {
		if c.Code == code {
			return c.Capital, true
		}
	}
	return "", false
}

// View is an immutable copy of a session for rendering.
type View struct {
	Countries []models.Country
	Selected  string
	Capital   string
	Snapshot  *models.WeatherSnapshot
	Loading   bool
	Error     string
	Widgets   []WidgetView
}

// WidgetView is one widget as displayed.
type WidgetView struct {
	Name  models.Widget
	Label string
	Value string
	State WidgetState
}

// Refreshing reports whether the widget's refresh button is disabled.
func (w WidgetView) Refreshing() bool { return w.State == WidgetRefreshing }

// View returns a copy of the session state. Widgets are listed only when a snapshot is present.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Countries: append([]models.Country(nil), s.countries...),
		Selected:  s.selected,
		Loading:   s.loading,
		Error:     s.banner,
	}
	v.Capital, _ = s.capitalLocked(s.selected)
	if s.snapshot != nil {
		snap := *s.snapshot
		v.Snapshot = &snap
		for _, w := range models.Widgets {
			v.Widgets = append(v.Widgets, WidgetView{
				Name:  w,
				Label: widgetLabel(w),
				Value: widgetValue(w, snap),
				State: s.widgets[w],
			})
		}
	}
	return v
}

func widgetLabel(w models.Widget) string {
	switch w {
	case models.WidgetTemperature:
		return "Temp (Min/Max)"
	case models.WidgetWindSpeed:
		return "Wind Speed (m/s)"
	case models.WidgetHumidity:
		return "Humidity"
	case models.WidgetPressure:
		return "Pressure (hPa)"
	}
	return string(w)
}

func widgetValue(w models.Widget, snap models.WeatherSnapshot) string {
	switch w {
	case models.WidgetTemperature:
		return formatNumber(snap.Temperature.Min) + "°C / " + formatNumber(snap.Temperature.Max) + "°C"
	case models.WidgetWindSpeed:
		return formatNumber(snap.WindSpeed) + " m/s"
	case models.WidgetHumidity:
		return formatNumber(snap.Humidity) + "%"
	case models.WidgetPressure:
		return formatNumber(snap.Pressure) + " hPa"
	}
	return ""
}

// formatNumber prints the shortest decimal form, so 1012 stays "1012" and 3.5 stays "3.5".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
