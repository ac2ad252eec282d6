package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/capital-weather-dashboard/internal/apperr"
	"github.com/kjstillabower/capital-weather-dashboard/internal/client"
	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

type mockWeatherProvider struct {
	snapshot models.WeatherSnapshot
	err      error
	calls    int
	capital  string
	apiKey   string
}

func (m *mockWeatherProvider) CurrentWeather(ctx context.Context, capital, apiKey string) (models.WeatherSnapshot, error) {
	m.calls++
	m.capital = capital
	m.apiKey = apiKey
	return m.snapshot, m.err
}

var berlin = models.WeatherSnapshot{
	Temperature: models.Temperature{Min: 10, Max: 15},
	Humidity:    60,
	Pressure:    1012,
	WindSpeed:   3.5,
}

func observedContext(level zapcore.Level) (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return observability.WithLogger(context.Background(), zap.New(core)), logs
}

func wantAppErr(t *testing.T, err error, kind apperr.Kind, status int, msg string) {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v (%T), want *apperr.Error", err, err)
	}
	if ae.Kind != kind {
		t.Errorf("Kind = %q, want %q", ae.Kind, kind)
	}
	if ae.Status != status {
		t.Errorf("Status = %d, want %d", ae.Status, status)
	}
	if msg != "" && ae.Message != msg {
		t.Errorf("Message = %q, want %q", ae.Message, msg)
	}
}

func TestWeatherService_GetSnapshot_Success(t *testing.T) {
	provider := &mockWeatherProvider{snapshot: berlin}
	svc := NewWeatherService(provider, WeatherOptions{APIKey: "key"})

	got, err := svc.GetSnapshot(context.Background(), "  Berlin ")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if diff := cmp.Diff(berlin, got); diff != "" {
		t.Errorf("GetSnapshot() mismatch (-want +got):\n%s", diff)
	}
	if provider.capital != "Berlin" {
		t.Errorf("provider capital = %q, want trimmed Berlin", provider.capital)
	}
	if provider.apiKey != "key" {
		t.Errorf("provider apiKey = %q, want configured key", provider.apiKey)
	}
}

func TestWeatherService_MissingCapital(t *testing.T) {
	provider := &mockWeatherProvider{snapshot: berlin}
	svc := NewWeatherService(provider, WeatherOptions{APIKey: "key"})

	for _, capital := range []string{"", "   "} {
		_, err := svc.GetSnapshot(context.Background(), capital)
		wantAppErr(t, err, apperr.KindValidation, http.StatusBadRequest, "No capital provided in query parameters")
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

// TestWeatherService_UnusualCapitalReachesUpstream verifies only a blank capital is
// rejected locally; any other name is left for the weather API to resolve.
func TestWeatherService_UnusualCapitalReachesUpstream(t *testing.T) {
	provider := &mockWeatherProvider{snapshot: berlin}
	svc := NewWeatherService(provider, WeatherOptions{APIKey: "key"})

	long := strings.Repeat("x", 150)
	for _, capital := range []string{"Berlin&appid=stolen", long} {
		if _, err := svc.GetSnapshot(context.Background(), capital); err != nil {
			t.Errorf("GetSnapshot(%q) error = %v, want nil", capital, err)
		}
		if provider.capital != capital {
			t.Errorf("provider capital = %q, want %q", provider.capital, capital)
		}
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}
}

// TestWeatherService_MissingAPIKey verifies the credential check runs after
// capital validation and before any upstream call.
func TestWeatherService_MissingAPIKey(t *testing.T) {
	provider := &mockWeatherProvider{snapshot: berlin}
	svc := NewWeatherService(provider, WeatherOptions{})

	_, err := svc.GetSnapshot(context.Background(), "Berlin")
	wantAppErr(t, err, apperr.KindConfig, http.StatusInternalServerError, "Missing OPENWEATHER_API_KEY in environment variables")

	_, err = svc.GetSnapshot(context.Background(), "")
	wantAppErr(t, err, apperr.KindValidation, http.StatusBadRequest, "")

	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls)
	}
}

// TestWeatherService_UpstreamStatusLogged verifies the upstream status and body are
// logged while the returned message names only the capital.
func TestWeatherService_UpstreamStatusLogged(t *testing.T) {
	provider := &mockWeatherProvider{err: &client.StatusError{
		API:        "weather",
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       []byte(`{"cod":"404","message":"city not found"}`),
	}}
	svc := NewWeatherService(provider, WeatherOptions{APIKey: "key"})
	ctx, logs := observedContext(zapcore.DebugLevel)

	_, err := svc.GetSnapshot(ctx, "Atlantis")
	wantAppErr(t, err, apperr.KindUpstream, http.StatusInternalServerError, `failed to fetch weather data for "Atlantis"`)
	if !errors.Is(err, client.ErrUpstreamFailure) {
		t.Errorf("error should wrap ErrUpstreamFailure, got %v", err)
	}

	entries := logs.FilterMessage("weather API error").All()
	if len(entries) != 1 {
		t.Fatalf("weather API error log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusNotFound) {
		t.Errorf("logged status = %v, want 404", fields["status"])
	}
	if body, _ := fields["body"].(string); !strings.Contains(body, "city not found") {
		t.Errorf("logged body = %v, want upstream body", fields["body"])
	}
	if fields["category"] != string(client.ErrorCategoryUpstream4xx) {
		t.Errorf("logged category = %v, want upstream_4xx", fields["category"])
	}
}

func TestWeatherService_InvalidPayload(t *testing.T) {
	provider := &mockWeatherProvider{err: fmt.Errorf("%w: missing main or wind", client.ErrInvalidPayload)}
	svc := NewWeatherService(provider, WeatherOptions{APIKey: "key"})

	_, err := svc.GetSnapshot(context.Background(), "Berlin")
	wantAppErr(t, err, apperr.KindValidation, http.StatusInternalServerError, "Missing required fields in weather data")
}

func TestWeatherService_UnknownFailure(t *testing.T) {
	provider := &mockWeatherProvider{err: errors.New("weather: http request failed: connection reset")}
	svc := NewWeatherService(provider, WeatherOptions{APIKey: "key"})

	_, err := svc.GetSnapshot(context.Background(), "Berlin")
	wantAppErr(t, err, apperr.KindUnknown, http.StatusInternalServerError, apperr.GenericMessage)
}

// TestWeatherService_GetWidget_Temperature verifies a widget lookup encodes to exactly one key.
func TestWeatherService_GetWidget_Temperature(t *testing.T) {
	svc := NewWeatherService(&mockWeatherProvider{snapshot: berlin}, WeatherOptions{APIKey: "key"})

	patch, err := svc.GetWidget(context.Background(), "Berlin", "temperature")
	if err != nil {
		t.Fatalf("GetWidget() error = %v", err)
	}
	b, err := json.Marshal(patch)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := map[string]interface{}{
		"temperature": map[string]interface{}{"min": 10.0, "max": 15.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("widget body mismatch (-want +got):\n%s", diff)
	}
}

func TestWeatherService_GetWidget_EachMetric(t *testing.T) {
	svc := NewWeatherService(&mockWeatherProvider{snapshot: berlin}, WeatherOptions{APIKey: "key"})

	for _, w := range models.Widgets {
		t.Run(string(w), func(t *testing.T) {
			patch, err := svc.GetWidget(context.Background(), "Berlin", string(w))
			if err != nil {
				t.Fatalf("GetWidget() error = %v", err)
			}
			for _, other := range models.Widgets {
				if patch.Has(other) != (other == w) {
					t.Errorf("patch.Has(%s) = %v", other, patch.Has(other))
				}
			}
		})
	}
}

func TestWeatherService_GetWidget_Invalid(t *testing.T) {
	svc := NewWeatherService(&mockWeatherProvider{snapshot: berlin}, WeatherOptions{APIKey: "key"})

	_, err := svc.GetWidget(context.Background(), "Berlin", "bogus")
	wantAppErr(t, err, apperr.KindValidation, http.StatusBadRequest, `Invalid widget: "bogus"`)
}

// TestWeatherService_GetWidget_UpstreamFailureWins verifies the widget name is only
// checked once the upstream lookup has succeeded.
func TestWeatherService_GetWidget_UpstreamFailureWins(t *testing.T) {
	provider := &mockWeatherProvider{err: &client.StatusError{API: "weather", StatusCode: http.StatusBadGateway}}
	svc := NewWeatherService(provider, WeatherOptions{APIKey: "key"})

	_, err := svc.GetWidget(context.Background(), "Berlin", "bogus")
	wantAppErr(t, err, apperr.KindUpstream, http.StatusInternalServerError, "")
}
