package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/capital-weather-dashboard/internal/apperr"
	"github.com/kjstillabower/capital-weather-dashboard/internal/client"
	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
	"github.com/kjstillabower/capital-weather-dashboard/internal/validation"
)

const (
	msgNoCapital     = "No capital provided in query parameters"
	msgMissingAPIKey = "Missing OPENWEATHER_API_KEY in environment variables"
	msgMissingFields = "Missing required fields in weather data"
)

// WeatherOptions is the construction-time configuration of WeatherService.
type WeatherOptions struct {
	// APIKey is the OpenWeather credential. Empty is allowed; each lookup then fails with a config error.
	APIKey string
}

// WeatherService looks up current conditions for a capital and reshapes them into
// the dashboard's metric set.
type WeatherService struct {
	provider client.WeatherProvider
	apiKey   string
}

// NewWeatherService creates a WeatherService with the provided provider and options.
func NewWeatherService(provider client.WeatherProvider, opts WeatherOptions) *WeatherService {
	return &WeatherService{
		provider: provider,
		apiKey:   opts.APIKey,
	}
}

// GetSnapshot returns the full snapshot for capital.
func (s *WeatherService) GetSnapshot(ctx context.Context, capital string) (models.WeatherSnapshot, error) {
	start := time.Now()
	logger := observability.LoggerFrom(ctx)

	snap, err := s.fetch(ctx, capital)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	logger.Debug("weather served", zap.String("capital", capital), zap.Duration("duration", time.Since(start)))
	return snap, nil
}

// GetWidget returns a patch holding only the named metric. The widget name is
// checked after the upstream lookup, so an upstream failure wins over a bad name.
func (s *WeatherService) GetWidget(ctx context.Context, capital, widget string) (models.SnapshotPatch, error) {
	logger := observability.LoggerFrom(ctx)

	snap, err := s.fetch(ctx, capital)
	if err != nil {
		return models.SnapshotPatch{}, err
	}

	w, err := models.ParseWidget(widget)
	if err != nil {
		logger.Warn("invalid widget", zap.String("widget", widget))
		return models.SnapshotPatch{}, apperr.Validation(fmt.Sprintf("Invalid widget: %q", widget))
	}
	patch, err := snap.Patch(w)
	if err != nil {
		return models.SnapshotPatch{}, apperr.Unknown(err)
	}
	logger.Debug("widget served", zap.String("capital", capital), zap.String("widget", string(w)))
	return patch, nil
}

func (s *WeatherService) fetch(ctx context.Context, capital string) (models.WeatherSnapshot, error) {
	logger := observability.LoggerFrom(ctx)

	valid, err := validation.ValidateCapital(capital)
	if err != nil {
		logger.Warn("no capital provided")
		return models.WeatherSnapshot{}, apperr.Validation(msgNoCapital)
	}

	if s.apiKey == "" {
		logger.Error("missing weather API key")
		return models.WeatherSnapshot{}, apperr.Config(msgMissingAPIKey)
	}

	snap, err := s.provider.CurrentWeather(ctx, valid, s.apiKey)
	if err != nil {
		return models.WeatherSnapshot{}, weatherError(logger, valid, err)
	}
	return snap, nil
}

// weatherError logs the upstream detail and classifies err. None of the
// upstream body reaches the returned message.
func weatherError(logger *zap.Logger, capital string, err error) *apperr.Error {
	category := string(client.CategorizeError(err))

	var se *client.StatusError
	switch {
	case errors.As(err, &se):
		logger.Error("weather API error",
			zap.String("capital", capital),
			zap.Int("status", se.StatusCode),
			zap.ByteString("body", se.Body),
			zap.String("category", category))
		return apperr.Upstream(fmt.Sprintf("failed to fetch weather data for %q", capital), err)
	case errors.Is(err, client.ErrInvalidPayload):
		logger.Error("weather payload rejected", zap.String("capital", capital), zap.Error(err))
		return apperr.InvalidPayload(msgMissingFields, err)
	default:
		logger.Error("weather fetch failed", zap.String("capital", capital), zap.String("category", category), zap.Error(err))
		return apperr.Unknown(err)
	}
}
