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
)

const (
	msgCountriesFormat = "Unexpected API response format. Expected an array."
	msgCountriesFailed = "Failed to fetch countries"
)

// CountryService lists the countries that have a usable capital. Caching of the
// directory is the fetch layer's concern; the service only normalizes.
type CountryService struct {
	dir client.CountryDirectory
}

// NewCountryService creates a CountryService over the given directory client.
func NewCountryService(dir client.CountryDirectory) *CountryService {
	return &CountryService{dir: dir}
}

// ListCountries returns every directory record that has a name, a capital and a code,
// in directory order. Errors are *apperr.Error values whose message is safe to return.
func (s *CountryService) ListCountries(ctx context.Context) ([]models.Country, error) {
	logger := observability.LoggerFrom(ctx)

	raw, err := s.dir.FetchAll(ctx)
	if err != nil {
		logger.Error("countries fetch failed",
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
		return nil, countriesError(err)
	}

	countries := normalizeCountries(raw)
	logger.Debug("countries served", zap.Int("received", len(raw)), zap.Int("kept", len(countries)))
	return countries, nil
}

// Warm fetches the directory once so the fetch cache is hot before the first page load.
func (s *CountryService) Warm(ctx context.Context) error {
	start := time.Now()
	logger := observability.LoggerFrom(ctx)
	observability.CacheWarmingTotal.Inc()
	logger.Info("warming country directory")

	countries, err := s.ListCountries(ctx)
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if err != nil {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("warm countries: %w", err)
	}
	logger.Info("country directory warm", zap.Int("countries", len(countries)), zap.Float64("duration_seconds", duration))
	return nil
}

func countriesError(err error) *apperr.Error {
	var se *client.StatusError
	switch {
	case errors.As(err, &se):
		return apperr.Upstream(msgCountriesFailed+": "+se.StatusText(), err)
	case errors.Is(err, client.ErrInvalidPayload):
		return apperr.Upstream(msgCountriesFormat, err)
	default:
		return apperr.Upstream(msgCountriesFailed, err)
	}
}

// normalizeCountries maps raw records to Country, dropping any with an empty field.
func normalizeCountries(raw []client.RawCountry) []models.Country {
	out := make([]models.Country, 0, len(raw))
	for _, rc := range raw {
		c := models.Country{Name: rc.Name.Common, Code: rc.CCA2}
		if len(rc.Capital) > 0 {
			c.Capital = rc.Capital[0]
		}
		if c.Name == "" || c.Capital == "" || c.Code == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
