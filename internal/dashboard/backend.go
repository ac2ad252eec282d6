// Package dashboard holds the per-session state of the weather dashboard page:
// the country list, the selected country, the current snapshot and the state of
// each widget.
package dashboard

import (
	"context"

	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
)

// Backend is what a session needs from the two lookup services.
type Backend interface {
	Countries(ctx context.Context) ([]models.Country, error)
	Snapshot(ctx context.Context, capital string) (models.WeatherSnapshot, error)
	Widget(ctx context.Context, capital string, w models.Widget) (models.SnapshotPatch, error)
}

// CountryLister is satisfied by service.CountryService.
type CountryLister interface {
	ListCountries(ctx context.Context) ([]models.Country, error)
}

// WeatherLookup is satisfied by service.WeatherService.
type WeatherLookup interface {
	GetSnapshot(ctx context.Context, capital string) (models.WeatherSnapshot, error)
	GetWidget(ctx context.Context, capital, widget string) (models.SnapshotPatch, error)
}

// LocalBackend calls the lookup services in-process.
type LocalBackend struct {
	countries CountryLister
	weather   WeatherLookup
}

// NewLocalBackend returns a Backend over in-process services.
func NewLocalBackend(countries CountryLister, weather WeatherLookup) *LocalBackend {
	return &LocalBackend{countries: countries, weather: weather}
}

func (b *LocalBackend) Countries(ctx context.Context) ([]models.Country, error) {
	return b.countries.ListCountries(ctx)
}

func (b *LocalBackend) Snapshot(ctx context.Context, capital string) (models.WeatherSnapshot, error) {
	return b.weather.GetSnapshot(ctx, capital)
}

func (b *LocalBackend) Widget(ctx context.Context, capital string, w models.Widget) (models.SnapshotPatch, error) {
	return b.weather.GetWidget(ctx, capital, string(w))
}
