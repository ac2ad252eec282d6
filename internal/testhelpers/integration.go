//go:build integration
// +build integration

// Package testhelpers wires real upstream clients for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/capital-weather-dashboard/internal/cache"
	"github.com/kjstillabower/capital-weather-dashboard/internal/client"
	"github.com/kjstillabower/capital-weather-dashboard/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	CountriesURL  string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if OPENWEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("OPENWEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("OPENWEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultWeatherURL
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		CountriesURL:  client.DefaultCountriesURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationServices builds both lookup services against the live APIs.
// The country list is cached indefinitely; weather is not cached.
func SetupIntegrationServices(t *testing.T, cfg IntegrationTestConfig) (*service.CountryService, *service.WeatherService, func()) {
	t.Helper()

	var cacheSvc cache.Cache
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}
	if cacheSvc == nil {
		cacheSvc = cache.NewInMemoryCache()
	}

	countriesClient := client.NewRestCountriesClient(cfg.CountriesURL, 15*time.Second, cacheSvc, client.FetchPolicy{Enabled: true})
	weatherClient := client.NewOpenWeatherClient(cfg.APIURL, 5*time.Second, cacheSvc, client.FetchPolicy{})

	countries := service.NewCountryService(countriesClient)
	weather := service.NewWeatherService(weatherClient, service.WeatherOptions{APIKey: cfg.APIKey})
	return countries, weather, cleanup
}
