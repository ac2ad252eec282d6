package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kjstillabower/capital-weather-dashboard/internal/cache"
	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
)

// DefaultWeatherURL is the OpenWeather current-weather endpoint.
const DefaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// WeatherProvider returns current conditions for a city in metric units.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, capital, apiKey string) (models.WeatherSnapshot, error)
}

// OpenWeatherClient reads current conditions from OpenWeather. The API key is
// supplied per call by the service that owns the credential.
type OpenWeatherClient struct {
	apiURL  string
	fetcher *fetcher
}

// NewOpenWeatherClient returns a client for apiURL. c may be nil to disable the fetch cache.
func NewOpenWeatherClient(apiURL string, timeout time.Duration, c cache.Cache, policy FetchPolicy) *OpenWeatherClient {
	if apiURL == "" {
		apiURL = DefaultWeatherURL
	}
	return &OpenWeatherClient{
		apiURL:  apiURL,
		fetcher: newFetcher("weather", timeout, c, policy),
	}
}

// openWeatherResponse is the subset of the payload the dashboard reads. Pointers
// distinguish absent fields from zero values.
type openWeatherResponse struct {
	Main *struct {
		TempMin  *float64 `json:"temp_min"`
		TempMax  *float64 `json:"temp_max"`
		Humidity *float64 `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

// CurrentWeather fetches and schema-checks current conditions for capital.
// Non-2xx responses return *StatusError; payloads missing required fields return ErrInvalidPayload.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, capital, apiKey string) (models.WeatherSnapshot, error) {
	reqURL, cacheKey, err := c.buildURL(capital, apiKey)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	body, err := c.fetcher.get(ctx, reqURL, cacheKey, func(b []byte) error {
		_, err := decodeSnapshot(b)
		return err
	})
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	return decodeSnapshot(body)
}

// buildURL returns the request URL and a credential-free key for the same request.
func (c *OpenWeatherClient) buildURL(capital, apiKey string) (string, string, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("q", capital)
	params.Set("units", "metric")
	keyURL := *baseURL
	keyURL.RawQuery = params.Encode()

	params.Set("appid", apiKey)
	baseURL.RawQuery = params.Encode()
	return baseURL.String(), strings.ToLower(keyURL.String()), nil
}

// decodeSnapshot maps the payload verbatim onto the snapshot schema.
func decodeSnapshot(body []byte) (models.WeatherSnapshot, error) {
	var resp openWeatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse response: %v", ErrInvalidPayload, err)
	}
	if resp.Main == nil || resp.Wind == nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing main or wind", ErrInvalidPayload)
	}

	var missing []string
	m := resp.Main
	for name, v := range map[string]*float64{
		"main.temp_min": m.TempMin,
		"main.temp_max": m.TempMax,
		"main.humidity": m.Humidity,
		"main.pressure": m.Pressure,
		"wind.speed":    resp.Wind.Speed,
	} {
		if v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return models.WeatherSnapshot{}, fmt.Errorf("%w: missing %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}

	return models.WeatherSnapshot{
		Temperature: models.Temperature{Min: *m.TempMin, Max: *m.TempMax},
		Humidity:    *m.Humidity,
		Pressure:    *m.Pressure,
		WindSpeed:   *resp.Wind.Speed,
	}, nil
}
