package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kjstillabower/capital-weather-dashboard/internal/cache"
)

// DefaultCountriesURL requests only the fields the dashboard uses.
const DefaultCountriesURL = "https://restcountries.com/v3.1/all?fields=name,capital,cca2"

// CountryDirectory fetches the raw country records of the directory API.
type CountryDirectory interface {
	FetchAll(ctx context.Context) ([]RawCountry, error)
}

// RawCountry is one directory record as the API returns it. Any field may be absent.
type RawCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Capital []string `json:"capital"`
	CCA2    string   `json:"cca2"`
}

// RestCountriesClient reads the REST Countries v3.1 directory.
type RestCountriesClient struct {
	url     string
	fetcher *fetcher
}

// NewRestCountriesClient returns a client for the directory at url. c may be nil
// to disable the fetch cache regardless of policy.
func NewRestCountriesClient(url string, timeout time.Duration, c cache.Cache, policy FetchPolicy) *RestCountriesClient {
	if url == "" {
		url = DefaultCountriesURL
	}
	return &RestCountriesClient{
		url:     url,
		fetcher: newFetcher("countries", timeout, c, policy),
	}
}

// FetchAll returns every record of the directory in API order. The payload must be
// a JSON array (ErrInvalidPayload otherwise); elements that do not decode as a
// country object are skipped.
func (c *RestCountriesClient) FetchAll(ctx context.Context) ([]RawCountry, error) {
	body, err := c.fetcher.get(ctx, c.url, c.url, checkArray)
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	out := make([]RawCountry, 0, len(elems))
	for _, e := range elems {
		var rc RawCountry
		if err := json.Unmarshal(e, &rc); err != nil {
			continue
		}
		out = append(out, rc)
	}
	return out, nil
}

// checkArray accepts only a top-level JSON array.
func checkArray(body []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return fmt.Errorf("%w: expected an array: %v", ErrInvalidPayload, err)
	}
	if elems == nil {
		// JSON null decodes without error.
		return fmt.Errorf("%w: expected an array, got null", ErrInvalidPayload)
	}
	return nil
}
