// Package places is a thin client for the Google Places text search API.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"reelocator/internal/models"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"

// Client searches for points of interest around a city. The API key is
// required at construction; a missing key is a configuration failure, not
// a per-request one.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("places: API key is not set")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 20 * time.Second},
	}, nil
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           float64  `json:"rating"`
		Types            []string `json:"types"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Search queries "<placeType> in <city>" and returns at most maxResults
// places.
func (c *Client) Search(ctx context.Context, city, placeType string, maxResults int) ([]models.Place, error) {
	if placeType == "" {
		placeType = "tourist_attraction"
	}
	if maxResults < 1 {
		maxResults = 15
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf("%s in %s", placeType, city))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("places: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: unexpected status %s", resp.Status)
	}

	var payload textSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("places: decode response: %w", err)
	}
	if payload.Status != "OK" && payload.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places: API status %s", payload.Status)
	}

	results := make([]models.Place, 0, maxResults)
	for _, r := range payload.Results {
		if len(results) == maxResults {
			break
		}
		results = append(results, models.Place{
			Name:    r.Name,
			Address: r.FormattedAddress,
			Rating:  r.Rating,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			Types:   r.Types,
		})
	}
	return results, nil
}
