package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultGoogleBaseURL is the Google Geocoding API endpoint.
const DefaultGoogleBaseURL = "https://maps.googleapis.com/maps/api/geocode"

// GoogleProvider geocodes via the Google Geocoding API. Used as a fallback
// when an API key is configured and Nominatim finds no match.
type GoogleProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGoogleProvider creates a Google provider. An empty key leaves the
// provider unavailable.
func NewGoogleProvider(baseURL, apiKey string, hc *http.Client) *GoogleProvider {
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	return &GoogleProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: hc,
	}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("google: api key not configured")
	}

	params := url.Values{
		"address": {query},
		"key":     {p.apiKey},
	}

	reqURL := p.baseURL + "/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google: reading response: %w", err)
	}

	var decoded googleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("google: decoding response: %w", err)
	}

	if decoded.Status == "ZERO_RESULTS" {
		return &Result{Matched: false, Provider: p.Name()}, nil
	}
	if decoded.Status != "OK" {
		return nil, fmt.Errorf("google: api status %s", decoded.Status)
	}
	if len(decoded.Results) == 0 {
		return &Result{Matched: false, Provider: p.Name()}, nil
	}

	first := decoded.Results[0]
	return &Result{
		Lat:      first.Geometry.Location.Lat,
		Lon:      first.Geometry.Location.Lng,
		Provider: p.Name(),
		Quality:  googleQuality(first.Geometry.LocationType),
		Matched:  true,
	}, nil
}

// googleQuality maps Google's location_type to our quality taxonomy.
func googleQuality(locType string) string {
	switch locType {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "interpolated"
	case "GEOMETRIC_CENTER":
		return "centroid"
	default:
		return "approximate"
	}
}
