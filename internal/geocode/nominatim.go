package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultNominatimBaseURL is the public OSM Nominatim instance.
const DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimProvider geocodes via a Nominatim search endpoint. The public
// instance requires a descriptive User-Agent and at most 1 req/s; the rate
// limit is enforced by the composite client.
type NominatimProvider struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
}

// NewNominatimProvider creates a Nominatim provider.
func NewNominatimProvider(baseURL, userAgent, countryCodes string, hc *http.Client) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimBaseURL
	}
	return &NominatimProvider{
		baseURL:      baseURL,
		userAgent:    userAgent,
		countryCodes: countryCodes,
		httpClient:   hc,
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return true }

// nominatimResult mirrors the relevant parts of the OSM search payload.
type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Class       string `json:"class"`
	Type        string `json:"type"`
}

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	results, err := p.search(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Result{Matched: false, Provider: p.Name()}, nil
	}
	return p.toResult(results[0])
}

// Search returns up to limit labeled candidates for a query. Used by the
// reference-address suggestion endpoint.
func (p *NominatimProvider) Search(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	if limit < 1 {
		limit = 5
	}
	results, err := p.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(results))
	for _, raw := range results {
		r, err := p.toResult(raw)
		if err != nil {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Label: raw.DisplayName,
			Lat:   r.Lat,
			Lon:   r.Lon,
		})
	}
	return suggestions, nil
}

func (p *NominatimProvider) search(ctx context.Context, query string, limit int) ([]nominatimResult, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("limit", strconv.Itoa(limit))
	if p.countryCodes != "" {
		params.Add("countrycodes", p.countryCodes)
	}

	reqURL := fmt.Sprintf("%s/search?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nominatim: building request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim: upstream status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("nominatim: decoding response: %w", err)
	}
	return results, nil
}

func (p *NominatimProvider) toResult(raw nominatimResult) (*Result, error) {
	lat, err := strconv.ParseFloat(raw.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: invalid latitude %q", raw.Lat)
	}
	lon, err := strconv.ParseFloat(raw.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: invalid longitude %q", raw.Lon)
	}

	return &Result{
		Lat:      lat,
		Lon:      lon,
		Provider: p.Name(),
		Quality:  nominatimQuality(raw.Class, raw.Type),
		Matched:  true,
	}, nil
}

// nominatimQuality maps OSM class/type to our quality taxonomy.
func nominatimQuality(class, osmType string) string {
	switch {
	case class == "building" || osmType == "house":
		return "rooftop"
	case class == "highway":
		return "interpolated"
	case osmType == "city" || osmType == "town" || osmType == "village" || osmType == "administrative":
		return "centroid"
	default:
		return "approximate"
	}
}
