// Package directions fetches driving routes from an OSRM-compatible server.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/route-plotter/backend/internal/models"
)

// DefaultBaseURL is the public OSRM demo server.
const DefaultBaseURL = "https://router.project-osrm.org"

// ErrNoRoute is returned when the router cannot connect the two points.
var ErrNoRoute = errors.New("directions: no route found")

// Client fetches routes over HTTP.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the OSRM server (self-hosted setups, tests).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithProfile sets the routing profile (default "driving").
func WithProfile(profile string) Option {
	return func(c *Client) { c.profile = profile }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a directions client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		profile:    "driving",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// osrmResponse mirrors the relevant parts of the OSRM route payload.
type osrmResponse struct {
	Code   string      `json:"code"`
	Routes []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
	Geometry string    `json:"geometry"` // encoded polyline
	Legs     []osrmLeg `json:"legs"`
}

type osrmLeg struct {
	Summary string `json:"summary"`
}

// Route fetches a route from (fromLat, fromLon) to (toLat, toLon). The
// returned geometry is ordered origin -> destination.
func (c *Client) Route(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (*models.Route, error) {
	reqURL := fmt.Sprintf("%s/route/v1/%s/%s,%s;%s,%s?overview=full&geometries=polyline",
		c.baseURL, c.profile,
		coord(fromLon), coord(fromLat),
		coord(toLon), coord(toLat),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("directions: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions: request failed: %w", err)
	}
	defer resp.Body.Close()

	// OSRM returns 400 with a code field for routing failures; decode the
	// body before rejecting on status.
	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("directions: upstream status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("directions: decoding response: %w", err)
	}

	if decoded.Code == "NoRoute" || decoded.Code == "NoSegment" {
		return nil, ErrNoRoute
	}
	if decoded.Code != "Ok" {
		return nil, fmt.Errorf("directions: upstream code %s", decoded.Code)
	}
	if len(decoded.Routes) == 0 {
		return nil, ErrNoRoute
	}

	best := decoded.Routes[0]
	route := &models.Route{
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
		Geometry:        DecodePolyline(best.Geometry),
	}
	if len(best.Legs) > 0 {
		route.Summary = best.Legs[0].Summary
	}

	return route, nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
