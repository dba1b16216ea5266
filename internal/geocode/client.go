package geocode

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/route-plotter/backend/internal/models"
)

// Client geocodes addresses, trying Nominatim first and Google when
// configured. Unmatched addresses are not errors.
type Client interface {
	// Geocode resolves a single address.
	Geocode(ctx context.Context, addr models.Address) (*Result, error)

	// Suggest returns labeled candidates for a partial reference address.
	Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error)
}

// Cache stores geocode results (including non-matches) between runs.
type Cache interface {
	Lookup(ctx context.Context, key string) (*Result, bool)
	Store(ctx context.Context, key string, result *Result) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client for all provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) { g.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit applied to every provider
// call, fallback calls included.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithGoogleAPIKey enables the Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) { g.googleKey = key }
}

// WithNominatimBaseURL overrides the Nominatim instance (self-hosted setups,
// tests).
func WithNominatimBaseURL(base string) Option {
	return func(g *geocoder) { g.nominatimBase = base }
}

// WithGoogleBaseURL overrides the Google endpoint (tests).
func WithGoogleBaseURL(base string) Option {
	return func(g *geocoder) { g.googleBase = base }
}

// WithUserAgent sets the User-Agent sent to Nominatim.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) { g.userAgent = ua }
}

// WithCountryCodes biases Nominatim results to a comma-separated country list.
func WithCountryCodes(codes string) Option {
	return func(g *geocoder) { g.countryCodes = codes }
}

// WithCache attaches a persistent result cache.
func WithCache(cache Cache) Option {
	return func(g *geocoder) { g.cache = cache }
}

type geocoder struct {
	httpClient    *http.Client
	limiter       *rate.Limiter
	cache         Cache
	nominatimBase string
	googleBase    string
	googleKey     string
	userAgent     string
	countryCodes  string

	nominatim *NominatimProvider
	google    *GoogleProvider
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(1, 1), // public Nominatim policy: 1 req/s
		userAgent:  "RoutePlotter/1.0",
	}
	for _, opt := range opts {
		opt(g)
	}

	g.nominatim = NewNominatimProvider(g.nominatimBase, g.userAgent, g.countryCodes, g.httpClient)
	g.google = NewGoogleProvider(g.googleBase, g.googleKey, g.httpClient)

	return g
}

// Geocode resolves a single address: cache, then Nominatim, then Google.
func (g *geocoder) Geocode(ctx context.Context, addr models.Address) (*Result, error) {
	query := addr.Query()
	if query == "" {
		return &Result{Matched: false}, nil
	}

	key := CacheKey(addr)
	if g.cache != nil {
		if cached, ok := g.cache.Lookup(ctx, key); ok {
			return cached, nil
		}
	}

	result, err := g.tryProviders(ctx, query)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		// Cache failures are non-fatal; the result is still usable.
		_ = g.cache.Store(ctx, key, result)
	}

	return result, nil
}

func (g *geocoder) tryProviders(ctx context.Context, query string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode: rate limit: %w", err)
	}

	result, nomErr := g.nominatim.Geocode(ctx, query)
	if nomErr == nil && result.Matched {
		return result, nil
	}

	if g.google.Available() {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("geocode: rate limit: %w", err)
		}
		googleResult, googleErr := g.google.Geocode(ctx, query)
		if googleErr == nil && googleResult.Matched {
			return googleResult, nil
		}
	}

	if nomErr != nil {
		return nil, nomErr
	}

	// No provider matched; not an error, just unmatched.
	return &Result{Matched: false}, nil
}

// Suggest returns labeled candidates for the reference address box.
// Suggestions always come from Nominatim; the Google fallback is reserved
// for batch rows.
func (g *geocoder) Suggest(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode: rate limit: %w", err)
	}
	return g.nominatim.Search(ctx, query, limit)
}
