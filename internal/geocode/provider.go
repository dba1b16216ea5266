// Package geocode resolves addresses to coordinates via Nominatim (primary)
// and the Google Geocoding API (optional fallback).
package geocode

import "context"

// Result holds the geocoding output for one address.
type Result struct {
	Lat      float64
	Lon      float64
	Provider string // "nominatim" or "google"
	Quality  string // "rooftop", "interpolated", "centroid", "approximate"
	Matched  bool
}

// Suggestion is a labeled candidate returned for reference-address lookups.
type Suggestion struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	// Available reports whether the provider is configured and usable.
	Available() bool
	// Geocode resolves a one-line address query. A provider that gets a
	// well-formed "no match" response returns Matched=false with a nil error.
	Geocode(ctx context.Context, query string) (*Result, error)
}
