package models

import "strings"

// Address is a single destination parsed from an uploaded CSV row.
type Address struct {
	Row    int    `json:"row"` // 1-based CSV row number (including header)
	Label  string `json:"label,omitempty"`
	Street string `json:"street"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
	Raw    string `json:"raw,omitempty"` // original line for single-column CSVs
}

// Query returns the one-line address string sent to geocoding providers.
func (a Address) Query() string {
	if a.Raw != "" && a.City == "" && a.State == "" && a.Zip == "" {
		return a.Raw
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State, a.Zip} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// IsEmpty reports whether the address carries no usable fields.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Street) == "" && strings.TrimSpace(a.Raw) == ""
}

// GeocodedPoint is an address resolved to map coordinates.
type GeocodedPoint struct {
	Address  Address `json:"address"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Provider string  `json:"provider"` // "nominatim" or "google"
	Quality  string  `json:"quality,omitempty"`
	Matched  bool    `json:"matched"`
}
