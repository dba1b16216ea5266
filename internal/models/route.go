package models

// LatLng is a single coordinate pair in map order (latitude first).
type LatLng [2]float64

// Route is a driving route from the reference point to one destination.
type Route struct {
	DestinationRow  int      `json:"destinationRow"` // CSV row of the destination address
	DistanceMeters  float64  `json:"distanceMeters"`
	DurationSeconds float64  `json:"durationSeconds"`
	Summary         string   `json:"summary,omitempty"`
	Geometry        []LatLng `json:"geometry"` // ordered reference -> destination
}
