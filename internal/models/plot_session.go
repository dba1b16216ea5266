package models

// SessionStatus represents the status of a plot session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusParsing   SessionStatus = "parsing"
	SessionStatusGeocoding SessionStatus = "geocoding"
	SessionStatusRouting   SessionStatus = "routing"
	SessionStatusComplete  SessionStatus = "complete"
	SessionStatusError     SessionStatus = "error"
)

// PlotSession tracks one upload-to-map job: parse the CSV, geocode the
// reference and every row, then fetch a driving route per destination.
type PlotSession struct {
	ID               string         `json:"id"`
	FileID           string         `json:"fileId"`
	Status           SessionStatus  `json:"status"`
	Progress         float64        `json:"progress"` // 0-100
	AddressCount     int            `json:"addressCount,omitempty"`
	GeocodedCount    int            `json:"geocodedCount,omitempty"`
	RoutedCount      int            `json:"routedCount,omitempty"`
	FailedCount      int            `json:"failedCount,omitempty"`
	Reference        *GeocodedPoint `json:"reference,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
	Errors           []RowError     `json:"errors,omitempty"`
}

// RowError records a per-row failure without aborting the batch.
type RowError struct {
	Row     int    `json:"row"`
	Content string `json:"content,omitempty"`
	Stage   string `json:"stage"` // "parse", "geocode", "route"
	Reason  string `json:"reason"`
}

// NewPlotSession creates a new PlotSession in pending status.
func NewPlotSession(id, fileID string) *PlotSession {
	return &PlotSession{
		ID:       id,
		FileID:   fileID,
		Status:   SessionStatusPending,
		Progress: 0,
		Errors:   make([]RowError, 0),
	}
}
