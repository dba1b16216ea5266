// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/route-plotter/backend/internal/geocode"
	"github.com/route-plotter/backend/internal/models"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadJSON(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// PlotHandler handles plot session operations
type PlotHandler interface {
	HandleStartPlot(c echo.Context) error
	HandlePlotStatus(c echo.Context) error
	HandlePlotProgressStream(c echo.Context) error
	HandleGetPoints(c echo.Context) error
	HandleGetPointsMsgpack(c echo.Context) error
	HandleGetRoutes(c echo.Context) error
	HandleGetRoute(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// GeocodeHandler handles reference address lookups
type GeocodeHandler interface {
	HandleSuggest(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for plot session management.
// This allows mocking in tests.
type SessionManager interface {
	StartPlot(fileID, filePath string, reference models.Address) (*models.PlotSession, error)
	GetSession(id string) (*models.PlotSession, bool)
	TouchSession(id string) bool
	GetPoints(id string) (*models.GeocodedPoint, []models.GeocodedPoint, bool)
	GetRoutes(id string) ([]models.Route, bool)
	GetRoute(id string, index int) (*models.Route, bool)
	CleanupOldSessions(maxAge time.Duration)
}

// Suggester is the subset of the geocode client the suggestion endpoint needs.
type Suggester interface {
	Suggest(ctx context.Context, query string, limit int) ([]geocode.Suggestion, error)
}
