// routes.go - Route registration for the plot API
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/route-plotter/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store             storage.Store
	SessionMgr        SessionManager
	Suggester         Suggester
	Version           string
	AllowedFileTypes  string
	AllowFileDeletion bool
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Plot      PlotHandler
	Geocode   GeocodeHandler
	WebSocket *WebSocketHandler

	allowFileDeletion bool
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:            NewHealthHandler(deps.Version),
		Upload:            NewUploadHandler(deps.Store, deps.AllowedFileTypes),
		Plot:              NewPlotHandler(deps.Store, deps.SessionMgr),
		Geocode:           NewGeocodeHandler(deps.Suggester),
		WebSocket:         NewWebSocketHandler(deps.SessionMgr),
		allowFileDeletion: deps.AllowFileDeletion,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.HTTPErrorHandler = ErrorHandler

	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// WebSocket progress endpoint
	apiGroup.GET("/ws/plots", handlers.WebSocket.HandleWebSocket)

	// File management
	fileGroup := apiGroup.Group("/files")
	fileGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	fileGroup.POST("/upload/json", handlers.Upload.HandleUploadJSON)
	fileGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Upload.HandleGetFile)
	fileGroup.PUT("/:id", handlers.Upload.HandleRenameFile)
	if handlers.allowFileDeletion {
		fileGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	}

	// Reference address lookup
	apiGroup.GET("/geocode", handlers.Geocode.HandleSuggest)

	// Plot sessions
	plotGroup := apiGroup.Group("/plots")
	plotGroup.POST("", handlers.Plot.HandleStartPlot)
	plotGroup.GET("/:sessionId/status", handlers.Plot.HandlePlotStatus)
	plotGroup.POST("/:sessionId/keepalive", handlers.Plot.HandleSessionKeepAlive)
	plotGroup.GET("/:sessionId/progress", handlers.Plot.HandlePlotProgressStream)
	plotGroup.GET("/:sessionId/points", handlers.Plot.HandleGetPoints)
	plotGroup.GET("/:sessionId/points/msgpack", handlers.Plot.HandleGetPointsMsgpack)
	plotGroup.GET("/:sessionId/routes", handlers.Plot.HandleGetRoutes)
	plotGroup.GET("/:sessionId/routes/:index", handlers.Plot.HandleGetRoute)
}
