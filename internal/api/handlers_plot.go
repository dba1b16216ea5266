// handlers_plot.go - Plot session operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/route-plotter/backend/internal/models"
	"github.com/route-plotter/backend/internal/storage"
)

// PlotHandlerImpl implements the PlotHandler interface
type PlotHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
}

// NewPlotHandler creates a new plot handler instance
func NewPlotHandler(store storage.Store, sessionMgr SessionManager) PlotHandler {
	return &PlotHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
	}
}

// startPlotRequest carries the uploaded file ID and the reference address.
// The reference can be structured fields or a single free-form line.
type startPlotRequest struct {
	FileID    string `json:"fileId"`
	Reference struct {
		Address string `json:"address"` // free-form, wins when set
		Street  string `json:"street"`
		City    string `json:"city"`
		State   string `json:"state"`
		Zip     string `json:"zip"`
	} `json:"reference"`
}

func (r *startPlotRequest) validate() error {
	if r.FileID == "" {
		return NewValidationError("fileId")
	}
	if strings.TrimSpace(r.Reference.Address) == "" && strings.TrimSpace(r.Reference.Street) == "" {
		return NewValidationError("reference")
	}
	return nil
}

func (r *startPlotRequest) toAddress() models.Address {
	if free := strings.TrimSpace(r.Reference.Address); free != "" {
		return models.Address{Street: free, Raw: free}
	}
	return models.Address{
		Street: strings.TrimSpace(r.Reference.Street),
		City:   strings.TrimSpace(r.Reference.City),
		State:  strings.TrimSpace(r.Reference.State),
		Zip:    strings.TrimSpace(r.Reference.Zip),
	}
}

// HandleStartPlot starts a new plot session for an uploaded file
func (h *PlotHandlerImpl) HandleStartPlot(c echo.Context) error {
	var req startPlotRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	sess, err := h.sessionMgr.StartPlot(req.FileID, path, req.toAddress())
	if err != nil {
		return NewInternalError("failed to start plot", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandlePlotStatus returns the current status of a plot session
func (h *PlotHandlerImpl) HandlePlotStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *PlotHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandlePlotProgressStream streams plot progress via SSE
func (h *PlotHandlerImpl) HandlePlotProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		h.sendSSEError(c, "session not found")
		return nil
	}

	// Send initial status
	h.sendSSEData(c, sess)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(10 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil

		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				h.sendSSEError(c, "session not found")
				return nil
			}

			// Keep the session alive while a client is streaming it
			h.sessionMgr.TouchSession(id)

			h.sendSSEData(c, sess)

			if sess.Status == models.SessionStatusComplete ||
				sess.Status == models.SessionStatusError {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// pointsResponse is the map payload: reference marker plus destinations.
type pointsResponse struct {
	Reference *models.GeocodedPoint  `json:"reference,omitempty"`
	Points    []models.GeocodedPoint `json:"points"`
}

// HandleGetPoints returns the geocoded points for a session
func (h *PlotHandlerImpl) HandleGetPoints(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	reference, points, ok := h.sessionMgr.GetPoints(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, pointsResponse{
		Reference: reference,
		Points:    points,
	})
}

// HandleGetPointsMsgpack returns the points payload in MessagePack format
// for large uploads.
func (h *PlotHandlerImpl) HandleGetPointsMsgpack(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	reference, points, ok := h.sessionMgr.GetPoints(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.sessionMgr.TouchSession(id)

	data, err := msgpack.Marshal(pointsResponse{
		Reference: reference,
		Points:    points,
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetRoutes returns all routes for a session
func (h *PlotHandlerImpl) HandleGetRoutes(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	routes, ok := h.sessionMgr.GetRoutes(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, routes)
}

// HandleGetRoute returns a single route by index
func (h *PlotHandlerImpl) HandleGetRoute(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return NewValidationError("index")
	}

	route, ok := h.sessionMgr.GetRoute(id, index)
	if !ok {
		return NewNotFoundError("route", fmt.Sprintf("%s/%d", id, index))
	}

	return c.JSON(http.StatusOK, route)
}

func (h *PlotHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *PlotHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}
