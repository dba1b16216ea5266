// handlers_geocode.go - Reference address lookup handlers
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// GeocodeHandlerImpl implements the GeocodeHandler interface
type GeocodeHandlerImpl struct {
	suggester Suggester
}

// NewGeocodeHandler creates a new geocode handler instance
func NewGeocodeHandler(suggester Suggester) GeocodeHandler {
	return &GeocodeHandlerImpl{suggester: suggester}
}

// HandleSuggest returns labeled candidates for a partial reference address.
// The frontend uses the first candidate's coordinates to preview the
// reference marker before starting a plot.
func (h *GeocodeHandlerImpl) HandleSuggest(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if len(query) < 3 {
		return NewValidationError("q")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 10 {
		limit = 5
	}

	suggestions, err := h.suggester.Suggest(c.Request().Context(), query, limit)
	if err != nil {
		return NewUpstreamError("address lookup failed", err)
	}

	return c.JSON(http.StatusOK, suggestions)
}
