package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/route-plotter/backend/internal/geocode"
)

// stubSuggester records the query and returns canned suggestions.
type stubSuggester struct {
	query       string
	limit       int
	suggestions []geocode.Suggestion
	err         error
}

func (s *stubSuggester) Suggest(ctx context.Context, query string, limit int) ([]geocode.Suggestion, error) {
	s.query = query
	s.limit = limit
	return s.suggestions, s.err
}

func TestSuggest(t *testing.T) {
	e := echo.New()
	stub := &stubSuggester{
		suggestions: []geocode.Suggestion{
			{Label: "Springfield, IL", Lat: 39.78, Lon: -89.65},
		},
	}
	h := NewGeocodeHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/geocode?q=Springfield&limit=3", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, h.HandleSuggest(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Springfield, IL")
	}
	assert.Equal(t, "Springfield", stub.query)
	assert.Equal(t, 3, stub.limit)
}

func TestSuggestQueryTooShort(t *testing.T) {
	e := echo.New()
	h := NewGeocodeHandler(&stubSuggester{})

	req := httptest.NewRequest(http.MethodGet, "/api/geocode?q=ab", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleSuggest(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestSuggestClampsLimit(t *testing.T) {
	e := echo.New()
	stub := &stubSuggester{}
	h := NewGeocodeHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/geocode?q=Springfield&limit=50", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleSuggest(c))
	assert.Equal(t, 5, stub.limit)
}

func TestSuggestUpstreamFailure(t *testing.T) {
	e := echo.New()
	h := NewGeocodeHandler(&stubSuggester{err: errors.New("nominatim down")})

	req := httptest.NewRequest(http.MethodGet, "/api/geocode?q=Springfield", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleSuggest(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "UPSTREAM_ERROR", apiErr.Code)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := NewHealthHandler("1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, h.HandleHealth(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
		assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	}
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(NewNotFoundError("session", "ghost"), c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
	assert.Contains(t, rec.Body.String(), "session not found: ghost")
}

func TestErrorHandlerWrapsUnknown(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(errors.New("something odd"), c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNKNOWN_ERROR"`)
}
