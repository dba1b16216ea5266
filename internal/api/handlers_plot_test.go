package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/route-plotter/backend/internal/models"
	"github.com/route-plotter/backend/internal/testutil"
)

// mockSessionMgr implements SessionManager for handler tests.
type mockSessionMgr struct {
	sessions map[string]*models.PlotSession
	points   map[string][]models.GeocodedPoint
	routes   map[string][]models.Route
	started  []models.Address
	touched  map[string]int
}

func newMockSessionMgr() *mockSessionMgr {
	return &mockSessionMgr{
		sessions: make(map[string]*models.PlotSession),
		points:   make(map[string][]models.GeocodedPoint),
		routes:   make(map[string][]models.Route),
		touched:  make(map[string]int),
	}
}

func (m *mockSessionMgr) StartPlot(fileID, filePath string, reference models.Address) (*models.PlotSession, error) {
	m.started = append(m.started, reference)
	sess := models.NewPlotSession("sess-1", fileID)
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *mockSessionMgr) GetSession(id string) (*models.PlotSession, bool) {
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *mockSessionMgr) TouchSession(id string) bool {
	_, ok := m.sessions[id]
	if ok {
		m.touched[id]++
	}
	return ok
}

func (m *mockSessionMgr) GetPoints(id string) (*models.GeocodedPoint, []models.GeocodedPoint, bool) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil, false
	}
	return sess.Reference, m.points[id], true
}

func (m *mockSessionMgr) GetRoutes(id string) ([]models.Route, bool) {
	if _, ok := m.sessions[id]; !ok {
		return nil, false
	}
	return m.routes[id], true
}

func (m *mockSessionMgr) GetRoute(id string, index int) (*models.Route, bool) {
	routes, ok := m.routes[id]
	if !ok || index < 0 || index >= len(routes) {
		return nil, false
	}
	return &routes[index], true
}

func (m *mockSessionMgr) CleanupOldSessions(maxAge time.Duration) {}

func TestStartPlot(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage()
	store.AddFile("f1", "addresses.csv", []byte("address\n123 Main St\n"))
	mgr := newMockSessionMgr()
	h := NewPlotHandler(store, mgr)

	reqBody := bytes.NewBufferString(`{"fileId":"f1","reference":{"address":"1 Ref Way, Springfield"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/plots", reqBody)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, h.HandleStartPlot(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"sess-1"`)
	}

	require.Len(t, mgr.started, 1)
	assert.Equal(t, "1 Ref Way, Springfield", mgr.started[0].Raw)
}

func TestStartPlotStructuredReference(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage()
	store.AddFile("f1", "addresses.csv", []byte("x"))
	mgr := newMockSessionMgr()
	h := NewPlotHandler(store, mgr)

	reqBody := bytes.NewBufferString(`{"fileId":"f1","reference":{"street":"1 Ref Way","city":"Springfield","state":"IL","zip":"62701"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/plots", reqBody)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleStartPlot(c))
	require.Len(t, mgr.started, 1)
	assert.Equal(t, "1 Ref Way, Springfield, IL, 62701", mgr.started[0].Query())
}

func TestStartPlotValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing fileId", `{"reference":{"address":"somewhere"}}`},
		{"missing reference", `{"fileId":"f1"}`},
		{"blank reference", `{"fileId":"f1","reference":{"address":"  "}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			store := testutil.NewMockStorage()
			store.AddFile("f1", "addresses.csv", []byte("x"))
			h := NewPlotHandler(store, newMockSessionMgr())

			req := httptest.NewRequest(http.MethodPost, "/api/plots", bytes.NewBufferString(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := h.HandleStartPlot(c)
			require.Error(t, err)
			apiErr, ok := err.(*APIError)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		})
	}
}

func TestStartPlotUnknownFile(t *testing.T) {
	e := echo.New()
	h := NewPlotHandler(testutil.NewMockStorage(), newMockSessionMgr())

	reqBody := bytes.NewBufferString(`{"fileId":"ghost","reference":{"address":"somewhere"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/plots", reqBody)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleStartPlot(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestPlotStatus(t *testing.T) {
	e := echo.New()
	mgr := newMockSessionMgr()
	mgr.sessions["sess-1"] = &models.PlotSession{ID: "sess-1", Status: models.SessionStatusGeocoding, Progress: 42}
	h := NewPlotHandler(testutil.NewMockStorage(), mgr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	if assert.NoError(t, h.HandlePlotStatus(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"geocoding"`)
		assert.Contains(t, rec.Body.String(), `"progress":42`)
	}
}

func TestPlotStatusNotFound(t *testing.T) {
	e := echo.New()
	h := NewPlotHandler(testutil.NewMockStorage(), newMockSessionMgr())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("ghost")

	err := h.HandlePlotStatus(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestSessionKeepAlive(t *testing.T) {
	e := echo.New()
	mgr := newMockSessionMgr()
	mgr.sessions["sess-1"] = &models.PlotSession{ID: "sess-1"}
	h := NewPlotHandler(testutil.NewMockStorage(), mgr)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	if assert.NoError(t, h.HandleSessionKeepAlive(c)) {
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestPlotProgressStreamCompletes(t *testing.T) {
	e := echo.New()
	mgr := newMockSessionMgr()
	mgr.sessions["sess-1"] = &models.PlotSession{
		ID:       "sess-1",
		Status:   models.SessionStatusComplete,
		Progress: 100,
	}
	h := NewPlotHandler(testutil.NewMockStorage(), mgr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	require.NoError(t, h.HandlePlotProgressStream(c))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, `"status":"complete"`)
}

func TestPlotProgressStreamKeepsSessionAlive(t *testing.T) {
	e := echo.New()
	mgr := newMockSessionMgr()
	mgr.sessions["sess-1"] = &models.PlotSession{
		ID:       "sess-1",
		Status:   models.SessionStatusComplete,
		Progress: 100,
	}
	h := NewPlotHandler(testutil.NewMockStorage(), mgr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	require.NoError(t, h.HandlePlotProgressStream(c))

	// Each tick must refresh the keep-alive timestamp so the session is not
	// evicted out from under an open stream
	assert.GreaterOrEqual(t, mgr.touched["sess-1"], 1)
}

func TestPlotProgressStreamUnknownSession(t *testing.T) {
	e := echo.New()
	h := NewPlotHandler(testutil.NewMockStorage(), newMockSessionMgr())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("ghost")

	require.NoError(t, h.HandlePlotProgressStream(c))
	assert.Contains(t, rec.Body.String(), "session not found")
}

func TestGetPoints(t *testing.T) {
	e := echo.New()
	mgr := newMockSessionMgr()
	mgr.sessions["sess-1"] = &models.PlotSession{
		ID:        "sess-1",
		Reference: &models.GeocodedPoint{Lat: 1, Lon: 2, Matched: true},
	}
	mgr.points["sess-1"] = []models.GeocodedPoint{
		{Address: models.Address{Row: 2, Street: "123 Main St"}, Lat: 39.78, Lon: -89.65, Matched: true},
	}
	h := NewPlotHandler(testutil.NewMockStorage(), mgr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	if assert.NoError(t, h.HandleGetPoints(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"reference"`)
		assert.Contains(t, rec.Body.String(), `"123 Main St"`)
	}
}

func TestGetPointsMsgpack(t *testing.T) {
	e := echo.New()
	mgr := newMockSessionMgr()
	mgr.sessions["sess-1"] = &models.PlotSession{ID: "sess-1"}
	mgr.points["sess-1"] = []models.GeocodedPoint{
		{Address: models.Address{Row: 2, Street: "123 Main St"}, Lat: 39.78, Lon: -89.65, Matched: true},
	}
	h := NewPlotHandler(testutil.NewMockStorage(), mgr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	require.NoError(t, h.HandleGetPointsMsgpack(c))
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var decoded pointsResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded.Points, 1)
	assert.Equal(t, "123 Main St", decoded.Points[0].Address.Street)
}

func TestGetRoutesAndRoute(t *testing.T) {
	e := echo.New()
	mgr := newMockSessionMgr()
	mgr.sessions["sess-1"] = &models.PlotSession{ID: "sess-1"}
	mgr.routes["sess-1"] = []models.Route{
		{DestinationRow: 2, DistanceMeters: 1000, Geometry: []models.LatLng{{1, 2}, {3, 4}}},
		{DestinationRow: 3, DistanceMeters: 2000},
	}
	h := NewPlotHandler(testutil.NewMockStorage(), mgr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	if assert.NoError(t, h.HandleGetRoutes(c)) {
		assert.Contains(t, rec.Body.String(), `"destinationRow":2`)
		assert.Contains(t, rec.Body.String(), `"destinationRow":3`)
	}

	// Single route by index
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("sessionId", "index")
	c.SetParamValues("sess-1", "1")

	if assert.NoError(t, h.HandleGetRoute(c)) {
		assert.Contains(t, rec.Body.String(), `"destinationRow":3`)
	}

	// Out of range
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("sessionId", "index")
	c.SetParamValues("sess-1", "9")

	err := h.HandleGetRoute(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	// Bad index
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("sessionId", "index")
	c.SetParamValues("sess-1", "abc")

	err = h.HandleGetRoute(c)
	require.Error(t, err)
	apiErr, ok = err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
