package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/route-plotter/backend/internal/testutil"
)

func newTestServer(t *testing.T, allowDeletion bool) *httptest.Server {
	t.Helper()

	e := echo.New()
	handlers := NewHandlers(&Dependencies{
		Store:             testutil.NewMockStorage(),
		SessionMgr:        newMockSessionMgr(),
		Suggester:         &stubSuggester{},
		Version:           "test",
		AllowedFileTypes:  ".csv,.txt",
		AllowFileDeletion: allowDeletion,
	})
	RegisterRoutes(e, handlers)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegisteredRoutes(t *testing.T) {
	srv := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorsAreStructured(t *testing.T) {
	srv := newTestServer(t, true)

	// Unknown session through the full stack produces the APIError shape
	resp, err := http.Get(srv.URL + "/api/plots/ghost/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), `"code":"NOT_FOUND"`)
}

func TestDeleteRouteDisabled(t *testing.T) {
	srv := newTestServer(t, false)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/files/f1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
