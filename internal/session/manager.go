// Package session runs and tracks plot jobs: parse an uploaded CSV, geocode
// the reference and every row, then fetch a driving route per destination.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/route-plotter/backend/internal/directions"
	"github.com/route-plotter/backend/internal/geocode"
	"github.com/route-plotter/backend/internal/models"
	"github.com/route-plotter/backend/internal/parser"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 20

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// Geocoder is the subset of the geocode client the manager needs.
type Geocoder interface {
	Geocode(ctx context.Context, addr models.Address) (*geocode.Result, error)
}

// Router fetches a driving route between two points.
type Router interface {
	Route(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (*models.Route, error)
}

// AddressParser parses an uploaded CSV into addresses.
type AddressParser interface {
	ParseFileWithProgress(path string, cb parser.ProgressCallback) ([]models.Address, []*models.RowError, error)
}

// Manager handles active plot sessions.
type Manager struct {
	sessions map[string]*sessionState
	mu       sync.RWMutex

	parser   AddressParser
	geocoder Geocoder
	router   Router

	ctx    context.Context
	cancel context.CancelFunc
}

// sessionState holds the session metadata plus the accumulated map data.
type sessionState struct {
	Session      *models.PlotSession
	Points       []models.GeocodedPoint
	Routes       []models.Route
	LastAccessed time.Time
}

// NewManager creates a new session manager.
func NewManager(p AddressParser, g Geocoder, r Router) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*sessionState),
		parser:   p,
		geocoder: g,
		router:   r,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close stops all running jobs.
func (m *Manager) Close() {
	m.cancel()
}

// StartPlot begins a plot job for an uploaded file and a reference address.
func (m *Manager) StartPlot(fileID, filePath string, reference models.Address) (*models.PlotSession, error) {
	if reference.IsEmpty() {
		return nil, fmt.Errorf("reference address is empty")
	}

	m.evictIfAtCapacity()

	sessionID := uuid.New().String()

	sess := models.NewPlotSession(sessionID, fileID)
	sess.Status = models.SessionStatusParsing

	state := &sessionState{
		Session:      sess,
		LastAccessed: time.Now(),
	}

	// Snapshot before the job goroutine starts mutating the live struct.
	snapshot := *sess
	snapshot.Errors = append([]models.RowError(nil), sess.Errors...)

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	go m.runPlot(sessionID, filePath, reference)

	return &snapshot, nil
}

func (m *Manager) runPlot(sessionID, filePath string, reference models.Address) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			m.failSession(sessionID, 0, fmt.Sprintf("plot panicked: %v", r))
		}
	}()

	start := time.Now()
	ctx := m.ctx

	// Stage 1: parse the CSV (0 -> 10)
	addresses, rowErrors, err := m.parser.ParseFileWithProgress(filePath, func(rows int) {
		m.update(sessionID, func(s *sessionState) {
			if s.Session.Progress < 9 {
				s.Session.Progress++
			}
		})
	})
	if err != nil {
		m.failSession(sessionID, 0, fmt.Sprintf("parse failed: %v", err))
		return
	}

	m.update(sessionID, func(s *sessionState) {
		s.Session.Progress = 10
		s.Session.AddressCount = len(addresses)
		for _, re := range rowErrors {
			if re != nil {
				s.Session.Errors = append(s.Session.Errors, *re)
			}
		}
	})

	if len(addresses) == 0 {
		m.failSession(sessionID, 0, "no addresses found in file")
		return
	}

	// Stage 2: geocode the reference. Without it the map cannot be drawn,
	// so any failure here fails the whole session.
	m.update(sessionID, func(s *sessionState) {
		s.Session.Status = models.SessionStatusGeocoding
	})

	refResult, err := m.geocoder.Geocode(ctx, reference)
	if err != nil {
		m.failSession(sessionID, 0, fmt.Sprintf("reference geocode failed: %v", err))
		return
	}
	if !refResult.Matched {
		m.failSession(sessionID, 0, fmt.Sprintf("reference address not found: %s", reference.Query()))
		return
	}

	refPoint := toPoint(reference, refResult)
	m.update(sessionID, func(s *sessionState) {
		s.Session.Reference = &refPoint
	})

	// Stage 3: geocode each row sequentially (10 -> 70). Per-row failures
	// are recorded and never abort the batch.
	points := make([]models.GeocodedPoint, 0, len(addresses))
	for i, addr := range addresses {
		if ctx.Err() != nil {
			m.failSession(sessionID, addr.Row, "plot cancelled")
			return
		}

		result, err := m.geocoder.Geocode(ctx, addr)
		switch {
		case err != nil:
			m.recordRowError(sessionID, addr.Row, addr.Query(), "geocode", err.Error())
		case !result.Matched:
			m.recordRowError(sessionID, addr.Row, addr.Query(), "geocode", "no match from any provider")
		default:
			points = append(points, toPoint(addr, result))
		}

		progress := 10 + 60*float64(i+1)/float64(len(addresses))
		m.update(sessionID, func(s *sessionState) {
			s.Session.Progress = progress
			s.Session.GeocodedCount = len(points)
			s.Points = points
		})
	}

	// Stage 4: fetch a route per geocoded row sequentially (70 -> 99.9).
	m.update(sessionID, func(s *sessionState) {
		s.Session.Status = models.SessionStatusRouting
	})

	routes := make([]models.Route, 0, len(points))
	for i, point := range points {
		if ctx.Err() != nil {
			m.failSession(sessionID, point.Address.Row, "plot cancelled")
			return
		}

		route, err := m.router.Route(ctx, refPoint.Lat, refPoint.Lon, point.Lat, point.Lon)
		switch {
		case errors.Is(err, directions.ErrNoRoute):
			m.recordRowError(sessionID, point.Address.Row, point.Address.Query(), "route", "no route from reference")
		case err != nil:
			m.recordRowError(sessionID, point.Address.Row, point.Address.Query(), "route", err.Error())
		default:
			route.DestinationRow = point.Address.Row
			routes = append(routes, *route)
		}

		progress := 70 + 29.9*float64(i+1)/float64(len(points))
		m.update(sessionID, func(s *sessionState) {
			s.Session.Progress = progress
			s.Session.RoutedCount = len(routes)
			s.Routes = routes
		})
	}

	elapsed := time.Since(start).Milliseconds()

	m.update(sessionID, func(s *sessionState) {
		s.Session.Status = models.SessionStatusComplete
		s.Session.Progress = 100
		s.Session.GeocodedCount = len(points)
		s.Session.RoutedCount = len(routes)
		s.Session.FailedCount = len(s.Session.Errors)
		s.Session.ProcessingTimeMs = elapsed
		s.Points = points
		s.Routes = routes
	})
}

func toPoint(addr models.Address, r *geocode.Result) models.GeocodedPoint {
	return models.GeocodedPoint{
		Address:  addr,
		Lat:      r.Lat,
		Lon:      r.Lon,
		Provider: r.Provider,
		Quality:  r.Quality,
		Matched:  r.Matched,
	}
}

// update applies fn to a session under the write lock. Sessions already
// removed by cleanup are ignored.
func (m *Manager) update(sessionID string, fn func(*sessionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	fn(state)
}

func (m *Manager) recordRowError(sessionID string, row int, content, stage, reason string) {
	m.update(sessionID, func(s *sessionState) {
		s.Session.Errors = append(s.Session.Errors, models.RowError{
			Row:     row,
			Content: content,
			Stage:   stage,
			Reason:  reason,
		})
		s.Session.FailedCount = len(s.Session.Errors)
	})
}

func (m *Manager) failSession(sessionID string, row int, reason string) {
	m.update(sessionID, func(s *sessionState) {
		s.Session.Status = models.SessionStatusError
		s.Session.Errors = append(s.Session.Errors, models.RowError{
			Row:    row,
			Stage:  "plot",
			Reason: reason,
		})
		s.Session.FailedCount = len(s.Session.Errors)
	})
}

// evictIfAtCapacity removes finished sessions when at the session limit.
func (m *Manager) evictIfAtCapacity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	toFree := len(m.sessions) - MaxSessions + 1
	for id, state := range m.sessions {
		if toFree == 0 {
			break
		}
		if state.Session.Status == models.SessionStatusComplete ||
			state.Session.Status == models.SessionStatusError {
			delete(m.sessions, id)
			toFree--
		}
	}
}

// CleanupOldSessions removes finished sessions older than maxAge, keeping
// sessions accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		if state.Session.Status != models.SessionStatusComplete &&
			state.Session.Status != models.SessionStatusError {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// GetSession returns a session snapshot by ID.
func (m *Manager) GetSession(id string) (*models.PlotSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	snapshot.Errors = append([]models.RowError(nil), state.Session.Errors...)
	return &snapshot, true
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// GetPoints returns the geocoded points accumulated so far, plus the
// reference point when resolved.
func (m *Manager) GetPoints(id string) (*models.GeocodedPoint, []models.GeocodedPoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, nil, false
	}
	points := append([]models.GeocodedPoint(nil), state.Points...)
	return state.Session.Reference, points, true
}

// GetRoutes returns the routes accumulated so far.
func (m *Manager) GetRoutes(id string) ([]models.Route, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return append([]models.Route(nil), state.Routes...), true
}

// GetRoute returns a single route by its position in the route list.
func (m *Manager) GetRoute(id string, index int) (*models.Route, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || index < 0 || index >= len(state.Routes) {
		return nil, false
	}
	route := state.Routes[index]
	return &route, true
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
