package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/route-plotter/backend/internal/models"
)

// WebSocket message types for the plot-watch protocol
const (
	// Client -> Server messages
	MsgTypeWatch   = "watch"
	MsgTypeUnwatch = "unwatch"
	MsgTypePing    = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope for both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WatchPayload selects the plot session to stream.
type WatchPayload struct {
	SessionID string `json:"sessionId"`
}

// WSProgressResponse carries one session snapshot to the client.
type WSProgressResponse struct {
	Type      string              `json:"type"`
	SessionID string              `json:"sessionId"`
	Session   *models.PlotSession `json:"session"`
}

// WSErrorResponse reports a protocol or session error.
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// watchInterval is how often session snapshots are pushed to watchers.
const watchInterval = 250 * time.Millisecond

// WebSocketHandler streams plot session progress over a WebSocket. A client
// can watch several sessions on one connection.
type WebSocketHandler struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket progress handler
func NewWebSocketHandler(sessionMgr SessionManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Same-origin embedded frontend or dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
	}
}

// HandleWebSocket upgrades the connection and serves the watch protocol.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	// writeMu serializes writes between the read loop and watch goroutines.
	var writeMu sync.Mutex
	send := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.WriteJSON(v)
	}

	send(WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})

	watches := make(map[string]chan struct{})
	var watchesMu sync.Mutex
	defer func() {
		watchesMu.Lock()
		for _, stop := range watches {
			close(stop)
		}
		watchesMu.Unlock()
	}()

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger().Warnf("websocket connection error: %v", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})

		case MsgTypeWatch:
			var payload WatchPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.SessionID == "" {
				send(WSErrorResponse{Type: MsgTypeError, Message: "invalid watch payload", Code: "INVALID_PAYLOAD"})
				continue
			}
			if _, ok := wsh.sessionMgr.GetSession(payload.SessionID); !ok {
				send(WSErrorResponse{Type: MsgTypeError, Message: "session not found: " + payload.SessionID, Code: "NOT_FOUND"})
				continue
			}

			watchesMu.Lock()
			if _, exists := watches[payload.SessionID]; exists {
				watchesMu.Unlock()
				continue
			}
			stop := make(chan struct{})
			watches[payload.SessionID] = stop
			watchesMu.Unlock()

			go wsh.streamSession(payload.SessionID, send, stop, func() {
				watchesMu.Lock()
				delete(watches, payload.SessionID)
				watchesMu.Unlock()
			})

		case MsgTypeUnwatch:
			var payload WatchPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			watchesMu.Lock()
			if stop, ok := watches[payload.SessionID]; ok {
				close(stop)
				delete(watches, payload.SessionID)
			}
			watchesMu.Unlock()

		default:
			send(WSErrorResponse{Type: MsgTypeError, Message: "unknown message type: " + msg.Type, Code: "INVALID_TYPE"})
		}
	}

	return nil
}

// streamSession pushes snapshots until the session finishes or the watch is
// cancelled.
func (wsh *WebSocketHandler) streamSession(sessionID string, send func(interface{}), stop <-chan struct{}, done func()) {
	defer done()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case <-ticker.C:
			sess, ok := wsh.sessionMgr.GetSession(sessionID)
			if !ok {
				send(WSErrorResponse{Type: MsgTypeError, Message: "session not found: " + sessionID, Code: "NOT_FOUND"})
				return
			}

			wsh.sessionMgr.TouchSession(sessionID)

			msgType := MsgTypeProgress
			if sess.Status == models.SessionStatusComplete || sess.Status == models.SessionStatusError {
				msgType = MsgTypeComplete
			}

			send(WSProgressResponse{
				Type:      msgType,
				SessionID: sessionID,
				Session:   sess,
			})

			if msgType == MsgTypeComplete {
				return
			}
		}
	}
}
