package api

import (
	"net/http"
	"time"

	"github.com/chemviz/dashboard/internal/session"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeRender = "render"
	MsgTypePong   = "pong"
	MsgTypeError  = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSMessage is exchanged over the live update socket.
type WSMessage struct {
	Type      string `json:"type"`
	HTML      string `json:"html,omitempty"`
	Version   uint64 `json:"version,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WebSocketHandler pushes re-rendered dashboard bodies to the browser after
// every state change of its session.
type WebSocketHandler struct {
	handler        *Handler
	upgrader       websocket.Upgrader
	maxMessageSize int64
}

// NewWebSocketHandler creates a new live update handler. maxMessageKB bounds
// incoming client messages.
func NewWebSocketHandler(h *Handler, maxMessageKB int) *WebSocketHandler {
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	return &WebSocketHandler{
		handler: h,
		upgrader: websocket.Upgrader{
			CheckOrigin:     sameOrigin,
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMessageSize: int64(maxMessageKB) * 1024,
	}
}

// HandleWebSocket upgrades the connection and streams renders until the
// client goes away.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	state := wsh.handler.session(c)
	state.Store.Mount()

	detach, _ := wsh.handler.sessions.Attach(state.ID)
	defer detach()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	defer ws.Close()

	logger := log.With().Str("session", state.ID).Logger()
	logger.Debug().Msg("live client connected")

	changes, unsubscribe := state.Store.Subscribe()
	defer unsubscribe()

	pings := make(chan struct{}, 1)
	done := make(chan struct{})
	go wsh.readLoop(ws, pings, done)

	if err := wsh.sendRender(ws, state); err != nil {
		return nil
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Debug().Msg("live client disconnected")
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			wsh.handler.sessions.TouchSession(state.ID)
			if err := wsh.sendRender(ws, state); err != nil {
				logger.Debug().Err(err).Msg("live push failed")
				return nil
			}
		case <-pings:
			if err := wsh.send(ws, WSMessage{Type: MsgTypePong}); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// readLoop drains client messages. It closes done when the connection ends.
func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, pings chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(wsh.maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		if msg.Type == MsgTypePing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func (wsh *WebSocketHandler) sendRender(ws *websocket.Conn, state *session.SessionState) error {
	page, _ := wsh.handler.buildPage(state.Store)
	html, err := wsh.handler.renderer.BodyString(page)
	if err != nil {
		log.Error().Err(err).Msg("failed to render live update")
		return wsh.send(ws, WSMessage{Type: MsgTypeError, Message: "render failed"})
	}
	return wsh.send(ws, WSMessage{Type: MsgTypeRender, HTML: html, Version: page.Version})
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(msg)
}

// sameOrigin accepts requests without Origin and those from the serving host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
}
