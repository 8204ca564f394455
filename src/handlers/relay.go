package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/relay"
	"github.com/rs/zerolog"
)

const (
	// SSEEventName is the event name viewers listen for
	SSEEventName = "agent_event"

	heartbeatInterval = 30 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the dashboard may be served from anywhere
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RelayHandler streams relay events to viewers
type RelayHandler struct {
	hub       *relay.Hub
	heartbeat time.Duration
	logger    zerolog.Logger
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(hub *relay.Hub) *RelayHandler {
	return &RelayHandler{
		hub:       hub,
		heartbeat: heartbeatInterval,
		logger:    logging.NewLogger("relay"),
	}
}

// HandleSSE streams events as Server-Sent Events
func (rh *RelayHandler) HandleSSE(c *gin.Context) {
	viewer := rh.hub.Subscribe(relay.TransportSSE)
	if viewer == nil {
		fail(c, http.StatusServiceUnavailable, "Relay is shutting down")
		return
	}
	defer rh.hub.Unsubscribe(viewer)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Send initial comment and flush to establish connection immediately
	_, _ = c.Writer.WriteString(": connected\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(rh.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case line, ok := <-viewer.Events():
			if !ok {
				return
			}
			if _, err := c.Writer.Write(sseFrame(SSEEventName, line)); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// sseFrame encodes one event. CR, LF and CRLF all end an SSE line, so each
// piece of data goes on its own data: field and the viewer rejoins them with \n.
func sseFrame(event string, data []byte) []byte {
	var b bytes.Buffer
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')

	for {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		b.WriteString("data: ")
		b.Write(data[:i])
		b.WriteByte('\n')

		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			i++
		}
		data = data[i+1:]
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	return b.Bytes()
}

// HandleWebSocket streams events as WebSocket text frames, one line per frame
func (rh *RelayHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rh.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	viewer := rh.hub.Subscribe(relay.TransportWebSocket)
	if viewer == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
			time.Now().Add(wsWriteWait))
		return
	}
	defer rh.hub.Unsubscribe(viewer)

	closed := make(chan struct{})
	go rh.readPump(conn, closed)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case line, ok := <-viewer.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards viewer input and closes done when the peer goes away
func (rh *RelayHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rh.logger.Debug().Err(err).Msg("websocket viewer read failed")
			}
			return
		}
	}
}
