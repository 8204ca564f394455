package relay

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/rs/zerolog"
)

// Viewer transports
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// DefaultViewerBuffer is the per-viewer queue length
const DefaultViewerBuffer = 64

// Viewer is one connected browser
type Viewer struct {
	id        string
	transport string
	send      chan []byte
}

// ID returns the viewer's id
func (v *Viewer) ID() string { return v.id }

// Events delivers forwarded lines. It is closed when the viewer is removed.
func (v *Viewer) Events() <-chan []byte { return v.send }

// Hub fans events out to every connected viewer
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]*Viewer
	buffer  int
	closed  bool
	logger  zerolog.Logger
}

// NewHub creates a hub. buffer <= 0 uses DefaultViewerBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultViewerBuffer
	}
	return &Hub{
		viewers: make(map[string]*Viewer),
		buffer:  buffer,
		logger:  logging.NewLogger("relay"),
	}
}

// Subscribe registers a viewer. It returns nil once the hub is closed.
func (h *Hub) Subscribe(transport string) *Viewer {
	v := &Viewer{
		id:        uuid.New().String()[:8],
		transport: transport,
		send:      make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.viewers[v.id] = v
	telemetry.RelayViewers.WithLabelValues(transport).Inc()

	h.logger.Debug().Str("viewer_id", v.id).Str("transport", transport).Msg("viewer connected")
	return v
}

// Unsubscribe removes a viewer and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(v *Viewer) {
	if v == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v.id]; !ok {
		return
	}
	delete(h.viewers, v.id)
	close(v.send)
	telemetry.RelayViewers.WithLabelValues(v.transport).Dec()

	h.logger.Debug().Str("viewer_id", v.id).Msg("viewer disconnected")
}

// Broadcast queues line for every viewer and returns how many accepted it.
// A viewer whose queue is full misses the event; producers never block.
func (h *Hub) Broadcast(line []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, v := range h.viewers {
		select {
		case v.send <- line:
			delivered++
		default:
			telemetry.RelayDroppedTotal.Inc()
			h.logger.Warn().Str("viewer_id", v.id).Msg("viewer buffer full, dropping event")
		}
	}
	return delivered
}

// Publish implements Sink by broadcasting to local viewers
func (h *Hub) Publish(_ context.Context, line []byte) error {
	h.Broadcast(line)
	return nil
}

// Count returns the number of connected viewers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Close disconnects every viewer and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, v := range h.viewers {
		delete(h.viewers, id)
		close(v.send)
		telemetry.RelayViewers.WithLabelValues(v.transport).Dec()
	}
}
