package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readSSE returns the next non-comment event block as its lines
func readSSE(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var block []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(block) > 0 {
				return block
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		block = append(block, line)
	}
}

func TestRelaySSE_StreamsEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/relay/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	s.hub.Broadcast([]byte(`{"type":"thought","data":{"text":"hi"}}`))

	block := readSSE(t, bufio.NewReader(resp.Body))
	assert.Equal(t, []string{
		"event: agent_event",
		`data: {"type":"thought","data":{"text":"hi"}}`,
	}, block)

	cancel()
	assert.Eventually(t, func() bool { return s.hub.Count() == 0 }, time.Second, 10*time.Millisecond,
		"viewer is removed when the client goes away")
}

func TestRelaySSE_Heartbeat(t *testing.T) {
	s := newTestServer(t)
	handler := NewRelayHandler(s.hub)
	handler.heartbeat = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w, c := createTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/relay/events", nil).WithContext(ctx)

	handler.HandleSSE(c)

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, ": connected\n\n"))
	assert.Contains(t, body, ": heartbeat\n\n")
}

func TestRelaySSE_HubClosed(t *testing.T) {
	s := newTestServer(t)
	s.hub.Close()

	w := s.do(t, http.MethodGet, "/relay/events", nil, nil)
	assertStatusCode(t, w, http.StatusServiceUnavailable)
}

func TestRelayWebSocket_StreamsRawLines(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/relay/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	s.hub.Broadcast([]byte(`{"type":"a"}`))
	s.hub.Broadcast([]byte(`{"type":"b"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{`{"type":"a"}`, `{"type":"b"}`} {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.Equal(t, want, string(data))
	}

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return s.hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRelayWebSocket_ClosedWhenHubCloses(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/relay/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	s.hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

// eventSourceData parses a stream the way a browser EventSource does and
// returns the data of each dispatched event
func eventSourceData(stream string) []string {
	stream = strings.ReplaceAll(stream, "\r\n", "\n")
	stream = strings.ReplaceAll(stream, "\r", "\n")

	var events, data []string
	for _, line := range strings.Split(stream, "\n") {
		switch {
		case line == "":
			if len(data) > 0 {
				events = append(events, strings.Join(data, "\n"))
				data = nil
			}
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	return events
}

func TestSSEFrame(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "single line", data: `{"a":1}`, want: "event: e\ndata: {\"a\":1}\n\n"},
		{name: "bare CR", data: "{\"a\":1,\r\"b\":2}", want: "event: e\ndata: {\"a\":1,\ndata: \"b\":2}\n\n"},
		{name: "CRLF", data: "{\r\n}", want: "event: e\ndata: {\ndata: }\n\n"},
		{name: "LF", data: "{\n}", want: "event: e\ndata: {\ndata: }\n\n"},
		{name: "empty", data: "", want: "event: e\ndata: \n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(sseFrame("e", []byte(tt.data))))
		})
	}
}

func TestRelaySSE_EmbeddedCarriageReturn(t *testing.T) {
	s := newTestServer(t)
	handler := NewRelayHandler(s.hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, c := createTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/relay/events", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.HandleSSE(c)
	}()

	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	s.hub.Broadcast([]byte("{\"type\":\"x\",\r\"data\":{}}"))
	s.hub.Close()
	<-done

	events := eventSourceData(w.Body.String())
	require.Len(t, events, 1)
	assert.True(t, json.Valid([]byte(events[0])), events[0])
	assert.JSONEq(t, `{"type":"x","data":{}}`, events[0])
}
