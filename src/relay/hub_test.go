package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesEveryViewer(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe(TransportSSE)
	b := h.Subscribe(TransportWebSocket)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, 2, h.Count())

	assert.Equal(t, 2, h.Broadcast([]byte(`{"type":"x"}`)))
	assert.Equal(t, `{"type":"x"}`, string(<-a.Events()))
	assert.Equal(t, `{"type":"x"}`, string(<-b.Events()))
}

func TestHub_NoReplayForLateViewers(t *testing.T) {
	h := NewHub(4)
	assert.Equal(t, 0, h.Broadcast([]byte(`{"type":"early"}`)))

	v := h.Subscribe(TransportSSE)
	select {
	case line := <-v.Events():
		t.Fatalf("unexpected replay of %s", line)
	default:
	}
}

func TestHub_FullViewerMissesEvent(t *testing.T) {
	h := NewHub(1)
	slow := h.Subscribe(TransportSSE)
	fast := h.Subscribe(TransportSSE)

	assert.Equal(t, 2, h.Broadcast([]byte("1")))
	<-fast.Events()

	assert.Equal(t, 1, h.Broadcast([]byte("2")), "slow viewer is full")
	assert.Equal(t, "2", string(<-fast.Events()))
	assert.Equal(t, "1", string(<-slow.Events()))
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(1)
	v := h.Subscribe(TransportWebSocket)

	h.Unsubscribe(v)
	h.Unsubscribe(v)

	_, open := <-v.Events()
	assert.False(t, open)
	assert.Equal(t, 0, h.Count())
}

func TestHub_CloseRejectsNewViewers(t *testing.T) {
	h := NewHub(1)
	v := h.Subscribe(TransportSSE)

	h.Close()

	_, open := <-v.Events()
	assert.False(t, open)
	assert.Nil(t, h.Subscribe(TransportSSE))
	assert.NotPanics(t, func() { h.Unsubscribe(v) })
}

func TestHub_PublishBroadcasts(t *testing.T) {
	h := NewHub(1)
	v := h.Subscribe(TransportSSE)

	require.NoError(t, h.Publish(context.Background(), []byte("line")))
	assert.Equal(t, "line", string(<-v.Events()))
}
