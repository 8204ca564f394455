package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FansOutAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := ConnectRedis(ctx, mr.Addr())
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	hubA, hubB := NewHub(4), NewHub(4)
	busA := NewBus(rdb, "", hubA)
	busB := NewBus(rdb, "", hubB)
	require.NoError(t, busA.Start(ctx))
	require.NoError(t, busB.Start(ctx))

	viewerA := hubA.Subscribe(TransportSSE)
	viewerB := hubB.Subscribe(TransportWebSocket)

	require.NoError(t, busA.Publish(ctx, []byte(`{"type":"x"}`)))

	assert.Equal(t, `{"type":"x"}`, receive(t, viewerA))
	assert.Equal(t, `{"type":"x"}`, receive(t, viewerB))
}

func TestBus_StopsOnCancel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb, err := ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	hub := NewHub(4)
	viewer := hub.Subscribe(TransportSSE)
	bus := NewBus(rdb, "test:events", hub)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return mr.PubSubNumSub("test:events")["test:events"] == 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), []byte(`{"type":"late"}`)))
	assertQuiet(t, viewer)
}

func TestBus_ServerPublishesThroughRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := ConnectRedis(ctx, mr.Addr())
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	hub := NewHub(4)
	viewer := hub.Subscribe(TransportSSE)
	bus := NewBus(rdb, "", hub)
	require.NoError(t, bus.Start(ctx))

	srv := NewServer("", 0, bus)
	srv.ingest(ctx, srv.logger, []byte(`{"type":"via-redis"}`))

	assert.Equal(t, `{"type":"via-redis"}`, receive(t, viewer))
}

func TestConnectRedis_Errors(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "redis://:bad url")
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = ConnectRedis(context.Background(), addr)
	assert.Error(t, err)
}
