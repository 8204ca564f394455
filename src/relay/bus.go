package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is the Redis channel shared by relay instances
const DefaultChannel = "relay:agent_events"

type metricsHook struct{}

func (metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			telemetry.RelayBusErrorsTotal.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			telemetry.RelayBusErrorsTotal.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// ConnectRedis opens a client from a redis:// URL or a bare host:port and pings it
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Bus shares events between relay instances through a Redis channel.
// Producers publish to the channel; every instance's subscriber feeds its own hub.
type Bus struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  zerolog.Logger
}

// NewBus creates a bus delivering into hub. An empty channel uses DefaultChannel.
func NewBus(rdb *redis.Client, channel string, hub *Hub) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		logger:  logging.NewLogger("relay_bus"),
	}
}

// Publish implements Sink
func (b *Bus) Publish(ctx context.Context, line []byte) error {
	return b.rdb.Publish(ctx, b.channel, line).Err()
}

// Start subscribes and broadcasts every message to the hub until ctx is done.
// It returns once the subscription is confirmed.
func (b *Bus) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	ch := sub.Channel()

	b.logger.Info().Str("channel", b.channel).Msg("relay bus subscribed")

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.deliver(msg.Payload)
			}
		}
	}()

	return nil
}

func (b *Bus) deliver(payload string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("relay bus delivery panicked")
		}
	}()
	b.hub.Broadcast([]byte(payload))
}
