package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/handlers"
	"github.com/localagent/agentblog/src/middleware"
	"github.com/localagent/agentblog/src/relay"
	"github.com/localagent/agentblog/src/services"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd runs the HTTP API and the event relay
func ServeCmd(opts *rootOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.configPath, version)
		},
	}
}

func runServe(ctx context.Context, configPath, version string) error {
	a, err := openApp(ctx, configPath, openOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
		}
	}()
	cfg := a.cfg

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.Log.Level).
		Str("author", a.profile.AuthorName()).
		Msg("starting server")

	if err := a.migrate("up"); err != nil {
		return err
	}
	if err := a.wireServices(); err != nil {
		return err
	}

	if !cfg.HasAdminSecret() {
		log.Warn().Msg("no admin secret configured - admin endpoints will reject every call")
	}
	auth := services.NewAuthService(cfg.Admin.APIKey, cfg.Admin.APIKeyHash, cfg.Admin.JWTSecret)

	limiter := middleware.NewIPRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	defer limiter.Stop()

	var hub *relay.Hub
	relayDone := make(chan struct{})
	if cfg.Relay.Enabled {
		hub = relay.NewHub(cfg.Relay.ViewerBuffer)
		defer hub.Close()

		sink, rdb, err := relaySink(ctx, cfg.Relay.RedisURL, cfg.Relay.Channel, hub)
		if err != nil {
			return err
		}
		if rdb != nil {
			defer func() { _ = rdb.Close() }()
		}

		relayServer := relay.NewServer(cfg.Relay.TCPAddr, cfg.Relay.MaxLineBytes, sink)
		if err := relayServer.Listen(); err != nil {
			return err
		}
		go func() {
			defer close(relayDone)
			if err := relayServer.Serve(ctx); err != nil {
				log.Error().Err(err).Msg("relay server error")
			}
		}()
	} else {
		close(relayDone)
		log.Info().Msg("event relay disabled")
	}

	if gin.Mode() == gin.DebugMode && cfg.Log.Format != "pretty" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.Dependencies{
		Stores:      a.stores,
		Version:     version,
		Author:      a.profile.AuthorName(),
		Keys:        a.keys,
		Comments:    a.comments,
		Moderation:  a.moderation,
		Articles:    a.articles,
		Auth:        auth,
		RateLimiter: limiter,
		Hub:         hub,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: relay viewers hold their response open
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Viewers end their streams once the hub closes
	if hub != nil {
		hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	<-relayDone

	log.Info().Msg("server shut down successfully")
	return nil
}

// relaySink picks where producer lines go: straight to the local hub, or
// through Redis when a URL is configured so every instance sees every event.
func relaySink(ctx context.Context, redisURL, channel string, hub *relay.Hub) (relay.Sink, *redis.Client, error) {
	if redisURL == "" {
		return hub, nil, nil
	}

	rdb, err := relay.ConnectRedis(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	bus := relay.NewBus(rdb, channel, hub)
	if err := bus.Start(ctx); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	log.Info().Str("channel", channel).Msg("relay fan-out through Redis")
	return bus, rdb, nil
}
