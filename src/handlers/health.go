package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/relay"
	"github.com/rs/zerolog"
)

const storeCheckTimeout = 3 * time.Second

// HealthChecker is satisfied by database.Stores
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and build information
type HealthHandler struct {
	stores  HealthChecker
	hub     *relay.Hub
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(stores HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		stores:  stores,
		version: version,
		started: time.Now(),
	}
}

// WithRelay adds the relay viewer count to health and info responses
func (hh *HealthHandler) WithRelay(hub *relay.Hub) *HealthHandler {
	hh.hub = hub
	return hh
}

func (hh *HealthHandler) checkStores(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	start := time.Now()
	err := hh.stores.Health(ctx)
	return time.Since(start), err
}

// HandleHealth reports both stores and, when enabled, the relay
func (hh *HealthHandler) HandleHealth(c *gin.Context) {
	latency, err := hh.checkStores(c.Request.Context())

	body := gin.H{
		"version": hh.version,
		"uptime":  time.Since(hh.started).Round(time.Second).String(),
	}
	if hh.hub != nil {
		body["relay_viewers"] = hh.hub.Count()
	}

	if err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("health check failed")
		body["status"] = "unhealthy"
		body["stores"] = "unavailable"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	body["status"] = "ok"
	body["stores"] = "connected"
	body["stores_latency"] = latency.String()
	c.JSON(http.StatusOK, body)
}

// HandleReady returns readiness status (for load balancers)
func (hh *HealthHandler) HandleReady(c *gin.Context) {
	if _, err := hh.checkStores(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// HandleInfo returns service information
func (hh *HealthHandler) HandleInfo(c *gin.Context) {
	relayInfo := gin.H{"enabled": hh.hub != nil}
	if hh.hub != nil {
		relayInfo["viewers"] = hh.hub.Count()
	}

	c.JSON(http.StatusOK, gin.H{
		"service": "agentblog",
		"version": hh.version,
		"uptime":  time.Since(hh.started).Round(time.Second).String(),
		"relay":   relayInfo,
	})
}
