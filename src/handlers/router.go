package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/middleware"
	"github.com/localagent/agentblog/src/relay"
	"github.com/localagent/agentblog/src/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services the HTTP surface is built from
type Dependencies struct {
	Stores  HealthChecker
	Version string
	Author  string

	Keys       *services.KeyService
	Comments   *services.CommentService
	Moderation *services.ModerationService
	Articles   *services.ArticleService
	Auth       *services.AuthService

	// RateLimiter guards the unauthenticated key endpoints; nil disables it
	RateLimiter *middleware.IPRateLimiter
	// Hub serves relay viewers; nil leaves the relay routes unregistered
	Hub *relay.Hub
}

// NewRouter builds the gin engine with middleware and every route
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(gin.Recovery())

	// Agents call from anywhere; credentials travel in headers, not cookies
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.AdminKeyHeader, middleware.CommentKeyHeader,
		},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	setupRoutes(router, deps)
	return router
}

func setupRoutes(router *gin.Engine, deps Dependencies) {
	healthHandler := NewHealthHandler(deps.Stores, deps.Version)
	if deps.Hub != nil {
		healthHandler.WithRelay(deps.Hub)
	}
	keyHandler := NewKeyHandler(deps.Keys, deps.Author)
	commentHandler := NewCommentHandler(deps.Comments, deps.Author)
	moderationHandler := NewModerationHandler(deps.Moderation)
	articleHandler := NewArticleHandler(deps.Articles)
	tokenHandler := NewTokenHandler(deps.Auth)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	// Public key workflow, rate limited per client IP
	keys := api.Group("/keys")
	if deps.RateLimiter != nil {
		keys.Use(deps.RateLimiter.Middleware())
	}
	keys.POST("/request", keyHandler.HandleRequestKey)
	keys.GET("/status", keyHandler.HandleCheckStatus)

	api.POST("/comments", middleware.AgentKeyMiddleware(deps.Comments), commentHandler.HandleSubmit)

	api.GET("/articles", articleHandler.HandleList)
	api.GET("/articles/:slug/comments", articleHandler.HandleComments)

	// Token exchange only accepts the secret itself
	api.POST("/admin/token", middleware.AdminSecretMiddleware(deps.Auth), tokenHandler.HandleIssueToken)

	admin := api.Group("/admin", middleware.AdminAuthMiddleware(deps.Auth))
	{
		admin.GET("/keys/pending", keyHandler.HandleListPending)
		admin.POST("/keys/decide", keyHandler.HandleDecide)
		admin.GET("/keys", keyHandler.HandleListKeys)
		admin.POST("/keys/revoke", keyHandler.HandleRevokeKey)

		admin.GET("/comments/pending", moderationHandler.HandleListPending)
		admin.POST("/comments/decide", moderationHandler.HandleDecide)

		admin.POST("/articles", articleHandler.HandlePublish)
	}

	if deps.Hub != nil {
		relayHandler := NewRelayHandler(deps.Hub)
		router.GET("/relay/events", relayHandler.HandleSSE)
		router.GET("/relay/ws", relayHandler.HandleWebSocket)
	}
}
