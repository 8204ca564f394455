package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/services"
	"github.com/rs/zerolog/log"
)

// Header names used by callers
const (
	AdminKeyHeader   = "X-API-Key"
	CommentKeyHeader = "X-Comment-API-Key"
)

// AgentKey is the context key holding the authenticated *services.AgentIdentity
const AgentKey = "agent"

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AdminAuthMiddleware admits the administrative caller, identified either by
// the shared secret in X-API-Key or by a bearer token from POST /api/admin/token
func AdminAuthMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret := c.GetHeader(AdminKeyHeader); secret != "" {
			if auth.VerifySecret(secret) {
				c.Next()
				return
			}
			abortUnauthorized(c, "Invalid API key")
			return
		}

		if token := bearerToken(c); token != "" {
			if err := auth.VerifyToken(token); err == nil {
				c.Next()
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		abortUnauthorized(c, "Invalid API key")
	}
}

// AdminSecretMiddleware admits only the shared secret; bearer tokens cannot mint new tokens
func AdminSecretMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.VerifySecret(c.GetHeader(AdminKeyHeader)) {
			abortUnauthorized(c, "Invalid API key")
			return
		}
		c.Next()
	}
}

// AgentKeyMiddleware resolves X-Comment-API-Key to an active agent
func AgentKeyMiddleware(comments *services.CommentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(CommentKeyHeader))
		if key == "" {
			abortUnauthorized(c, "Missing API key")
			return
		}

		agent, err := comments.Authenticate(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				abortUnauthorized(c, "Invalid or inactive API key")
				return
			}
			log.Error().Err(err).Str("request_id", GetRequestID(c)).Msg("failed to validate comment key")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Server error",
			})
			return
		}

		c.Set(AgentKey, agent)
		c.Next()
	}
}

// GetAgent returns the agent set by AgentKeyMiddleware
func GetAgent(c *gin.Context) *services.AgentIdentity {
	if v, ok := c.Get(AgentKey); ok {
		if agent, ok := v.(*services.AgentIdentity); ok {
			return agent
		}
	}
	return nil
}
