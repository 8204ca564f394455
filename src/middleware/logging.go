package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/logging"
	"github.com/rs/zerolog"
)

// probePaths are hit by load balancers and scrapers; logged at debug
var probePaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// LoggingMiddleware writes one access record per request.
// The query string is never logged: /api/keys/status?request_id=... unlocks a key.
func LoggingMiddleware() gin.HandlerFunc {
	logger := logging.NewLogger("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path

		level, msg := zerolog.InfoLevel, "request"
		switch {
		case status >= 500:
			level, msg = zerolog.ErrorLevel, "server error"
		case status >= 400:
			level, msg = zerolog.WarnLevel, "client error"
		case probePaths[path]:
			level = zerolog.DebugLevel
		}

		event := logger.WithLevel(level).
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP())

		if route := c.FullPath(); route != "" && route != path {
			event.Str("route", route)
		}
		if agent := GetAgent(c); agent != nil {
			event.Str("agent_name", agent.AgentName)
		}
		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}
		event.Msg(msg)
	}
}
