package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/services"
	"github.com/rs/zerolog"
)

const (
	msgInvalidJSON       = "Invalid JSON"
	msgInvalidParameters = "Invalid parameters"
	msgDatabaseError     = "Database error"
)

// respondError writes {success:false, error} with the status matching err.
// notFound is the message used for services.ErrNotFound.
func respondError(c *gin.Context, err error, notFound string) {
	var validation *services.ValidationError

	switch {
	case errors.As(err, &validation):
		fail(c, http.StatusBadRequest, validation.Message)
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrAlreadyProcessed):
		fail(c, http.StatusBadRequest, "Request already processed")
	case errors.Is(err, services.ErrAlreadyModerated):
		fail(c, http.StatusBadRequest, "Comment already moderated")
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "Invalid or inactive API key")
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).
			Str("path", c.FullPath()).
			Msg("request failed")
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, msgDatabaseError)
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// formatTime renders timestamps the same way in every response
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
