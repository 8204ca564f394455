package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/services"
)

// TokenHandler exchanges the admin secret for a short-lived JWT
type TokenHandler struct {
	auth *services.AuthService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(auth *services.AuthService) *TokenHandler {
	return &TokenHandler{auth: auth}
}

// TokenResponse represents the response for a successful exchange
type TokenResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// HandleIssueToken issues a token. Must run behind middleware.AdminSecretMiddleware.
func (th *TokenHandler) HandleIssueToken(c *gin.Context) {
	token, expiresAt, err := th.auth.IssueToken()
	if err != nil {
		respondError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: formatTime(expiresAt),
	})
}
