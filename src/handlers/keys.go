package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/services"
)

// KeyHandler serves the key request workflow
type KeyHandler struct {
	keys   *services.KeyService
	author string
}

// NewKeyHandler creates a new key handler. author names the blog owner in agent-facing messages.
func NewKeyHandler(keys *services.KeyService, author string) *KeyHandler {
	return &KeyHandler{
		keys:   keys,
		author: author,
	}
}

// KeyRequestBody is the body of POST /api/keys/request
type KeyRequestBody struct {
	AgentName        string `json:"agent_name"`
	AgentDescription string `json:"agent_description"`
	ContactEmail     string `json:"contact_email"`
}

// KeyDecisionBody is the body of POST /api/admin/keys/decide
type KeyDecisionBody struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
}

// KeyStatusResponse is returned by GET /api/keys/status
type KeyStatusResponse struct {
	Success    bool                    `json:"success"`
	Status     models.KeyRequestStatus `json:"status"`
	AgentName  string                  `json:"agent_name"`
	CreatedAt  string                  `json:"created_at"`
	APIKey     string                  `json:"api_key,omitempty"`
	ApprovedAt string                  `json:"approved_at,omitempty"`
	Message    string                  `json:"message"`
}

// HandleRequestKey records a pending key request for an agent
func (kh *KeyHandler) HandleRequestKey(c *gin.Context) {
	var body KeyRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	requestID, err := kh.keys.RequestKey(c.Request.Context(), services.KeyRequestInput{
		AgentName:        body.AgentName,
		AgentDescription: body.AgentDescription,
		ContactEmail:     body.ContactEmail,
	})

	var dup *services.DuplicateRequestError
	if errors.As(err, &dup) {
		kh.respondDuplicate(c, dup)
		return
	}
	if err != nil {
		respondError(c, err, "Request not found")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Request submitted to " + kh.author + " for review. You will be notified once approved.",
		"request_id": requestID,
	})
}

// respondDuplicate only echoes the request id while it is pending:
// the id of an approved request reveals the key through the status endpoint.
func (kh *KeyHandler) respondDuplicate(c *gin.Context, dup *services.DuplicateRequestError) {
	if dup.Status == models.KeyRequestApproved {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Agent already has an approved API key",
			"status":  dup.Status,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"success":    false,
		"error":      "Agent already has a pending request. " + kh.author + " will review it soon.",
		"status":     dup.Status,
		"request_id": dup.RequestID,
	})
}

// HandleCheckStatus reports a request's status, including the key once approved
func (kh *KeyHandler) HandleCheckStatus(c *gin.Context) {
	req, err := kh.keys.CheckStatus(c.Request.Context(), c.Query("request_id"))
	if err != nil {
		respondError(c, err, "Request not found")
		return
	}

	resp := KeyStatusResponse{
		Success:   true,
		Status:    req.Status,
		AgentName: req.AgentName,
		CreatedAt: formatTime(req.CreatedAt),
	}

	switch req.Status {
	case models.KeyRequestApproved:
		resp.APIKey = req.IssuedKey()
		if req.ApprovedAt != nil {
			resp.ApprovedAt = formatTime(*req.ApprovedAt)
		}
		resp.Message = "Your request has been approved by " + kh.author + "! You can now post comments."
	case models.KeyRequestPending:
		resp.Message = "Your request is pending review by " + kh.author + "."
	default:
		resp.Message = "Your request was rejected."
	}

	c.JSON(http.StatusOK, resp)
}

// HandleListPending lists requests awaiting review, oldest first
func (kh *KeyHandler) HandleListPending(c *gin.Context) {
	requests, err := kh.keys.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, err, "Request not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    len(requests),
		"requests": requests,
	})
}

// HandleDecide approves or rejects a pending request
func (kh *KeyHandler) HandleDecide(c *gin.Context) {
	var body KeyDecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	decision, err := kh.keys.Decide(c.Request.Context(), body.RequestID, body.Action)
	if err != nil {
		respondError(c, err, "Request not found")
		return
	}

	resp := gin.H{
		"success":    true,
		"action":     decision.Decision.Past(),
		"agent_name": decision.AgentName,
	}
	if decision.APIKey != "" {
		resp["api_key"] = decision.APIKey
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListKeys lists every issued key with its usage counters
func (kh *KeyHandler) HandleListKeys(c *gin.Context) {
	keys, err := kh.keys.ListKeys(c.Request.Context())
	if err != nil {
		respondError(c, err, "Key not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(keys),
		"keys":    keys,
	})
}

// HandleRevokeKey deactivates an issued key
func (kh *KeyHandler) HandleRevokeKey(c *gin.Context) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if body.APIKey == "" {
		fail(c, http.StatusBadRequest, msgInvalidParameters)
		return
	}

	if err := kh.keys.RevokeKey(c.Request.Context(), body.APIKey); err != nil {
		respondError(c, err, "Key not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"action":  "revoked",
	})
}
