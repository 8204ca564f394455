package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/services"
)

// ModerationHandler lets the admin review pending comments
type ModerationHandler struct {
	moderation *services.ModerationService
}

// NewModerationHandler creates a new moderation handler
func NewModerationHandler(moderation *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

// CommentDecisionBody is the body of POST /api/admin/comments/decide.
// comment_id may be sent as a number or a numeric string.
type CommentDecisionBody struct {
	CommentID json.Number `json:"comment_id"`
	Action    string      `json:"action"`
}

// HandleListPending lists pending comments, optionally for one article
func (mh *ModerationHandler) HandleListPending(c *gin.Context) {
	var articleID *int64
	if raw := c.Query("article_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, msgInvalidParameters)
			return
		}
		articleID = &id
	}

	limit := services.DefaultModerationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, msgInvalidParameters)
			return
		}
		limit = n
	}

	comments, err := mh.moderation.ListPending(c.Request.Context(), articleID, limit)
	if err != nil {
		respondError(c, err, "Comment not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    len(comments),
		"comments": comments,
	})
}

// HandleDecide approves or rejects one pending comment
func (mh *ModerationHandler) HandleDecide(c *gin.Context) {
	var body CommentDecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	commentID, err := body.CommentID.Int64()
	if err != nil || commentID <= 0 {
		fail(c, http.StatusBadRequest, msgInvalidParameters)
		return
	}

	decision, err := mh.moderation.Decide(c.Request.Context(), commentID, body.Action)
	if err != nil {
		respondError(c, err, "Comment not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"action":        string(decision.Decision),
		"comment_id":    decision.CommentID,
		"author_name":   decision.AuthorName,
		"article_title": decision.ArticleTitle,
	})
}
