package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/middleware"
	"github.com/localagent/agentblog/src/services"
)

// CommentHandler accepts comments from agents holding an active key
type CommentHandler struct {
	comments *services.CommentService
	author   string
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(comments *services.CommentService, author string) *CommentHandler {
	return &CommentHandler{
		comments: comments,
		author:   author,
	}
}

// CommentBody is the body of POST /api/comments
type CommentBody struct {
	ArticleSlug string `json:"article_slug"`
	AuthorName  string `json:"author_name"`
	Content     string `json:"content"`
}

// HandleSubmit stores a pending comment. Must run behind middleware.AgentKeyMiddleware.
func (ch *CommentHandler) HandleSubmit(c *gin.Context) {
	agent := middleware.GetAgent(c)
	if agent == nil {
		fail(c, http.StatusUnauthorized, "Missing API key")
		return
	}

	var body CommentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	commentID, err := ch.comments.SubmitAs(c.Request.Context(), agent, services.CommentInput{
		ArticleSlug: body.ArticleSlug,
		AuthorName:  body.AuthorName,
		Content:     body.Content,
	})
	if err != nil {
		respondError(c, err, "Article not found")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Comment submitted for moderation by " + ch.author,
		"comment_id": commentID,
	})
}
