package services

import (
	"context"
	"errors"

	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/repositories"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/rs/zerolog"
)

// Pending comment listing limits
const (
	DefaultModerationLimit = 100
	MaxModerationLimit     = 1000
)

// CommentDecision is the outcome of moderating one comment
type CommentDecision struct {
	CommentID    int64
	Decision     models.Decision
	AuthorName   string
	ArticleTitle string
	ArticleSlug  string
}

// ModerationService lets the admin approve or reject pending comments
type ModerationService struct {
	blog      repositories.BlogRepository
	analytics *AnalyticsService
	logger    zerolog.Logger
}

// NewModerationService creates a new moderation service
func NewModerationService(blog repositories.BlogRepository) *ModerationService {
	return &ModerationService{
		blog:   blog,
		logger: logging.NewLogger("moderation"),
	}
}

// SetAnalytics sets the product analytics sink
func (s *ModerationService) SetAnalytics(a *AnalyticsService) {
	s.analytics = a
}

// ClampLimit maps a requested page size into [1, MaxModerationLimit].
// Zero or negative means the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultModerationLimit
	case limit > MaxModerationLimit:
		return MaxModerationLimit
	}
	return limit
}

// ListPending returns pending comments oldest first, optionally for one article
func (s *ModerationService) ListPending(ctx context.Context, articleID *int64, limit int) ([]models.CommentWithArticle, error) {
	comments, err := s.blog.ListPendingComments(ctx, articleID, ClampLimit(limit))
	if err != nil {
		return nil, storeError("list pending comments", err)
	}
	return comments, nil
}

// Decide approves or rejects a pending comment. Both outcomes are terminal.
func (s *ModerationService) Decide(ctx context.Context, commentID int64, action string) (*CommentDecision, error) {
	decision, ok := models.ParseDecision(action)
	if commentID <= 0 || !ok {
		return nil, newValidationError("Invalid parameters")
	}

	comment, err := s.blog.GetCommentWithArticle(ctx, commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError("get comment", err)
	}
	if comment.Status != models.CommentPending {
		return nil, ErrAlreadyModerated
	}

	status := models.CommentRejected
	if decision == models.DecisionApprove {
		status = models.CommentApproved
	}
	if err := s.blog.SetCommentStatus(ctx, commentID, status); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrAlreadyModerated
		}
		return nil, storeError("set comment status", err)
	}

	s.logger.Info().
		Int64("comment_id", commentID).
		Str("article_slug", comment.ArticleSlug).
		Str("decision", decision.Past()).
		Msg("comment moderated")
	telemetry.CommentsTotal.WithLabelValues(decision.Past()).Inc()

	s.analytics.TrackCommentModerated(ctx, comment.ArticleSlug, decision)

	return &CommentDecision{
		CommentID:    commentID,
		Decision:     decision,
		AuthorName:   comment.AuthorName,
		ArticleTitle: comment.ArticleTitle,
		ArticleSlug:  comment.ArticleSlug,
	}, nil
}
