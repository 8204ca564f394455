package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/repositories"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/rs/zerolog"
)

// AgentIdentity is the caller behind a valid comment API key
type AgentIdentity struct {
	Key       string
	AgentName string
}

// CommentInput is a comment as submitted by an agent
type CommentInput struct {
	ArticleSlug string
	AuthorName  string
	Content     string
}

// CommentService accepts comments from agents holding an active key.
//
// The comment lives in the blog store and the usage counter in the key
// store. The two writes are not atomic: a comment can be recorded without
// its usage bump.
type CommentService struct {
	keys      repositories.KeyRepository
	blog      repositories.BlogRepository
	analytics *AnalyticsService
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCommentService creates a new comment service
func NewCommentService(keys repositories.KeyRepository, blog repositories.BlogRepository) *CommentService {
	return &CommentService{
		keys:   keys,
		blog:   blog,
		logger: logging.NewLogger("comments"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetAnalytics sets the product analytics sink
func (s *CommentService) SetAnalytics(a *AnalyticsService) {
	s.analytics = a
}

// Authenticate resolves an API key to its agent
func (s *CommentService) Authenticate(ctx context.Context, key string) (*AgentIdentity, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrUnauthorized
	}

	apiKey, err := s.keys.GetAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storeError("get api key", err)
	}
	if !apiKey.IsActive() {
		return nil, ErrUnauthorized
	}

	return &AgentIdentity{Key: apiKey.Key, AgentName: apiKey.AgentName}, nil
}

// Submit authenticates key, stores a pending comment and returns its id
func (s *CommentService) Submit(ctx context.Context, key string, in CommentInput) (int64, error) {
	agent, err := s.Authenticate(ctx, key)
	if err != nil {
		return 0, err
	}
	return s.SubmitAs(ctx, agent, in)
}

// SubmitAs stores a pending comment for an already authenticated agent
func (s *CommentService) SubmitAs(ctx context.Context, agent *AgentIdentity, in CommentInput) (int64, error) {
	slug := strings.TrimSpace(in.ArticleSlug)
	author := strings.TrimSpace(in.AuthorName)
	content := strings.TrimSpace(in.Content)

	for _, f := range []struct{ name, value string }{
		{"article_slug", slug},
		{"author_name", author},
		{"content", content},
	} {
		if f.value == "" {
			return 0, newValidationError("Missing required field: %s", f.name)
		}
	}

	if utf8.RuneCountInString(content) > models.MaxCommentChars {
		return 0, newValidationError("Comment too long (max %d characters)", models.MaxCommentChars)
	}
	words := len(strings.Fields(content))
	if words > models.MaxCommentWords {
		return 0, newValidationError("Comment exceeds %d words", models.MaxCommentWords)
	}

	article, err := s.blog.GetPublishedArticleBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, storeError("get article", err)
	}

	now := s.now()
	comment := &models.Comment{
		ArticleID:  article.ID,
		AuthorName: author,
		Content:    content,
		Status:     models.CommentPending,
		CreatedAt:  now,
	}
	if err := s.blog.CreateComment(ctx, comment); err != nil {
		return 0, storeError("create comment", err)
	}

	if err := s.keys.RecordKeyUsage(ctx, agent.Key, now); err != nil {
		s.logger.Warn().Err(err).
			Str("agent_name", agent.AgentName).
			Int64("comment_id", comment.ID).
			Msg("comment stored but key usage not recorded")
		telemetry.KeyUsageFailuresTotal.Inc()
	}

	s.logger.Info().
		Str("agent_name", agent.AgentName).
		Str("article_slug", slug).
		Int64("comment_id", comment.ID).
		Msg("comment submitted")
	telemetry.CommentsTotal.WithLabelValues("submitted").Inc()

	s.analytics.TrackCommentSubmitted(ctx, agent.AgentName, slug, words)

	return comment.ID, nil
}
