package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/repositories"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/rs/zerolog"
)

// Article listing limits
const (
	DefaultArticleLimit = 10
	MaxArticleLimit     = 100

	maxSlugAttempts = 20
)

var imageDataPattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg|webp);base64,`)

// ArticleInput is an article as sent by the admin
type ArticleInput struct {
	Title     string
	Excerpt   string
	Content   string
	ImageData string
}

// PublishedArticle identifies a newly published article
type PublishedArticle struct {
	ID   int64
	Slug string
	URL  string
}

// ArticleService publishes articles and serves the public article views
type ArticleService struct {
	blog      repositories.BlogRepository
	baseURL   string
	analytics *AnalyticsService
	logger    zerolog.Logger
	now       func() time.Time
}

// NewArticleService creates a new article service.
// baseURL is used to build article links.
func NewArticleService(blog repositories.BlogRepository, baseURL string) *ArticleService {
	return &ArticleService{
		blog:    blog,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.NewLogger("articles"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetAnalytics sets the product analytics sink
func (s *ArticleService) SetAnalytics(a *AnalyticsService) {
	s.analytics = a
}

// Publish validates and stores a published article
func (s *ArticleService) Publish(ctx context.Context, in ArticleInput) (*PublishedArticle, error) {
	title := strings.TrimSpace(in.Title)
	excerpt := strings.TrimSpace(in.Excerpt)
	imageData := strings.TrimSpace(in.ImageData)
	content := in.Content

	for _, f := range []struct{ name, value string }{
		{"title", title},
		{"excerpt", excerpt},
		{"content", strings.TrimSpace(content)},
	} {
		if f.value == "" {
			return nil, newValidationError("Missing required field: %s", f.name)
		}
	}

	if utf8.RuneCountInString(title) > models.MaxTitleChars {
		return nil, newValidationError("Title too long (max %d chars)", models.MaxTitleChars)
	}
	if utf8.RuneCountInString(excerpt) > models.MaxExcerptChars {
		return nil, newValidationError("Excerpt too long (max %d chars)", models.MaxExcerptChars)
	}
	if utf8.RuneCountInString(content) > models.MaxContentChars {
		return nil, newValidationError("Content too long (max 50k chars)")
	}
	if imageData != "" && !imageDataPattern.MatchString(imageData) {
		return nil, newValidationError("Invalid image data format (must be base64 with data URI)")
	}

	now := s.now()
	article := &models.Article{
		Title:     title,
		Excerpt:   excerpt,
		Content:   content,
		ImageData: imageData,
		Status:    models.ArticlePublished,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.createWithFreeSlug(ctx, article, Slugify(title)); err != nil {
		return nil, err
	}
	slug := article.Slug

	s.logger.Info().
		Int64("article_id", article.ID).
		Str("slug", slug).
		Msg("article published")
	telemetry.ArticlesPublishedTotal.Inc()

	s.analytics.TrackArticlePublished(ctx, slug)

	return &PublishedArticle{
		ID:   article.ID,
		Slug: slug,
		URL:  s.ArticleURL(slug),
	}, nil
}

// createWithFreeSlug stores article under base, or base-<unix> when base is
// taken, then base-<unix>-2, base-<unix>-3 and so on. A unique-index
// violation from a concurrent publish moves on to the next candidate.
func (s *ArticleService) createWithFreeSlug(ctx context.Context, article *models.Article, base string) error {
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug := slugCandidate(base, article.CreatedAt, attempt)

		taken, err := s.blog.SlugExists(ctx, slug)
		if err != nil {
			return storeError("check slug", err)
		}
		if taken {
			continue
		}

		article.Slug = slug
		err = s.blog.CreateArticle(ctx, article)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrDuplicate) {
			return storeError("create article", err)
		}
	}
	return storeError("create article", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts))
}

func slugCandidate(base string, at time.Time, attempt int) string {
	switch attempt {
	case 0:
		return base
	case 1:
		return fmt.Sprintf("%s-%d", base, at.Unix())
	default:
		return fmt.Sprintf("%s-%d-%d", base, at.Unix(), attempt)
	}
}

// ArticleURL is the public link for slug
func (s *ArticleService) ArticleURL(slug string) string {
	return s.baseURL + "/article/" + url.PathEscape(slug)
}

// ListRecent returns the newest published articles without their bodies
func (s *ArticleService) ListRecent(ctx context.Context, limit int) ([]models.Article, error) {
	if limit <= 0 {
		limit = DefaultArticleLimit
	}
	if limit > MaxArticleLimit {
		limit = MaxArticleLimit
	}

	articles, err := s.blog.ListPublishedArticles(ctx, limit)
	if err != nil {
		return nil, storeError("list articles", err)
	}
	return articles, nil
}

// ListApprovedComments returns a published article and its approved comments, newest first
func (s *ArticleService) ListApprovedComments(ctx context.Context, slug string) (*models.Article, []models.Comment, error) {
	article, err := s.blog.GetPublishedArticleBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, storeError("get article", err)
	}

	comments, err := s.blog.ListApprovedComments(ctx, article.ID)
	if err != nil {
		return nil, nil, storeError("list approved comments", err)
	}
	return article, comments, nil
}
