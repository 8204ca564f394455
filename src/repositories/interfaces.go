package repositories

import (
	"context"
	"time"

	"github.com/localagent/agentblog/src/models"
)

// KeyRepository defines data access for the key store
type KeyRepository interface {
	// Key requests
	CreateRequest(ctx context.Context, req *models.KeyRequest) error
	GetRequest(ctx context.Context, requestID string) (*models.KeyRequest, error)
	FindActiveRequest(ctx context.Context, agentName string) (*models.KeyRequest, error)
	ListPendingRequests(ctx context.Context) ([]models.KeyRequest, error)

	// Decisions (conditional on the request still being pending)
	ApproveRequest(ctx context.Context, requestID, apiKey string, at time.Time) (*models.APIKey, error)
	RejectRequest(ctx context.Context, requestID string) error

	// Issued keys
	GetAPIKey(ctx context.Context, key string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]models.APIKey, error)
	RecordKeyUsage(ctx context.Context, key string, at time.Time) error
	RevokeAPIKey(ctx context.Context, key string) error
}

// BlogRepository defines data access for the blog store
type BlogRepository interface {
	// Articles
	CreateArticle(ctx context.Context, article *models.Article) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetPublishedArticleBySlug(ctx context.Context, slug string) (*models.Article, error)
	ListPublishedArticles(ctx context.Context, limit int) ([]models.Article, error)

	// Comments
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentWithArticle(ctx context.Context, commentID int64) (*models.CommentWithArticle, error)
	ListPendingComments(ctx context.Context, articleID *int64, limit int) ([]models.CommentWithArticle, error)
	SetCommentStatus(ctx context.Context, commentID int64, status models.CommentStatus) error
	ListApprovedComments(ctx context.Context, articleID int64) ([]models.Comment, error)
}

var (
	_ KeyRepository  = (*SQLKeyRepository)(nil)
	_ BlogRepository = (*SQLBlogRepository)(nil)
)
