package mock

import (
	"context"

	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/repositories"
)

// BlogRepository is a mock implementation of repositories.BlogRepository.
// Lookups without a stub return repositories.ErrNotFound.
type BlogRepository struct {
	// Function stubs that can be overridden in tests
	CreateArticleFunc             func(ctx context.Context, article *models.Article) error
	SlugExistsFunc                func(ctx context.Context, slug string) (bool, error)
	GetPublishedArticleBySlugFunc func(ctx context.Context, slug string) (*models.Article, error)
	ListPublishedArticlesFunc     func(ctx context.Context, limit int) ([]models.Article, error)
	CreateCommentFunc             func(ctx context.Context, comment *models.Comment) error
	GetCommentWithArticleFunc     func(ctx context.Context, commentID int64) (*models.CommentWithArticle, error)
	ListPendingCommentsFunc       func(ctx context.Context, articleID *int64, limit int) ([]models.CommentWithArticle, error)
	SetCommentStatusFunc          func(ctx context.Context, commentID int64, status models.CommentStatus) error
	ListApprovedCommentsFunc      func(ctx context.Context, articleID int64) ([]models.Comment, error)

	// Call tracking
	Calls map[string][]interface{}
}

// NewBlogRepository creates a new mock blog repository
func NewBlogRepository() *BlogRepository {
	return &BlogRepository{
		Calls: make(map[string][]interface{}),
	}
}

func (m *BlogRepository) CreateArticle(ctx context.Context, article *models.Article) error {
	m.Calls["CreateArticle"] = append(m.Calls["CreateArticle"], article)
	if m.CreateArticleFunc != nil {
		return m.CreateArticleFunc(ctx, article)
	}
	return nil
}

func (m *BlogRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	m.Calls["SlugExists"] = append(m.Calls["SlugExists"], slug)
	if m.SlugExistsFunc != nil {
		return m.SlugExistsFunc(ctx, slug)
	}
	return false, nil
}

func (m *BlogRepository) GetPublishedArticleBySlug(ctx context.Context, slug string) (*models.Article, error) {
	m.Calls["GetPublishedArticleBySlug"] = append(m.Calls["GetPublishedArticleBySlug"], slug)
	if m.GetPublishedArticleBySlugFunc != nil {
		return m.GetPublishedArticleBySlugFunc(ctx, slug)
	}
	return nil, repositories.ErrNotFound
}

func (m *BlogRepository) ListPublishedArticles(ctx context.Context, limit int) ([]models.Article, error) {
	m.Calls["ListPublishedArticles"] = append(m.Calls["ListPublishedArticles"], limit)
	if m.ListPublishedArticlesFunc != nil {
		return m.ListPublishedArticlesFunc(ctx, limit)
	}
	return nil, nil
}

func (m *BlogRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	m.Calls["CreateComment"] = append(m.Calls["CreateComment"], comment)
	if m.CreateCommentFunc != nil {
		return m.CreateCommentFunc(ctx, comment)
	}
	return nil
}

func (m *BlogRepository) GetCommentWithArticle(ctx context.Context, commentID int64) (*models.CommentWithArticle, error) {
	m.Calls["GetCommentWithArticle"] = append(m.Calls["GetCommentWithArticle"], commentID)
	if m.GetCommentWithArticleFunc != nil {
		return m.GetCommentWithArticleFunc(ctx, commentID)
	}
	return nil, repositories.ErrNotFound
}

func (m *BlogRepository) ListPendingComments(ctx context.Context, articleID *int64, limit int) ([]models.CommentWithArticle, error) {
	m.Calls["ListPendingComments"] = append(m.Calls["ListPendingComments"], []interface{}{articleID, limit})
	if m.ListPendingCommentsFunc != nil {
		return m.ListPendingCommentsFunc(ctx, articleID, limit)
	}
	return nil, nil
}

func (m *BlogRepository) SetCommentStatus(ctx context.Context, commentID int64, status models.CommentStatus) error {
	m.Calls["SetCommentStatus"] = append(m.Calls["SetCommentStatus"], []interface{}{commentID, status})
	if m.SetCommentStatusFunc != nil {
		return m.SetCommentStatusFunc(ctx, commentID, status)
	}
	return nil
}

func (m *BlogRepository) ListApprovedComments(ctx context.Context, articleID int64) ([]models.Comment, error) {
	m.Calls["ListApprovedComments"] = append(m.Calls["ListApprovedComments"], articleID)
	if m.ListApprovedCommentsFunc != nil {
		return m.ListApprovedCommentsFunc(ctx, articleID)
	}
	return nil, nil
}

var _ repositories.BlogRepository = (*BlogRepository)(nil)
