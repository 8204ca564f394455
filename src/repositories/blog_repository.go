package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/localagent/agentblog/src/database"
	"github.com/localagent/agentblog/src/models"
)

const commentWithArticleColumns = `
	c.id, c.article_id, c.author_name, c.content, c.status, c.created_at,
	a.title AS article_title, a.slug AS article_slug`

// SQLBlogRepository implements BlogRepository on the blog store
type SQLBlogRepository struct {
	db *sqlx.DB
}

// NewBlogRepository creates a blog repository
func NewBlogRepository(db *database.Database) *SQLBlogRepository {
	return &SQLBlogRepository{db: db.DB()}
}

// CreateArticle inserts an article and sets its ID.
// Returns ErrDuplicate if the slug is taken.
func (r *SQLBlogRepository) CreateArticle(ctx context.Context, a *models.Article) error {
	query := r.db.Rebind(`
		INSERT INTO articles (title, excerpt, content, image_data, slug, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.db.QueryRowxContext(ctx, query,
		a.Title, a.Excerpt, a.Content, a.ImageData, a.Slug, a.Status, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// SlugExists reports whether any article already uses slug
func (r *SQLBlogRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM articles WHERE slug = ?`), slug); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

// GetPublishedArticleBySlug loads a published article
func (r *SQLBlogRepository) GetPublishedArticleBySlug(ctx context.Context, slug string) (*models.Article, error) {
	var a models.Article
	query := r.db.Rebind(`
		SELECT id, title, excerpt, content, image_data, slug, status, created_at, updated_at
		FROM articles
		WHERE slug = ? AND status = ?`)
	if err := r.db.GetContext(ctx, &a, query, slug, models.ArticlePublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &a, nil
}

// ListPublishedArticles returns the newest published articles without their bodies
func (r *SQLBlogRepository) ListPublishedArticles(ctx context.Context, limit int) ([]models.Article, error) {
	articles := []models.Article{}
	query := r.db.Rebind(`
		SELECT id, title, excerpt, slug, status, created_at, updated_at
		FROM articles
		WHERE status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &articles, query, models.ArticlePublished, limit); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// CreateComment inserts a comment and sets its ID
func (r *SQLBlogRepository) CreateComment(ctx context.Context, c *models.Comment) error {
	query := r.db.Rebind(`
		INSERT INTO comments (article_id, author_name, content, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.db.QueryRowxContext(ctx, query,
		c.ArticleID, c.AuthorName, c.Content, c.Status, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// GetCommentWithArticle loads a comment with its article title
func (r *SQLBlogRepository) GetCommentWithArticle(ctx context.Context, commentID int64) (*models.CommentWithArticle, error) {
	var c models.CommentWithArticle
	query := r.db.Rebind(`
		SELECT ` + commentWithArticleColumns + `
		FROM comments c
		JOIN articles a ON a.id = c.article_id
		WHERE c.id = ?`)
	if err := r.db.GetContext(ctx, &c, query, commentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

// ListPendingComments returns pending comments oldest first, optionally for one article
func (r *SQLBlogRepository) ListPendingComments(ctx context.Context, articleID *int64, limit int) ([]models.CommentWithArticle, error) {
	query := `
		SELECT ` + commentWithArticleColumns + `
		FROM comments c
		JOIN articles a ON a.id = c.article_id
		WHERE c.status = ?`
	args := []interface{}{models.CommentPending}

	if articleID != nil {
		query += ` AND c.article_id = ?`
		args = append(args, *articleID)
	}
	query += ` ORDER BY c.created_at ASC, c.id ASC LIMIT ?`
	args = append(args, limit)

	comments := []models.CommentWithArticle{}
	if err := r.db.SelectContext(ctx, &comments, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list pending comments: %w", err)
	}
	return comments, nil
}

// SetCommentStatus moves a pending comment to its final status.
// Returns ErrConflict if the comment was already moderated.
func (r *SQLBlogRepository) SetCommentStatus(ctx context.Context, commentID int64, status models.CommentStatus) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE comments SET status = ? WHERE id = ? AND status = ?`),
		status, commentID, models.CommentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update comment status: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ListApprovedComments returns an article's approved comments, newest first
func (r *SQLBlogRepository) ListApprovedComments(ctx context.Context, articleID int64) ([]models.Comment, error) {
	comments := []models.Comment{}
	query := r.db.Rebind(`
		SELECT id, article_id, author_name, content, status, created_at
		FROM comments
		WHERE article_id = ? AND status = ?
		ORDER BY created_at DESC, id DESC`)
	if err := r.db.SelectContext(ctx, &comments, query, articleID, models.CommentApproved); err != nil {
		return nil, fmt.Errorf("failed to list approved comments: %w", err)
	}
	return comments, nil
}
