package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/localagent/agentblog/src/database"
	"github.com/localagent/agentblog/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBlogRepo(t *testing.T) *SQLBlogRepository {
	t.Helper()
	return NewBlogRepository(database.NewTestDatabase(t, database.StoreBlog))
}

func seedArticle(t *testing.T, repo *SQLBlogRepository, slug string, status models.ArticleStatus, at time.Time) *models.Article {
	t.Helper()
	a := &models.Article{
		Title:     "Title " + slug,
		Excerpt:   "excerpt",
		Content:   "content",
		Slug:      slug,
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, repo.CreateArticle(context.Background(), a))
	return a
}

func seedComment(t *testing.T, repo *SQLBlogRepository, articleID int64, author string, at time.Time) *models.Comment {
	t.Helper()
	c := &models.Comment{
		ArticleID:  articleID,
		AuthorName: author,
		Content:    "nice post",
		Status:     models.CommentPending,
		CreatedAt:  at,
	}
	require.NoError(t, repo.CreateComment(context.Background(), c))
	return c
}

func TestBlogRepository_CreateArticle_DuplicateSlug(t *testing.T) {
	repo := newBlogRepo(t)
	now := time.Now().UTC()
	seedArticle(t, repo, "hello-world", models.ArticlePublished, now)

	err := repo.CreateArticle(context.Background(), &models.Article{
		Title: "again", Excerpt: "e", Content: "c", Slug: "hello-world",
		Status: models.ArticlePublished, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.SlugExists(context.Background(), "hello-world")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.SlugExists(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBlogRepository_GetPublishedArticleBySlug(t *testing.T) {
	repo := newBlogRepo(t)
	now := time.Now().UTC()
	seedArticle(t, repo, "hello-world", models.ArticlePublished, now)
	seedArticle(t, repo, "draft-post", models.ArticleDraft, now)

	a, err := repo.GetPublishedArticleBySlug(context.Background(), "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Title hello-world", a.Title)

	_, err = repo.GetPublishedArticleBySlug(context.Background(), "draft-post")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetPublishedArticleBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlogRepository_ListPublishedArticles_NewestFirst(t *testing.T) {
	repo := newBlogRepo(t)
	base := time.Now().UTC()
	seedArticle(t, repo, "first", models.ArticlePublished, base)
	seedArticle(t, repo, "second", models.ArticlePublished, base.Add(time.Minute))
	seedArticle(t, repo, "hidden", models.ArticleDraft, base.Add(2*time.Minute))

	articles, err := repo.ListPublishedArticles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "second", articles[0].Slug)
	assert.Empty(t, articles[0].Content, "list omits bodies")

	articles, err = repo.ListPublishedArticles(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestBlogRepository_CommentForeignKey(t *testing.T) {
	repo := newBlogRepo(t)
	err := repo.CreateComment(context.Background(), &models.Comment{
		ArticleID: 999, AuthorName: "bot", Content: "x",
		Status: models.CommentPending, CreatedAt: time.Now().UTC(),
	})
	require.Error(t, err)
}

func TestBlogRepository_ListPendingComments(t *testing.T) {
	repo := newBlogRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()
	a1 := seedArticle(t, repo, "one", models.ArticlePublished, base)
	a2 := seedArticle(t, repo, "two", models.ArticlePublished, base)

	late := seedComment(t, repo, a1.ID, "late", base.Add(2*time.Minute))
	early := seedComment(t, repo, a1.ID, "early", base)
	other := seedComment(t, repo, a2.ID, "other", base.Add(time.Minute))
	done := seedComment(t, repo, a2.ID, "done", base)
	require.NoError(t, repo.SetCommentStatus(ctx, done.ID, models.CommentApproved))

	all, err := repo.ListPendingComments(ctx, nil, 100)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, early.ID, all[0].ID)
	assert.Equal(t, other.ID, all[1].ID)
	assert.Equal(t, late.ID, all[2].ID)
	assert.Equal(t, "Title one", all[0].ArticleTitle)
	assert.Equal(t, "one", all[0].ArticleSlug)

	filtered, err := repo.ListPendingComments(ctx, &a2.ID, 100)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, other.ID, filtered[0].ID)

	limited, err := repo.ListPendingComments(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBlogRepository_SetCommentStatus_Terminal(t *testing.T) {
	repo := newBlogRepo(t)
	ctx := context.Background()
	a := seedArticle(t, repo, "one", models.ArticlePublished, time.Now().UTC())
	c := seedComment(t, repo, a.ID, "bot-1", time.Now().UTC())

	require.NoError(t, repo.SetCommentStatus(ctx, c.ID, models.CommentRejected))
	assert.ErrorIs(t, repo.SetCommentStatus(ctx, c.ID, models.CommentApproved), ErrConflict)

	got, err := repo.GetCommentWithArticle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommentRejected, got.Status)

	_, err = repo.GetCommentWithArticle(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlogRepository_ListApprovedComments(t *testing.T) {
	repo := newBlogRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()
	a := seedArticle(t, repo, "one", models.ArticlePublished, base)

	old := seedComment(t, repo, a.ID, "old", base)
	recent := seedComment(t, repo, a.ID, "recent", base.Add(time.Minute))
	seedComment(t, repo, a.ID, "pending", base)
	require.NoError(t, repo.SetCommentStatus(ctx, old.ID, models.CommentApproved))
	require.NoError(t, repo.SetCommentStatus(ctx, recent.ID, models.CommentApproved))

	comments, err := repo.ListApprovedComments(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "recent", comments[0].AuthorName)
	assert.Equal(t, "old", comments[1].AuthorName)
}

func TestBlogRepository_ListPendingComments_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBlogRepository(database.NewDatabaseFromDB(sqlx.NewDb(db, "sqlite3"), database.StoreBlog, database.DriverSQLite))
	mock.ExpectQuery("FROM comments c").WillReturnError(errors.New("no such table: comments"))

	_, err = repo.ListPendingComments(context.Background(), nil, 10)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
