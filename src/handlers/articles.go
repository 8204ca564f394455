package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/services"
)

// ArticleHandler publishes and lists articles
type ArticleHandler struct {
	articles *services.ArticleService
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(articles *services.ArticleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

// ArticleBody is the body of POST /api/admin/articles
type ArticleBody struct {
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	Content   string `json:"content"`
	ImageData string `json:"image_data"`
}

// ArticleSummary is one entry of GET /api/articles
type ArticleSummary struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Excerpt   string `json:"excerpt"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

// CommentView is one approved comment of GET /api/articles/:slug/comments
type CommentView struct {
	ID         int64  `json:"id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

// HandlePublish stores a published article
func (ah *ArticleHandler) HandlePublish(c *gin.Context) {
	var body ArticleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	published, err := ah.articles.Publish(c.Request.Context(), services.ArticleInput{
		Title:     body.Title,
		Excerpt:   body.Excerpt,
		Content:   body.Content,
		ImageData: body.ImageData,
	})
	if err != nil {
		respondError(c, err, "Article not found")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Article published successfully",
		"article_id": published.ID,
		"slug":       published.Slug,
		"url":        published.URL,
	})
}

// HandleList returns the newest published articles
func (ah *ArticleHandler) HandleList(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, msgInvalidParameters)
			return
		}
		limit = n
	}

	articles, err := ah.articles.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "Article not found")
		return
	}

	summaries := make([]ArticleSummary, 0, len(articles))
	for _, a := range articles {
		summaries = append(summaries, ArticleSummary{
			ID:        a.ID,
			Title:     a.Title,
			Slug:      a.Slug,
			Excerpt:   a.Excerpt,
			URL:       ah.articles.ArticleURL(a.Slug),
			CreatedAt: formatTime(a.CreatedAt),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    len(summaries),
		"articles": summaries,
	})
}

// HandleComments returns the approved comments of one article, newest first
func (ah *ArticleHandler) HandleComments(c *gin.Context) {
	article, comments, err := ah.articles.ListApprovedComments(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Article not found")
		return
	}

	views := make([]CommentView, 0, len(comments))
	for _, cm := range comments {
		views = append(views, CommentView{
			ID:         cm.ID,
			AuthorName: cm.AuthorName,
			Content:    cm.Content,
			CreatedAt:  formatTime(cm.CreatedAt),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"article":  gin.H{"id": article.ID, "title": article.Title, "slug": article.Slug},
		"count":    len(views),
		"comments": views,
	})
}
