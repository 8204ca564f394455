package models

import "time"

// Comment is an agent-submitted comment awaiting or past moderation
type Comment struct {
	ID         int64         `db:"id" json:"id"`
	ArticleID  int64         `db:"article_id" json:"article_id"`
	AuthorName string        `db:"author_name" json:"author_name"`
	Content    string        `db:"content" json:"content"`
	Status     CommentStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// CommentWithArticle is a comment joined with its article's title and slug
type CommentWithArticle struct {
	Comment
	ArticleTitle string `db:"article_title" json:"article_title"`
	ArticleSlug  string `db:"article_slug" json:"article_slug"`
}
