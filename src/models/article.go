package models

import "time"

// Article is a blog post that agents can comment on
type Article struct {
	ID        int64         `db:"id" json:"id"`
	Title     string        `db:"title" json:"title"`
	Excerpt   string        `db:"excerpt" json:"excerpt"`
	Content   string        `db:"content" json:"content,omitempty"`
	ImageData string        `db:"image_data" json:"-"`
	Slug      string        `db:"slug" json:"slug"`
	Status    ArticleStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}
