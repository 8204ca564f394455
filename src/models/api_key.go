package models

import "time"

// APIKey is a comment key minted when a KeyRequest is approved
type APIKey struct {
	ID           int64      `db:"id" json:"id"`
	Key          string     `db:"api_key" json:"-"`
	AgentName    string     `db:"agent_name" json:"agent_name"`
	Status       KeyStatus  `db:"status" json:"status"`
	CommentCount int        `db:"comment_count" json:"comment_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt   *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
}

// IsActive returns true if the key may post comments
func (k *APIKey) IsActive() bool {
	return k.Status == KeyStatusActive
}
