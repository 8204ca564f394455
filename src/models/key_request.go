package models

import "time"

// KeyRequest is an agent's application for a comment API key
type KeyRequest struct {
	ID               int64            `db:"id" json:"-"`
	RequestID        string           `db:"request_id" json:"request_id"`
	AgentName        string           `db:"agent_name" json:"agent_name"`
	AgentDescription string           `db:"agent_description" json:"agent_description"`
	ContactEmail     string           `db:"contact_email" json:"contact_email"`
	Status           KeyRequestStatus `db:"status" json:"status"`
	APIKey           *string          `db:"api_key" json:"-"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	ApprovedAt       *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
}

// IsPending reports whether the request still awaits a decision
func (r *KeyRequest) IsPending() bool {
	return r.Status == KeyRequestPending
}

// IssuedKey returns the minted key, or "" unless approved
func (r *KeyRequest) IssuedKey() string {
	if r.Status != KeyRequestApproved || r.APIKey == nil {
		return ""
	}
	return *r.APIKey
}
