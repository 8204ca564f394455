package models

// KeyRequestStatus is the review state of an agent's key request
type KeyRequestStatus string

const (
	KeyRequestPending  KeyRequestStatus = "pending"
	KeyRequestApproved KeyRequestStatus = "approved"
	KeyRequestRejected KeyRequestStatus = "rejected"
)

// KeyStatus represents the activation status of an API key
type KeyStatus string

const (
	// KeyStatusActive indicates the key can post comments
	KeyStatusActive KeyStatus = "active"
	// KeyStatusRevoked indicates the key was withdrawn
	KeyStatusRevoked KeyStatus = "revoked"
)

// ArticleStatus controls article visibility
type ArticleStatus string

const (
	ArticlePublished ArticleStatus = "published"
	ArticleDraft     ArticleStatus = "draft"
)

// CommentStatus is the moderation state of a comment
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

// Decision is an administrative verdict on a pending key request or comment
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision accepts "approve" or "reject"
func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), true
	}
	return "", false
}

// Past returns the outcome word used in responses, e.g. "approved"
func (d Decision) Past() string {
	if d == DecisionApprove {
		return "approved"
	}
	return "rejected"
}

// Comment limits
const (
	MaxCommentChars = 3000
	MaxCommentWords = 500
)

// Article limits
const (
	MaxTitleChars   = 200
	MaxExcerptChars = 500
	MaxContentChars = 50000
)
