package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/localagent/agentblog/src/database"
	"github.com/localagent/agentblog/src/models"
)

const keyRequestColumns = `id, request_id, agent_name, agent_description, contact_email, status, api_key, created_at, approved_at`

const apiKeyColumns = `id, api_key, agent_name, status, comment_count, created_at, last_used_at`

// SQLKeyRepository implements KeyRepository on the key store
type SQLKeyRepository struct {
	db *sqlx.DB
}

// NewKeyRepository creates a key repository
func NewKeyRepository(db *database.Database) *SQLKeyRepository {
	return &SQLKeyRepository{db: db.DB()}
}

// CreateRequest inserts a pending request and sets req.ID
func (r *SQLKeyRepository) CreateRequest(ctx context.Context, req *models.KeyRequest) error {
	query := r.db.Rebind(`
		INSERT INTO key_requests (request_id, agent_name, agent_description, contact_email, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.db.QueryRowxContext(ctx, query,
		req.RequestID, req.AgentName, req.AgentDescription, req.ContactEmail, req.Status, req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert key request: %w", err)
	}
	return nil
}

// GetRequest loads a request by its public id
func (r *SQLKeyRepository) GetRequest(ctx context.Context, requestID string) (*models.KeyRequest, error) {
	var req models.KeyRequest
	query := r.db.Rebind(`SELECT ` + keyRequestColumns + ` FROM key_requests WHERE request_id = ?`)
	if err := r.db.GetContext(ctx, &req, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key request: %w", err)
	}
	return &req, nil
}

// FindActiveRequest returns the agent's pending or approved request
func (r *SQLKeyRepository) FindActiveRequest(ctx context.Context, agentName string) (*models.KeyRequest, error) {
	var req models.KeyRequest
	query := r.db.Rebind(`
		SELECT ` + keyRequestColumns + `
		FROM key_requests
		WHERE agent_name = ? AND status IN ('pending', 'approved')
		ORDER BY created_at DESC, id DESC
		LIMIT 1`)
	if err := r.db.GetContext(ctx, &req, query, agentName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active key request: %w", err)
	}
	return &req, nil
}

// ListPendingRequests returns pending requests, oldest first
func (r *SQLKeyRepository) ListPendingRequests(ctx context.Context) ([]models.KeyRequest, error) {
	requests := []models.KeyRequest{}
	query := r.db.Rebind(`
		SELECT ` + keyRequestColumns + `
		FROM key_requests
		WHERE status = ?
		ORDER BY created_at ASC, id ASC`)
	if err := r.db.SelectContext(ctx, &requests, query, models.KeyRequestPending); err != nil {
		return nil, fmt.Errorf("failed to list pending key requests: %w", err)
	}
	return requests, nil
}

// ApproveRequest marks the request approved and mints the key in one transaction.
// Returns ErrConflict if the request is no longer pending.
func (r *SQLKeyRepository) ApproveRequest(ctx context.Context, requestID, apiKey string, at time.Time) (*models.APIKey, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE key_requests
		SET status = ?, api_key = ?, approved_at = ?
		WHERE request_id = ? AND status = ?`),
		models.KeyRequestApproved, apiKey, at, requestID, models.KeyRequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to approve key request: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to approve key request: %w", err)
	} else if n == 0 {
		return nil, ErrConflict
	}

	key := &models.APIKey{
		Key:       apiKey,
		Status:    models.KeyStatusActive,
		CreatedAt: at,
	}
	if err := tx.GetContext(ctx, &key.AgentName, tx.Rebind(`SELECT agent_name FROM key_requests WHERE request_id = ?`), requestID); err != nil {
		return nil, fmt.Errorf("failed to read approved request: %w", err)
	}

	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO api_keys (api_key, agent_name, status, comment_count, created_at)
		VALUES (?, ?, ?, 0, ?)
		RETURNING id`),
		key.Key, key.AgentName, key.Status, key.CreatedAt,
	).Scan(&key.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert api key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	return key, nil
}

// RejectRequest marks a pending request rejected.
// Returns ErrConflict if the request is no longer pending.
func (r *SQLKeyRepository) RejectRequest(ctx context.Context, requestID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE key_requests SET status = ? WHERE request_id = ? AND status = ?`),
		models.KeyRequestRejected, requestID, models.KeyRequestPending,
	)
	if err != nil {
		return fmt.Errorf("failed to reject key request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reject key request: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// GetAPIKey loads an issued key
func (r *SQLKeyRepository) GetAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	var k models.APIKey
	query := r.db.Rebind(`SELECT ` + apiKeyColumns + ` FROM api_keys WHERE api_key = ?`)
	if err := r.db.GetContext(ctx, &k, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

// ListAPIKeys returns every issued key, newest first
func (r *SQLKeyRepository) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	keys := []models.APIKey{}
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// RecordKeyUsage bumps comment_count and last_used_at
func (r *SQLKeyRepository) RecordKeyUsage(ctx context.Context, key string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE api_keys
		SET comment_count = comment_count + 1, last_used_at = ?
		WHERE api_key = ?`),
		at, key,
	)
	if err != nil {
		return fmt.Errorf("failed to record key usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record key usage: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAPIKey withdraws an issued key
func (r *SQLKeyRepository) RevokeAPIKey(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE api_keys SET status = ? WHERE api_key = ?`),
		models.KeyStatusRevoked, key,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
