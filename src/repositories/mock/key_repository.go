package mock

import (
	"context"
	"time"

	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/repositories"
)

// KeyRepository is a mock implementation of repositories.KeyRepository.
// Lookups without a stub return repositories.ErrNotFound.
type KeyRepository struct {
	// Function stubs that can be overridden in tests
	CreateRequestFunc       func(ctx context.Context, req *models.KeyRequest) error
	GetRequestFunc          func(ctx context.Context, requestID string) (*models.KeyRequest, error)
	FindActiveRequestFunc   func(ctx context.Context, agentName string) (*models.KeyRequest, error)
	ListPendingRequestsFunc func(ctx context.Context) ([]models.KeyRequest, error)
	ApproveRequestFunc      func(ctx context.Context, requestID, apiKey string, at time.Time) (*models.APIKey, error)
	RejectRequestFunc       func(ctx context.Context, requestID string) error
	GetAPIKeyFunc           func(ctx context.Context, key string) (*models.APIKey, error)
	ListAPIKeysFunc         func(ctx context.Context) ([]models.APIKey, error)
	RecordKeyUsageFunc      func(ctx context.Context, key string, at time.Time) error
	RevokeAPIKeyFunc        func(ctx context.Context, key string) error

	// Call tracking
	Calls map[string][]interface{}
}

// NewKeyRepository creates a new mock key repository
func NewKeyRepository() *KeyRepository {
	return &KeyRepository{
		Calls: make(map[string][]interface{}),
	}
}

func (m *KeyRepository) CreateRequest(ctx context.Context, req *models.KeyRequest) error {
	m.Calls["CreateRequest"] = append(m.Calls["CreateRequest"], req)
	if m.CreateRequestFunc != nil {
		return m.CreateRequestFunc(ctx, req)
	}
	return nil
}

func (m *KeyRepository) GetRequest(ctx context.Context, requestID string) (*models.KeyRequest, error) {
	m.Calls["GetRequest"] = append(m.Calls["GetRequest"], requestID)
	if m.GetRequestFunc != nil {
		return m.GetRequestFunc(ctx, requestID)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyRepository) FindActiveRequest(ctx context.Context, agentName string) (*models.KeyRequest, error) {
	m.Calls["FindActiveRequest"] = append(m.Calls["FindActiveRequest"], agentName)
	if m.FindActiveRequestFunc != nil {
		return m.FindActiveRequestFunc(ctx, agentName)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyRepository) ListPendingRequests(ctx context.Context) ([]models.KeyRequest, error) {
	m.Calls["ListPendingRequests"] = append(m.Calls["ListPendingRequests"], nil)
	if m.ListPendingRequestsFunc != nil {
		return m.ListPendingRequestsFunc(ctx)
	}
	return nil, nil
}

func (m *KeyRepository) ApproveRequest(ctx context.Context, requestID, apiKey string, at time.Time) (*models.APIKey, error) {
	m.Calls["ApproveRequest"] = append(m.Calls["ApproveRequest"], []interface{}{requestID, apiKey, at})
	if m.ApproveRequestFunc != nil {
		return m.ApproveRequestFunc(ctx, requestID, apiKey, at)
	}
	return &models.APIKey{Key: apiKey, Status: models.KeyStatusActive, CreatedAt: at}, nil
}

func (m *KeyRepository) RejectRequest(ctx context.Context, requestID string) error {
	m.Calls["RejectRequest"] = append(m.Calls["RejectRequest"], requestID)
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, requestID)
	}
	return nil
}

func (m *KeyRepository) GetAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	m.Calls["GetAPIKey"] = append(m.Calls["GetAPIKey"], key)
	if m.GetAPIKeyFunc != nil {
		return m.GetAPIKeyFunc(ctx, key)
	}
	return nil, repositories.ErrNotFound
}

func (m *KeyRepository) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	m.Calls["ListAPIKeys"] = append(m.Calls["ListAPIKeys"], nil)
	if m.ListAPIKeysFunc != nil {
		return m.ListAPIKeysFunc(ctx)
	}
	return nil, nil
}

func (m *KeyRepository) RecordKeyUsage(ctx context.Context, key string, at time.Time) error {
	m.Calls["RecordKeyUsage"] = append(m.Calls["RecordKeyUsage"], []interface{}{key, at})
	if m.RecordKeyUsageFunc != nil {
		return m.RecordKeyUsageFunc(ctx, key, at)
	}
	return nil
}

func (m *KeyRepository) RevokeAPIKey(ctx context.Context, key string) error {
	m.Calls["RevokeAPIKey"] = append(m.Calls["RevokeAPIKey"], key)
	if m.RevokeAPIKeyFunc != nil {
		return m.RevokeAPIKeyFunc(ctx, key)
	}
	return nil
}

var _ repositories.KeyRepository = (*KeyRepository)(nil)
