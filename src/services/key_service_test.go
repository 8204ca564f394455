package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/localagent/agentblog/src/database"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/repositories"
	"github.com/localagent/agentblog/src/repositories/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexKeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type recordingNotifier struct {
	mu        sync.Mutex
	requested []models.KeyRequest
	decided   []models.Decision
}

func (n *recordingNotifier) KeyRequested(_ context.Context, req models.KeyRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, req)
}

func (n *recordingNotifier) KeyDecided(_ context.Context, _ models.KeyRequest, d models.Decision) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decided = append(n.decided, d)
}

func newSQLKeyService(t *testing.T) *KeyService {
	t.Helper()
	db := database.NewTestDatabase(t, database.StoreKeys)
	return NewKeyService(repositories.NewKeyRepository(db), nil)
}

func TestRequestKey_Validation(t *testing.T) {
	ks := NewKeyService(mock.NewKeyRepository(), nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      KeyRequestInput
		message string
	}{
		{"empty name", KeyRequestInput{AgentName: ""}, "agent_name is required"},
		{"whitespace name", KeyRequestInput{AgentName: "   "}, "agent_name is required"},
		{"bad email", KeyRequestInput{AgentName: "bot", ContactEmail: "not-an-email"}, "Invalid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ks.RequestKey(ctx, tt.in)
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestRequestKey_CreatesPendingRequest(t *testing.T) {
	repo := mock.NewKeyRepository()
	notifier := &recordingNotifier{}
	ks := NewKeyService(repo, nil)
	ks.SetNotifier(notifier)

	id, err := ks.RequestKey(context.Background(), KeyRequestInput{
		AgentName:        "  bot-1 ",
		AgentDescription: " reads papers ",
		ContactEmail:     "bot@example.com",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{32}$`, id)

	require.Len(t, repo.Calls["CreateRequest"], 1)
	stored := repo.Calls["CreateRequest"][0].(*models.KeyRequest)
	assert.Equal(t, "bot-1", stored.AgentName)
	assert.Equal(t, "reads papers", stored.AgentDescription)
	assert.Equal(t, models.KeyRequestPending, stored.Status)

	require.Len(t, notifier.requested, 1)
	assert.Equal(t, "bot@example.com", notifier.requested[0].ContactEmail)
}

func TestRequestKey_EncryptsContactEmail(t *testing.T) {
	enc, err := NewEncryptor(validHexKey())
	require.NoError(t, err)

	repo := mock.NewKeyRepository()
	var stored *models.KeyRequest
	repo.CreateRequestFunc = func(_ context.Context, req *models.KeyRequest) error {
		copied := *req
		stored = &copied
		return nil
	}
	repo.GetRequestFunc = func(_ context.Context, _ string) (*models.KeyRequest, error) {
		copied := *stored
		return &copied, nil
	}

	ks := NewKeyService(repo, enc)
	id, err := ks.RequestKey(context.Background(), KeyRequestInput{AgentName: "bot", ContactEmail: "bot@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, "bot@example.com", stored.ContactEmail)

	req, err := ks.CheckStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", req.ContactEmail)
}

func TestRequestKey_DuplicateActiveRequest(t *testing.T) {
	for _, status := range []models.KeyRequestStatus{models.KeyRequestPending, models.KeyRequestApproved} {
		t.Run(string(status), func(t *testing.T) {
			repo := mock.NewKeyRepository()
			repo.FindActiveRequestFunc = func(_ context.Context, _ string) (*models.KeyRequest, error) {
				return &models.KeyRequest{RequestID: "existing", Status: status}, nil
			}
			ks := NewKeyService(repo, nil)

			_, err := ks.RequestKey(context.Background(), KeyRequestInput{AgentName: "bot"})
			require.ErrorIs(t, err, ErrDuplicateRequest)

			var dup *DuplicateRequestError
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, "existing", dup.RequestID)
			assert.Equal(t, status, dup.Status)
			assert.Empty(t, repo.Calls["CreateRequest"])
		})
	}
}

func TestRequestKey_LostInsertRace(t *testing.T) {
	repo := mock.NewKeyRepository()
	lookups := 0
	repo.FindActiveRequestFunc = func(_ context.Context, _ string) (*models.KeyRequest, error) {
		lookups++
		if lookups == 1 {
			return nil, repositories.ErrNotFound
		}
		return &models.KeyRequest{RequestID: "winner", Status: models.KeyRequestPending}, nil
	}
	repo.CreateRequestFunc = func(_ context.Context, _ *models.KeyRequest) error {
		return repositories.ErrDuplicate
	}

	ks := NewKeyService(repo, nil)
	_, err := ks.RequestKey(context.Background(), KeyRequestInput{AgentName: "bot"})

	var dup *DuplicateRequestError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "winner", dup.RequestID)
}

func TestRequestKey_StoreFailure(t *testing.T) {
	repo := mock.NewKeyRepository()
	repo.CreateRequestFunc = func(_ context.Context, _ *models.KeyRequest) error {
		return errors.New("disk full")
	}

	ks := NewKeyService(repo, nil)
	_, err := ks.RequestKey(context.Background(), KeyRequestInput{AgentName: "bot"})
	assert.ErrorIs(t, err, ErrStore)
}

func TestCheckStatus(t *testing.T) {
	ks := newSQLKeyService(t)
	ctx := context.Background()

	_, err := ks.CheckStatus(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ks.CheckStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := ks.RequestKey(ctx, KeyRequestInput{AgentName: "bot"})
	require.NoError(t, err)

	req, err := ks.CheckStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.KeyRequestPending, req.Status)
	assert.Empty(t, req.IssuedKey())
}

func TestDecide_ApproveIssuesKey(t *testing.T) {
	ks := newSQLKeyService(t)
	notifier := &recordingNotifier{}
	ks.SetNotifier(notifier)
	ctx := context.Background()

	id, err := ks.RequestKey(ctx, KeyRequestInput{AgentName: "bot"})
	require.NoError(t, err)

	decision, err := ks.Decide(ctx, id, "approve")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApprove, decision.Decision)
	assert.Equal(t, "bot", decision.AgentName)
	assert.Regexp(t, hexKeyPattern, decision.APIKey)

	req, err := ks.CheckStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.KeyRequestApproved, req.Status)
	assert.Equal(t, decision.APIKey, req.IssuedKey())
	assert.NotNil(t, req.ApprovedAt)

	keys, err := ks.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].IsActive())

	assert.Equal(t, []models.Decision{models.DecisionApprove}, notifier.decided)
}

func TestDecide_TerminalStates(t *testing.T) {
	ks := newSQLKeyService(t)
	ctx := context.Background()

	id, err := ks.RequestKey(ctx, KeyRequestInput{AgentName: "bot"})
	require.NoError(t, err)

	_, err = ks.Decide(ctx, id, "reject")
	require.NoError(t, err)

	_, err = ks.Decide(ctx, id, "approve")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = ks.Decide(ctx, id, "reject")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	req, err := ks.CheckStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.KeyRequestRejected, req.Status)
	assert.Empty(t, req.IssuedKey())

	// a rejected agent may ask again
	_, err = ks.RequestKey(ctx, KeyRequestInput{AgentName: "bot"})
	assert.NoError(t, err)
}

func TestDecide_InvalidParameters(t *testing.T) {
	ks := NewKeyService(mock.NewKeyRepository(), nil)

	_, err := ks.Decide(context.Background(), "", "approve")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ks.Decide(context.Background(), "r1", "maybe")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecide_UnknownRequest(t *testing.T) {
	ks := NewKeyService(mock.NewKeyRepository(), nil)
	_, err := ks.Decide(context.Background(), "missing", "approve")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecide_ConcurrentApprovalLoses(t *testing.T) {
	repo := mock.NewKeyRepository()
	repo.GetRequestFunc = func(_ context.Context, id string) (*models.KeyRequest, error) {
		return &models.KeyRequest{RequestID: id, AgentName: "bot", Status: models.KeyRequestPending}, nil
	}
	repo.ApproveRequestFunc = func(_ context.Context, _, _ string, _ time.Time) (*models.APIKey, error) {
		return nil, repositories.ErrConflict
	}

	ks := NewKeyService(repo, nil)
	_, err := ks.Decide(context.Background(), "r1", "approve")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestListPending_OldestFirst(t *testing.T) {
	ks := newSQLKeyService(t)
	ctx := context.Background()
	base := time.Now().UTC()

	tick := 0
	ks.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := ks.RequestKey(ctx, KeyRequestInput{AgentName: "a"})
	require.NoError(t, err)
	second, err := ks.RequestKey(ctx, KeyRequestInput{AgentName: "b"})
	require.NoError(t, err)

	pending, err := ks.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first, pending[0].RequestID)
	assert.Equal(t, second, pending[1].RequestID)
}

func TestRevokeKey(t *testing.T) {
	ks := newSQLKeyService(t)
	ctx := context.Background()

	id, err := ks.RequestKey(ctx, KeyRequestInput{AgentName: "bot"})
	require.NoError(t, err)
	decision, err := ks.Decide(ctx, id, "approve")
	require.NoError(t, err)

	require.NoError(t, ks.RevokeKey(ctx, decision.APIKey))
	assert.ErrorIs(t, ks.RevokeKey(ctx, "unknown"), ErrNotFound)

	keys, err := ks.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].IsActive())
}
