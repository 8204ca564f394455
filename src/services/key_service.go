package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/localagent/agentblog/src/logging"
	"github.com/localagent/agentblog/src/models"
	"github.com/localagent/agentblog/src/repositories"
	"github.com/localagent/agentblog/src/telemetry"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// KeyRequestInput is what an agent submits when asking for a key
type KeyRequestInput struct {
	AgentName        string
	AgentDescription string
	ContactEmail     string
}

// KeyDecision is the outcome of approving or rejecting a request
type KeyDecision struct {
	RequestID string
	AgentName string
	Decision  models.Decision
	APIKey    string // set only on approval
}

// KeyService runs the key request and issuance workflow
type KeyService struct {
	repo      repositories.KeyRepository
	encryptor *Encryptor
	notifier  Notifier
	analytics *AnalyticsService
	logger    zerolog.Logger
	now       func() time.Time
}

// NewKeyService creates a new key service.
// A nil encryptor stores contact e-mails in plaintext.
func NewKeyService(repo repositories.KeyRepository, encryptor *Encryptor) *KeyService {
	return &KeyService{
		repo:      repo,
		encryptor: encryptor,
		notifier:  noopNotifier{},
		logger:    logging.NewLogger("keys"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier sets where request and decision notifications go
func (ks *KeyService) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	ks.notifier = n
}

// SetAnalytics sets the product analytics sink
func (ks *KeyService) SetAnalytics(a *AnalyticsService) {
	ks.analytics = a
}

// RequestKey records a pending request and returns its public id
func (ks *KeyService) RequestKey(ctx context.Context, in KeyRequestInput) (string, error) {
	name := strings.TrimSpace(in.AgentName)
	description := strings.TrimSpace(in.AgentDescription)
	email := strings.TrimSpace(in.ContactEmail)

	if name == "" {
		return "", newValidationError("agent_name is required")
	}
	if email != "" {
		if err := validate.Var(email, "email"); err != nil {
			return "", newValidationError("Invalid email format")
		}
	}

	if err := ks.checkNoActiveRequest(ctx, name); err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			telemetry.KeyRequestsTotal.WithLabelValues("duplicate").Inc()
		}
		return "", err
	}

	requestID, err := generateToken(16)
	if err != nil {
		return "", err
	}

	storedEmail, err := ks.encryptor.Seal(fieldContactEmail, email)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt contact email: %w", err)
	}

	req := &models.KeyRequest{
		RequestID:        requestID,
		AgentName:        name,
		AgentDescription: description,
		ContactEmail:     storedEmail,
		Status:           models.KeyRequestPending,
		CreatedAt:        ks.now(),
	}
	if err := ks.repo.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// another request for this agent landed first
			if dupErr := ks.checkNoActiveRequest(ctx, name); dupErr != nil {
				telemetry.KeyRequestsTotal.WithLabelValues("duplicate").Inc()
				return "", dupErr
			}
		}
		return "", storeError("create key request", err)
	}

	ks.logger.Info().
		Str("request_id", requestID).
		Str("agent_name", name).
		Msg("key requested")
	telemetry.KeyRequestsTotal.WithLabelValues("requested").Inc()

	req.ContactEmail = email
	ks.notifier.KeyRequested(ctx, *req)
	ks.analytics.TrackKeyRequested(ctx, name)

	return requestID, nil
}

func (ks *KeyService) checkNoActiveRequest(ctx context.Context, agentName string) error {
	existing, err := ks.repo.FindActiveRequest(ctx, agentName)
	if err == nil {
		return &DuplicateRequestError{RequestID: existing.RequestID, Status: existing.Status}
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return storeError("find active key request", err)
	}
	return nil
}

// CheckStatus returns a request; the issued key is only set once approved
func (ks *KeyService) CheckStatus(ctx context.Context, requestID string) (*models.KeyRequest, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, newValidationError("request_id is required")
	}

	req, err := ks.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	ks.decryptEmail(req)
	return req, nil
}

// ListPending returns requests awaiting review, oldest first
func (ks *KeyService) ListPending(ctx context.Context) ([]models.KeyRequest, error) {
	requests, err := ks.repo.ListPendingRequests(ctx)
	if err != nil {
		return nil, storeError("list pending key requests", err)
	}
	for i := range requests {
		ks.decryptEmail(&requests[i])
	}
	return requests, nil
}

// Decide approves or rejects a pending request. Both outcomes are terminal.
func (ks *KeyService) Decide(ctx context.Context, requestID, action string) (*KeyDecision, error) {
	requestID = strings.TrimSpace(requestID)
	decision, ok := models.ParseDecision(action)
	if requestID == "" || !ok {
		return nil, newValidationError("Invalid parameters")
	}

	req, err := ks.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, ErrAlreadyProcessed
	}

	result := &KeyDecision{
		RequestID: requestID,
		AgentName: req.AgentName,
		Decision:  decision,
	}

	switch decision {
	case models.DecisionApprove:
		keyValue, err := generateKeyValue()
		if err != nil {
			return nil, err
		}
		now := ks.now()
		if _, err := ks.repo.ApproveRequest(ctx, requestID, keyValue, now); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				return nil, ErrAlreadyProcessed
			}
			return nil, storeError("approve key request", err)
		}
		result.APIKey = keyValue
		req.Status = models.KeyRequestApproved
		req.APIKey = &keyValue
		req.ApprovedAt = &now
	case models.DecisionReject:
		if err := ks.repo.RejectRequest(ctx, requestID); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				return nil, ErrAlreadyProcessed
			}
			return nil, storeError("reject key request", err)
		}
		req.Status = models.KeyRequestRejected
	}

	ks.logger.Info().
		Str("request_id", requestID).
		Str("agent_name", req.AgentName).
		Str("decision", decision.Past()).
		Msg("key request decided")
	telemetry.KeyRequestsTotal.WithLabelValues(decision.Past()).Inc()

	ks.decryptEmail(req)
	ks.notifier.KeyDecided(ctx, *req, decision)
	ks.analytics.TrackKeyDecided(ctx, req.AgentName, decision)

	return result, nil
}

// ListKeys returns every issued key
func (ks *KeyService) ListKeys(ctx context.Context) ([]models.APIKey, error) {
	keys, err := ks.repo.ListAPIKeys(ctx)
	if err != nil {
		return nil, storeError("list api keys", err)
	}
	return keys, nil
}

// RevokeKey withdraws an issued key; later submissions with it are unauthorized
func (ks *KeyService) RevokeKey(ctx context.Context, key string) error {
	if err := ks.repo.RevokeAPIKey(ctx, strings.TrimSpace(key)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return storeError("revoke api key", err)
	}
	ks.logger.Info().Msg("api key revoked")
	return nil
}

func (ks *KeyService) getRequest(ctx context.Context, requestID string) (*models.KeyRequest, error) {
	req, err := ks.repo.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError("get key request", err)
	}
	return req, nil
}

// decryptEmail replaces the stored contact e-mail with its plaintext.
// An unreadable value is dropped rather than failing the request.
func (ks *KeyService) decryptEmail(req *models.KeyRequest) {
	plain, err := ks.encryptor.Open(fieldContactEmail, req.ContactEmail)
	if err != nil {
		ks.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("failed to decrypt contact email")
		plain = ""
	}
	req.ContactEmail = plain
}

// generateToken returns n random bytes hex-encoded
func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// generateKeyValue generates a 256-bit API key
func generateKeyValue() (string, error) {
	return generateToken(32)
}
