package services

import (
	"errors"
	"fmt"

	"github.com/localagent/agentblog/src/models"
)

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

var (
	// ErrValidation indicates malformed, missing or oversized input
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates a missing, unknown or inactive credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates an unknown id or slug
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessed indicates a key request was already decided
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrAlreadyModerated indicates a comment was already moderated
	ErrAlreadyModerated = errors.New("comment already moderated")

	// ErrDuplicateRequest indicates the agent already has an active request
	ErrDuplicateRequest = errors.New("duplicate key request")

	// ErrStore indicates a persistence failure; details are logged, never returned to callers
	ErrStore = errors.New("store error")
)

// ValidationError carries a caller-facing message and matches ErrValidation
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// DuplicateRequestError reports the agent's existing request
type DuplicateRequestError struct {
	RequestID string
	Status    models.KeyRequestStatus
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("agent already has a %s request (%s)", e.Status, e.RequestID)
}

// Is lets errors.Is(err, ErrDuplicateRequest) match
func (e *DuplicateRequestError) Is(target error) bool { return target == ErrDuplicateRequest }

// storeError wraps a repository failure so callers can match ErrStore
func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}
