package session

import (
	"errors"
	"fmt"
)

// ===== SESSION ERRORS =====

var (
	// Generic errors
	ErrNotFound      = errors.New("resource not found")
	ErrForbidden     = errors.New("forbidden - insufficient permissions")
	ErrInternalError = errors.New("internal server error")

	// Quiz specific errors
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizNotPublished = errors.New("quiz is not published")
	ErrQuizExpired      = errors.New("quiz has expired")
	ErrQuizHasNoUnits   = errors.New("quiz has no scorable questions")

	// Attempt specific errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAccessDenied     = errors.New("access denied to attempt")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptLimitExceeded    = errors.New("maximum attempts exceeded")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrAttemptCannotStart      = errors.New("cannot start new attempt")

	// Transition errors. Programmatic callers get these loudly; UI paths
	// are expected to prevent reaching them.
	ErrNotActive      = errors.New("session is not active")
	ErrNotSubmitted   = errors.New("session is not submitted")
	ErrNotReviewing   = errors.New("session is not in review mode")
	ErrAlreadyStarted = errors.New("session already started")

	// Hint specific errors
	ErrTipsNotAllowed    = errors.New("hints are not enabled for this quiz")
	ErrTipsQuotaExceeded = errors.New("hint quota exhausted for this attempt")

	// Addressing errors
	ErrUnitOutOfRange = errors.New("flat index out of range")
)

// PersistenceError wraps an entity-store failure that the session survived
// locally: the in-memory transition completed, the write must be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (pe *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s (local state is current, retry the write): %v", pe.Op, pe.Err)
}

func (pe *PersistenceError) Unwrap() error {
	return pe.Err
}

// PermissionError mirrors the explicit-denial style used across the
// service layer.
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

// IsDenial checks if error represents an explicit quota/permission refusal
func IsDenial(err error) bool {
	var pe *PermissionError
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAttemptAccessDenied) ||
		errors.Is(err, ErrAttemptLimitExceeded) ||
		errors.Is(err, ErrTipsNotAllowed) ||
		errors.Is(err, ErrTipsQuotaExceeded) ||
		errors.As(err, &pe)
}

// IsInvalidTransition checks if error represents a lifecycle misuse
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrNotSubmitted) ||
		errors.Is(err, ErrNotReviewing) ||
		errors.Is(err, ErrAlreadyStarted) ||
		errors.Is(err, ErrAttemptAlreadySubmitted)
}

// IsRecoverable checks if error left local state intact with a retryable write
func IsRecoverable(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
