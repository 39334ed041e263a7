// Package services holds the business operations behind the HTTP API:
// triggering runs, approving and rejecting sizing decisions, and reading
// execution state.
package services

import (
	"errors"
	"fmt"

	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrInvalidOverride   = errors.New("override notional must be positive and no larger than the recommendation")
	ErrWorkflowNotListed = errors.New("workflow is not published")
)

// Business logic conflicts (409 Conflict). A decision that already left
// pending is a stale read the same way a lost CAS is, so the not-pending
// error carries the version-conflict sentinel.
var (
	ErrDecisionNotPending    = fmt.Errorf("decision is not pending: %w", persistence.ErrVersionConflict)
	ErrExecutionNotSuspended = errors.New("execution is not suspended")
)

// ServiceError wraps service-level errors with the operation that failed.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrInvalidOverride) ||
		errors.Is(err, ErrWorkflowNotListed)
}

// IsConflictError reports whether an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDecisionNotPending) ||
		errors.Is(err, ErrExecutionNotSuspended)
}
