// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution context was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDecisionNotFound indicates a sizing decision was not found.
	ErrDecisionNotFound = errors.New("decision not found")

	// ErrTraceNotFound indicates no trace exists for the given key.
	ErrTraceNotFound = errors.New("trace not found")

	// ErrVersionConflict indicates an optimistic-concurrency failure: the
	// decision was mutated since the caller read it, or is no longer pending.
	ErrVersionConflict = errors.New("decision version conflict")
)

// DecisionError wraps decision-related errors with additional context.
type DecisionError struct {
	Op         string // Operation being performed (e.g., "Approve", "Update")
	DecisionID string
	Err        error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s operation failed for decision %s: %v", e.Op, e.DecisionID, e.Err)
}

func (e *DecisionError) Unwrap() error {
	return e.Err
}

func (e *DecisionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ExecutionError wraps execution-context errors with additional context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsDecisionNotFound checks if an error indicates a decision was not found.
func IsDecisionNotFound(err error) bool {
	return errors.Is(err, ErrDecisionNotFound)
}

// IsVersionConflict checks if an error is an optimistic-concurrency failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
