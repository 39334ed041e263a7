// Package persistence provides the data storage abstraction for workflows,
// execution contexts, sizing decisions, and node traces. Storage technology
// is unconstrained; the engine only hands over plain records.
package persistence

import (
	"context"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// Persistence aggregates the repositories the engine needs.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	DecisionRepository() DecisionRepository
	TraceRepository() TraceRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionRepository stores per-run execution contexts, including suspended
// ones awaiting approval.
type ExecutionRepository interface {
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionContext, error)
	SaveExecution(ctx context.Context, execCtx *models.ExecutionContext) error
}

// DecisionRepository stores sizing decision records. UpdateDecision is a
// compare-and-swap on the version counter: the write succeeds only when the
// stored version equals expectedVersion, otherwise ErrVersionConflict.
type DecisionRepository interface {
	DecisionByID(ctx context.Context, id string) (*models.Decision, error)
	SaveDecision(ctx context.Context, decision *models.Decision) error
	UpdateDecision(ctx context.Context, decision *models.Decision, expectedVersion int) error
}

// TraceRepository stores node traces keyed by (execution id, node id); saving
// an existing key replaces the previous trace.
type TraceRepository interface {
	TraceByNode(ctx context.Context, executionID, nodeID string) (*models.NodeTrace, error)
	TracesByExecution(ctx context.Context, executionID string) ([]*models.NodeTrace, error)
	SaveTrace(ctx context.Context, trace *models.NodeTrace) error
}
