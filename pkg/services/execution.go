package services

import (
	"context"
	"log/slog"

	"github.com/oddsflow/oddsflow/pkg/eventbus"
	"github.com/oddsflow/oddsflow/pkg/events"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// Execution exposes run-level operations to the API: triggering a workflow
// and reading execution state, decisions, and traces. Actual node execution
// happens on a worker consuming the triggered event.
type Execution struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	bus         eventbus.EventPublisher
}

func NewExecution(logger *slog.Logger, p persistence.Persistence, bus eventbus.EventPublisher) *Execution {
	return &Execution{
		logger:      logger.With("module", "execution_service"),
		persistence: p,
		bus:         bus,
	}
}

// Trigger asks a worker to run a published workflow. It validates the
// workflow state up front so callers get an immediate error instead of a
// silently dropped event.
func (s *Execution) Trigger(ctx context.Context, workflowID, source string, triggerData map[string]any) error {
	wf, err := s.persistence.WorkflowRepository().WorkflowByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if wf.Status != models.WorkflowStatusPublished {
		return &ServiceError{
			Op:      "Trigger",
			Code:    "WORKFLOW_NOT_PUBLISHED",
			Message: "workflow " + workflowID + " is " + string(wf.Status),
			Err:     ErrWorkflowNotListed,
		}
	}

	event := events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, workflowID),
		TriggerSource: source,
		TriggerData:   triggerData,
	}

	err = s.bus.Publish(ctx, workflowID, event)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "workflow trigger published", "workflow_id", workflowID, "source", source)

	return nil
}

func (s *Execution) ExecutionByID(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	return s.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
}

func (s *Execution) DecisionByID(ctx context.Context, decisionID string) (*models.Decision, error) {
	return s.persistence.DecisionRepository().DecisionByID(ctx, decisionID)
}

func (s *Execution) Traces(ctx context.Context, executionID string) ([]*models.NodeTrace, error) {
	return s.persistence.TraceRepository().TracesByExecution(ctx, executionID)
}

func (s *Execution) TraceByNode(ctx context.Context, executionID, nodeID string) (*models.NodeTrace, error) {
	return s.persistence.TraceRepository().TraceByNode(ctx, executionID, nodeID)
}
