// Package workflow runs strategy workflows: graph validation, topological
// node execution, suspension on pending approvals, and resumption after an
// approval decision, including across process restarts.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oddsflow/oddsflow/pkg/eventbus"
	"github.com/oddsflow/oddsflow/pkg/events"
	"github.com/oddsflow/oddsflow/pkg/graph"
	"github.com/oddsflow/oddsflow/pkg/models"
	sizingnode "github.com/oddsflow/oddsflow/pkg/nodes/sizing"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/registry"
	"github.com/oddsflow/oddsflow/pkg/trace"
)

type Executor struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	collector   *trace.Collector
	bus         eventbus.EventPublisher
	workerID    string
}

func NewExecutor(logger *slog.Logger, p persistence.Persistence, reg *registry.Registry, collector *trace.Collector, bus eventbus.EventPublisher, workerID string) *Executor {
	return &Executor{
		logger:      logger.With("module", "workflow_executor", "worker_id", workerID),
		persistence: p,
		registry:    reg,
		collector:   collector,
		bus:         bus,
		workerID:    workerID,
	}
}

// Run starts a new execution of a published workflow and drives it until it
// completes, fails, or suspends on a pending approval.
func (e *Executor) Run(ctx context.Context, workflowID string, triggerData map[string]any) (*models.ExecutionContext, error) {
	wf, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if wf.Status != models.WorkflowStatusPublished {
		return nil, fmt.Errorf("workflow %s is %s, only published workflows run", workflowID, wf.Status)
	}

	ordered, err := graph.Validate(wf.Nodes, wf.Edges)
	if err != nil {
		return nil, fmt.Errorf("workflow %s graph is invalid: %w", workflowID, err)
	}

	execCtx := models.NewExecutionContext(generateExecutionID(), workflowID, triggerData, wf.Variables)

	e.logger.InfoContext(ctx, "starting workflow execution",
		"workflow_id", workflowID, "execution_id", execCtx.ID, "nodes", len(wf.Nodes))

	e.publish(ctx, workflowID, events.WorkflowExecutionStarted{
		BaseEvent:    e.baseEvent(events.WorkflowExecutionStartedEvent, workflowID),
		ExecutionID:  execCtx.ID,
		WorkflowName: wf.Name,
		TriggerData:  triggerData,
		Variables:    wf.Variables,
	})

	return e.walk(ctx, ordered, execCtx, ordered.Order)
}

// Resume continues a suspended execution after its pending decision was
// approved or rejected. All state comes from persistence, so it works from
// any process.
func (e *Executor) Resume(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	execCtx, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch execution %s: %w", executionID, err)
	}

	if execCtx.Status != models.ExecutionStatusSuspended || execCtx.Suspension == nil {
		return nil, fmt.Errorf("execution %s is %s, not suspended", executionID, execCtx.Status)
	}

	wf, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, execCtx.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", execCtx.WorkflowID, err)
	}

	ordered, err := graph.Validate(wf.Nodes, wf.Edges)
	if err != nil {
		return nil, fmt.Errorf("workflow %s graph is invalid: %w", execCtx.WorkflowID, err)
	}

	susp := *execCtx.Suspension

	decision, err := e.persistence.DecisionRepository().DecisionByID(ctx, susp.DecisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch decision %s: %w", susp.DecisionID, err)
	}

	if decision.Status == models.DecisionStatusPending {
		return nil, fmt.Errorf("decision %s is still pending, cannot resume execution %s", decision.ID, executionID)
	}

	e.logger.InfoContext(ctx, "resuming workflow execution",
		"execution_id", executionID, "decision_id", decision.ID, "decision_status", decision.Status)

	// The suspended node resolves from the decision record. A rejected
	// decision is still a recorded node output; only its descendants are
	// cut off so independent branches keep running.
	execCtx.NodeResults[susp.NodeID] = sizingnode.DecisionResult(susp.NodeID, decision)
	execCtx.NodeStatuses[susp.NodeID] = models.NodeStatusSucceeded

	if decision.Status == models.DecisionStatusRejected {
		e.skipDescendants(execCtx, ordered, susp.NodeID)
	}

	execCtx.Status = models.ExecutionStatusRunning
	execCtx.Suspension = nil

	return e.walk(ctx, ordered, execCtx, susp.Remaining)
}

// walk executes nodes in topological order. Every node in the list is either
// executed, skipped, or becomes the suspension point.
func (e *Executor) walk(ctx context.Context, ordered *graph.OrderedGraph, execCtx *models.ExecutionContext, order []string) (*models.ExecutionContext, error) {
	started := time.Now()

	for i, nodeID := range order {
		// Cancellation is cooperative and only observed between nodes.
		if ctx.Err() != nil {
			return e.finishFailed(ctx, execCtx, nodeID, ctx.Err(), started)
		}

		if isTerminal(execCtx.NodeStatuses[nodeID]) {
			continue
		}

		nodeModel, ok := ordered.Node(nodeID)
		if !ok {
			return e.finishFailed(ctx, execCtx, nodeID, fmt.Errorf("node %s not in graph", nodeID), started)
		}

		if !nodeModel.Enabled {
			execCtx.NodeStatuses[nodeID] = models.NodeStatusSkipped
			e.skipDescendants(execCtx, ordered, nodeID)

			continue
		}

		if !e.predecessorsSucceeded(execCtx, ordered, nodeID) {
			execCtx.NodeStatuses[nodeID] = models.NodeStatusSkipped

			continue
		}

		suspended, err := e.runNode(ctx, ordered, execCtx, nodeModel, order[i+1:])
		if err != nil {
			return nil, err
		}

		if suspended {
			return execCtx, nil
		}
	}

	return e.finishCompleted(ctx, execCtx, started)
}

// runNode executes one node and records its result and trace. A node failure
// skips its descendants but keeps the run going.
func (e *Executor) runNode(ctx context.Context, ordered *graph.OrderedGraph, execCtx *models.ExecutionContext, nodeModel *models.WorkflowNode, remaining []string) (bool, error) {
	nodeID := nodeModel.ID
	execCtx.NodeStatuses[nodeID] = models.NodeStatusRunning

	inputs := make(map[string]models.NodeResult)
	for _, pred := range ordered.Predecessors(nodeID) {
		inputs[pred] = execCtx.NodeResults[pred]
	}

	instance, err := e.registry.CreateNode(ctx, nodeModel.Type, nodeID, nodeModel.Config)
	if err != nil {
		e.failNode(ctx, execCtx, ordered, nodeModel, err, 0)

		return false, nil
	}

	nodeStart := time.Now()
	result, err := instance.Execute(ctx, execCtx, inputs)
	duration := time.Since(nodeStart)

	if err != nil {
		if susp, ok := protocol.AsSuspend(err); ok {
			return true, e.suspend(ctx, execCtx, susp, remaining)
		}

		e.failNode(ctx, execCtx, ordered, nodeModel, err, duration)

		return false, nil
	}

	execCtx.NodeResults[nodeID] = result
	execCtx.NodeStatuses[nodeID] = models.NodeStatusSucceeded

	e.collector.Record(ctx, execCtx.ID, nodeID, nodeModel.Type, inputs, result, duration)

	e.publish(ctx, execCtx.WorkflowID, events.NodeCompletion{
		BaseEvent:   e.baseEvent(events.NodeCompletionEvent, execCtx.WorkflowID),
		ExecutionID: execCtx.ID,
		NodeID:      nodeID,
		NodeType:    nodeModel.Type,
		Status:      models.NodeStatusSucceeded,
		DurationMs:  duration.Milliseconds(),
	})

	return false, nil
}

// suspend persists the execution with its suspension marker so any process
// can resume it later.
func (e *Executor) suspend(ctx context.Context, execCtx *models.ExecutionContext, susp *protocol.SuspendError, remaining []string) error {
	execCtx.NodeStatuses[susp.NodeID] = models.NodeStatusSuspended
	execCtx.Status = models.ExecutionStatusSuspended
	execCtx.Suspension = &models.Suspension{
		NodeID:      susp.NodeID,
		DecisionID:  susp.DecisionID,
		Remaining:   append([]string(nil), remaining...),
		SuspendedAt: time.Now().UTC(),
	}

	err := e.persistence.ExecutionRepository().SaveExecution(ctx, execCtx)
	if err != nil {
		return fmt.Errorf("failed to persist suspended execution %s: %w", execCtx.ID, err)
	}

	e.logger.InfoContext(ctx, "execution suspended awaiting approval",
		"execution_id", execCtx.ID, "node_id", susp.NodeID, "decision_id", susp.DecisionID)

	e.publish(ctx, execCtx.WorkflowID, events.WorkflowExecutionSuspended{
		BaseEvent:   e.baseEvent(events.WorkflowExecutionSuspendedEvent, execCtx.WorkflowID),
		ExecutionID: execCtx.ID,
		NodeID:      susp.NodeID,
		DecisionID:  susp.DecisionID,
	})

	return nil
}

func (e *Executor) failNode(ctx context.Context, execCtx *models.ExecutionContext, ordered *graph.OrderedGraph, nodeModel *models.WorkflowNode, nodeErr error, duration time.Duration) {
	nodeID := nodeModel.ID

	e.logger.ErrorContext(ctx, "node execution failed",
		"execution_id", execCtx.ID, "node_id", nodeID, "node_type", nodeModel.Type, "error", nodeErr)

	execCtx.NodeResults[nodeID] = models.NodeResult{
		NodeID:    nodeID,
		Data:      map[string]any{},
		Status:    models.NodeStatusFailed,
		Error:     nodeErr.Error(),
		Timestamp: time.Now().UTC(),
	}
	execCtx.NodeStatuses[nodeID] = models.NodeStatusFailed

	e.skipDescendants(execCtx, ordered, nodeID)

	e.publish(ctx, execCtx.WorkflowID, events.NodeCompletion{
		BaseEvent:    e.baseEvent(events.NodeCompletionEvent, execCtx.WorkflowID),
		ExecutionID:  execCtx.ID,
		NodeID:       nodeID,
		NodeType:     nodeModel.Type,
		Status:       models.NodeStatusFailed,
		ErrorMessage: nodeErr.Error(),
		DurationMs:   duration.Milliseconds(),
	})
}

// skipDescendants marks every not-yet-run descendant skipped. Nodes that
// already resolved keep their status.
func (e *Executor) skipDescendants(execCtx *models.ExecutionContext, ordered *graph.OrderedGraph, nodeID string) {
	for _, desc := range ordered.Descendants(nodeID) {
		if !isTerminal(execCtx.NodeStatuses[desc]) {
			execCtx.NodeStatuses[desc] = models.NodeStatusSkipped
		}
	}
}

func (e *Executor) predecessorsSucceeded(execCtx *models.ExecutionContext, ordered *graph.OrderedGraph, nodeID string) bool {
	for _, pred := range ordered.Predecessors(nodeID) {
		if execCtx.NodeStatuses[pred] != models.NodeStatusSucceeded {
			return false
		}
	}

	return true
}

// finishCompleted closes the run. Individual node failures do not fail the
// run; the error stays attached to the failing node's result.
func (e *Executor) finishCompleted(ctx context.Context, execCtx *models.ExecutionContext, started time.Time) (*models.ExecutionContext, error) {
	now := time.Now().UTC()
	execCtx.Status = models.ExecutionStatusCompleted
	execCtx.FinishedAt = &now

	err := e.persistence.ExecutionRepository().SaveExecution(ctx, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to persist execution %s: %w", execCtx.ID, err)
	}

	e.logger.InfoContext(ctx, "workflow execution completed",
		"execution_id", execCtx.ID, "nodes_executed", len(execCtx.NodeResults))

	e.publish(ctx, execCtx.WorkflowID, events.WorkflowExecutionCompleted{
		BaseEvent:     e.baseEvent(events.WorkflowExecutionCompletedEvent, execCtx.WorkflowID),
		ExecutionID:   execCtx.ID,
		DurationMs:    time.Since(started).Milliseconds(),
		NodesExecuted: len(execCtx.NodeResults),
	})

	return execCtx, nil
}

func (e *Executor) finishFailed(ctx context.Context, execCtx *models.ExecutionContext, nodeID string, cause error, started time.Time) (*models.ExecutionContext, error) {
	now := time.Now().UTC()
	execCtx.Status = models.ExecutionStatusFailed
	execCtx.Error = cause.Error()
	execCtx.FinishedAt = &now

	err := e.persistence.ExecutionRepository().SaveExecution(ctx, execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to persist execution %s: %w", execCtx.ID, err)
	}

	e.publish(ctx, execCtx.WorkflowID, events.WorkflowExecutionFailed{
		BaseEvent:     e.baseEvent(events.WorkflowExecutionFailedEvent, execCtx.WorkflowID),
		ExecutionID:   execCtx.ID,
		NodeID:        nodeID,
		Error:         cause.Error(),
		DurationMs:    time.Since(started).Milliseconds(),
		NodesExecuted: len(execCtx.NodeResults),
	})

	return execCtx, cause
}

func (e *Executor) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, workflowID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Executor) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = e.workerID

	return base
}

func isTerminal(status models.NodeStatus) bool {
	switch status {
	case models.NodeStatusSucceeded, models.NodeStatusFailed, models.NodeStatusSkipped:
		return true
	default:
		return false
	}
}

func generateExecutionID() string {
	return "exec-" + uuid.New().String()
}
