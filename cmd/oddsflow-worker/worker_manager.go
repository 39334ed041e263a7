package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/oddsflow/oddsflow/pkg/eventbus"
	"github.com/oddsflow/oddsflow/pkg/events"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/otelhelper"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/registry"
	"github.com/oddsflow/oddsflow/pkg/trace"
	"github.com/oddsflow/oddsflow/pkg/triggers/queue"
	"github.com/oddsflow/oddsflow/pkg/triggers/schedule"
	"github.com/oddsflow/oddsflow/pkg/workflow"
)

// WorkerManager consumes triggered and resumed events and drives the
// workflow executor. It also hosts the schedule/queue triggers declared in
// published workflow metadata.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	executor    *workflow.Executor
	tracer      oteltrace.Tracer
	triggers    []protocol.Trigger
}

func NewWorkerManager(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	reg *registry.Registry,
) *WorkerManager {
	collector := trace.NewCollector(logger, p.TraceRepository(), 0)

	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "worker_manager"),
		persistence: p,
		registry:    reg,
		eventBus:    eventBus,
		executor:    workflow.NewExecutor(logger, p, reg, collector, eventBus, id),
		tracer:      noop.NewTracerProvider().Tracer("oddsflow-worker"),
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	tracer, err := otelhelper.NewTracer(ctx, "oddsflow-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		w.tracer = tracer
	}

	err = w.eventBus.Handle(events.WorkflowTriggeredEvent, w.handleWorkflowTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.WorkflowExecutionResumedEvent, w.handleExecutionResumed)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	err = w.startTriggers(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker")
	w.stopTriggers(ctx)

	return nil
}

func (w *WorkerManager) handleWorkflowTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.WorkflowTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for WorkflowTriggered")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, triggered.WorkflowID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With("workflow_id", triggered.WorkflowID, "event_id", triggered.ID)
	logger.InfoContext(ctx, "Processing workflow triggered event", "source", triggered.TriggerSource)

	execCtx, err := w.executor.Run(ctx, triggered.WorkflowID, triggered.TriggerData)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to execute workflow", "error", err)

		return err
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execCtx.ID))
	logger.InfoContext(ctx, "Workflow run finished", "execution_id", execCtx.ID, "status", execCtx.Status)

	return nil
}

func (w *WorkerManager) handleExecutionResumed(ctx context.Context, event any) error {
	resumed, ok := event.(*events.WorkflowExecutionResumed)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for WorkflowExecutionResumed")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.resume",
		attribute.String(otelhelper.ExecutionIDKey, resumed.ExecutionID),
		attribute.String(otelhelper.DecisionIDKey, resumed.DecisionID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With("execution_id", resumed.ExecutionID, "decision_id", resumed.DecisionID)
	logger.InfoContext(ctx, "Resuming suspended execution")

	execCtx, err := w.executor.Resume(ctx, resumed.ExecutionID)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to resume execution", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Execution resumed", "status", execCtx.Status)

	return nil
}

// startTriggers builds schedule/queue triggers from published workflow
// metadata. A workflow opts in with metadata like
// {"trigger": {"type": "schedule", "cron": "*/5 * * * *"}}.
func (w *WorkerManager) startTriggers(ctx context.Context) error {
	workflows, err := w.persistence.WorkflowRepository().Workflows(ctx)
	if err != nil {
		return err
	}

	for _, wf := range workflows {
		if wf.Status != models.WorkflowStatusPublished {
			continue
		}

		config, ok := wf.Metadata["trigger"].(map[string]any)
		if !ok {
			continue
		}

		config["workflow_id"] = wf.ID

		trigger, err := w.buildTrigger(config)
		if err != nil {
			w.logger.ErrorContext(ctx, "Invalid trigger config", "workflow_id", wf.ID, "error", err)

			continue
		}

		err = trigger.Start(ctx, w.fire)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to start trigger", "workflow_id", wf.ID, "error", err)

			continue
		}

		w.triggers = append(w.triggers, trigger)
	}

	return nil
}

func (w *WorkerManager) buildTrigger(config map[string]any) (protocol.Trigger, error) {
	triggerType, _ := config["type"].(string)

	switch triggerType {
	case "queue":
		return queue.NewTrigger(config, w.logger)
	default:
		return schedule.NewTrigger(config, w.logger)
	}
}

func (w *WorkerManager) fire(ctx context.Context, workflowID string, triggerData map[string]any) error {
	event := events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, workflowID),
		TriggerSource: "trigger",
		TriggerData:   triggerData,
	}
	event.WorkerID = w.id

	return w.eventBus.Publish(ctx, workflowID, event)
}

func (w *WorkerManager) stopTriggers(ctx context.Context) {
	for _, trigger := range w.triggers {
		err := trigger.Stop(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to stop trigger", "error", err)
		}
	}
}
