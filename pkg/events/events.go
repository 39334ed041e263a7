// Package events defines the event types published on the bus for workflow
// runs and sizing decisions.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/oddsflow/oddsflow/pkg/models"
)

type EventType string

// Kafka topic carrying all engine events.
const Topic = "oddsflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowTriggeredEvent EventType = "workflow.triggered"

	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
	WorkflowExecutionSuspendedEvent EventType = "workflow.execution.suspended"
	WorkflowExecutionResumedEvent   EventType = "workflow.execution.resumed"

	NodeCompletionEvent EventType = "node.completion"

	DecisionPendingEvent  EventType = "decision.pending"
	DecisionApprovedEvent EventType = "decision.approved"
	DecisionRejectedEvent EventType = "decision.rejected"
	DecisionExecutedEvent EventType = "decision.executed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// WorkflowTriggered asks a worker to start a run of a published workflow.
type WorkflowTriggered struct {
	BaseEvent

	TriggerSource string         `json:"trigger_source"` // queue, schedule, api
	TriggerData   map[string]any `json:"trigger_data,omitempty"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	WorkflowName string         `json:"workflow_name"`
	TriggerData  map[string]any `json:"trigger_data,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
}

func (w WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	DurationMs    int64  `json:"duration_ms"`
	NodesExecuted int    `json:"nodes_executed"`
}

func (w WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	NodeID        string `json:"node_id"`
	Error         string `json:"error"`
	DurationMs    int64  `json:"duration_ms"`
	NodesExecuted int    `json:"nodes_executed"`
}

func (w WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// WorkflowExecutionSuspended is published when a run parks on a pending
// approval. The decision id points at the record a reviewer must act on.
type WorkflowExecutionSuspended struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	DecisionID  string `json:"decision_id"`
}

func (w WorkflowExecutionSuspended) GetType() EventType {
	return WorkflowExecutionSuspendedEvent
}

// WorkflowExecutionResumed asks a worker to pick up a suspended run after its
// pending decision was approved or rejected.
type WorkflowExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	DecisionID  string `json:"decision_id"`
	ResumedBy   string `json:"resumed_by,omitempty"`
}

func (w WorkflowExecutionResumed) GetType() EventType {
	return WorkflowExecutionResumedEvent
}

type NodeCompletion struct {
	BaseEvent

	ExecutionID  string            `json:"execution_id"`
	NodeID       string            `json:"node_id"`
	NodeType     string            `json:"node_type"`
	Status       models.NodeStatus `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
}

func (n NodeCompletion) GetType() EventType {
	return NodeCompletionEvent
}

type DecisionPending struct {
	BaseEvent

	ExecutionID string                `json:"execution_id"`
	DecisionID  string                `json:"decision_id"`
	MarketID    string                `json:"market_id"`
	Action      models.DecisionAction `json:"action"`
	NotionalUSD float64               `json:"notional_usd"`
}

func (d DecisionPending) GetType() EventType {
	return DecisionPendingEvent
}

type DecisionApproved struct {
	BaseEvent

	ExecutionID string  `json:"execution_id"`
	DecisionID  string  `json:"decision_id"`
	ApprovedBy  string  `json:"approved_by,omitempty"`
	NotionalUSD float64 `json:"notional_usd"`
}

func (d DecisionApproved) GetType() EventType {
	return DecisionApprovedEvent
}

type DecisionRejected struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	DecisionID  string `json:"decision_id"`
	RejectedBy  string `json:"rejected_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (d DecisionRejected) GetType() EventType {
	return DecisionRejectedEvent
}

type DecisionExecuted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	DecisionID  string `json:"decision_id"`
	TradeID     string `json:"trade_id"`
}

func (d DecisionExecuted) GetType() EventType {
	return DecisionExecutedEvent
}
