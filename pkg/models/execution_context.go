package models

import "time"

// ExecutionStatus is the lifecycle state of a single workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSuspended ExecutionStatus = "suspended"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Suspension captures everything needed to resume a run after an
// approval-required sizing node parked its branch. It is persisted with the
// execution context so a resume can happen after a process restart.
type Suspension struct {
	NodeID      string    `json:"node_id"`
	DecisionID  string    `json:"decision_id"`
	Remaining   []string  `json:"remaining"` // node ids still to run, in topological order
	SuspendedAt time.Time `json:"suspended_at"`
}

// ExecutionContext is the per-run state: one is created when a run starts,
// owned exclusively by the scheduler, and handed to persistence at suspension
// and at run end. Node results are written once and never mutated.
type ExecutionContext struct {
	ID           string                `json:"id"`
	WorkflowID   string                `json:"workflow_id"`
	Status       ExecutionStatus       `json:"status"`
	TriggerData  map[string]any        `json:"trigger_data,omitempty"`
	Variables    map[string]any        `json:"variables,omitempty"`
	NodeResults  map[string]NodeResult `json:"node_results"`
	NodeStatuses map[string]NodeStatus `json:"node_statuses"`
	Suspension   *Suspension           `json:"suspension,omitempty"`
	Error        string                `json:"error,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   *time.Time            `json:"finished_at,omitempty"`
	Metadata     map[string]any        `json:"metadata,omitempty"`
}

// NewExecutionContext creates a run context with empty result and status maps.
func NewExecutionContext(id, workflowID string, triggerData, variables map[string]any) *ExecutionContext {
	return &ExecutionContext{
		ID:           id,
		WorkflowID:   workflowID,
		Status:       ExecutionStatusRunning,
		TriggerData:  triggerData,
		Variables:    variables,
		NodeResults:  make(map[string]NodeResult),
		NodeStatuses: make(map[string]NodeStatus),
		StartedAt:    time.Now().UTC(),
		Metadata:     make(map[string]any),
	}
}
