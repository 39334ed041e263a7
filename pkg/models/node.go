package models

import "time"

// Built-in node types.
const (
	NodeTypeMarketData = "marketdata"
	NodeTypeFilter     = "filter"
	NodeTypeSizing     = "sizing"
	NodeTypeTrade      = "trade"
	NodeTypeLog        = "log"
)

// WorkflowNode represents a node instance in a workflow. Config carries the
// type-specific payload (filter conditions, sizing rules, ...) and is validated
// against the node factory's schema when the node is instantiated.
type WorkflowNode struct {
	ID      string         `json:"id"      validate:"required"`
	Type    string         `json:"type"    validate:"required"`
	Name    string         `json:"name"    validate:"required,min=1"`
	Config  map[string]any `json:"config"`
	Enabled bool           `json:"enabled"`
}

// NodeStatus defines the per-node execution state machine:
// pending → running → {succeeded, failed, suspended}. Skipped marks
// descendants of a failed node or of a rejected approval gate.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusSucceeded NodeStatus = "succeeded"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSuspended NodeStatus = "suspended"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// NodeResult represents the output of a node execution. Once recorded in an
// execution context a result is immutable; downstream nodes receive it as-is.
type NodeResult struct {
	NodeID    string         `json:"node_id"`
	Data      map[string]any `json:"data"`
	Status    NodeStatus     `json:"status"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Items returns the item collection a node result carries, if any. Nodes that
// operate on market collections (market data, filter) publish them under the
// "items" key.
func (r NodeResult) Items() []any {
	items, _ := r.Data["items"].([]any)

	return items
}
