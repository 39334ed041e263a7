package models

import "time"

// DefaultSnapshotCap bounds how many items a trace snapshot keeps.
const DefaultSnapshotCap = 1000

// NodeTrace is a bounded audit capture of one node execution, keyed by
// (execution id, node id). Re-running a node overwrites its trace.
type NodeTrace struct {
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	NodeType    string `json:"node_type"`

	InputSnapshot  []any `json:"input_snapshot"`
	OutputSnapshot []any `json:"output_snapshot"`
	InputPartial   bool  `json:"input_partial"`
	OutputPartial  bool  `json:"output_partial"`
	InputCount     int   `json:"input_count"`
	OutputCount    int   `json:"output_count"`

	ItemsAdded   []string `json:"items_added"`
	ItemsRemoved []string `json:"items_removed"`

	// FilterFailures maps a removed item's identity to the reason its first
	// failing condition reported. Populated for filter-type nodes only.
	FilterFailures map[string]string `json:"filter_failures,omitempty"`

	DurationMs int64     `json:"duration_ms"`
	CapturedAt time.Time `json:"captured_at"`
}
