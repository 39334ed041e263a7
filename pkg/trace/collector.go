// Package trace captures bounded per-node audit records: capped input/output
// snapshots, identity-based item diffs, and filter removal reasons.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
)

// Collector builds and persists node traces. Trace failures are logged and
// never fail the node they describe.
type Collector struct {
	logger *slog.Logger
	traces persistence.TraceRepository
	cap    int
}

// NewCollector creates a collector. A snapshotCap of zero or less falls back
// to models.DefaultSnapshotCap.
func NewCollector(logger *slog.Logger, traces persistence.TraceRepository, snapshotCap int) *Collector {
	if snapshotCap <= 0 {
		snapshotCap = models.DefaultSnapshotCap
	}

	return &Collector{
		logger: logger.With("module", "trace"),
		traces: traces,
		cap:    snapshotCap,
	}
}

// Record captures one node execution. Saving under an existing
// (execution, node) key replaces the previous trace.
func (c *Collector) Record(ctx context.Context, executionID, nodeID, nodeType string, inputs map[string]models.NodeResult, output models.NodeResult, duration time.Duration) {
	inputItems := mergeInputItems(inputs)
	outputItems := output.Items()

	trace := &models.NodeTrace{
		ExecutionID: executionID,
		NodeID:      nodeID,
		NodeType:    nodeType,
		InputCount:  len(inputItems),
		OutputCount: len(outputItems),
		DurationMs:  duration.Milliseconds(),
		CapturedAt:  time.Now().UTC(),
	}

	trace.InputSnapshot, trace.InputPartial = c.snapshot(inputItems)
	trace.OutputSnapshot, trace.OutputPartial = c.snapshot(outputItems)
	trace.ItemsAdded, trace.ItemsRemoved = diff(inputItems, outputItems)

	if failures, ok := output.Data["filter_failures"].(map[string]string); ok && len(failures) > 0 {
		trace.FilterFailures = failures
	}

	err := c.traces.SaveTrace(ctx, trace)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to save node trace",
			"execution_id", executionID, "node_id", nodeID, "error", err)
	}
}

func (c *Collector) snapshot(items []any) ([]any, bool) {
	if len(items) <= c.cap {
		return items, false
	}

	return items[:c.cap], true
}

// diff computes identity-based added/removed sets between the input and
// output collections, in stable sorted order.
func diff(inputs, outputs []any) (added, removed []string) {
	inputIDs := identitySet(inputs)
	outputIDs := identitySet(outputs)

	added = []string{}
	removed = []string{}

	for id := range outputIDs {
		if _, ok := inputIDs[id]; !ok {
			added = append(added, id)
		}
	}

	for id := range inputIDs {
		if _, ok := outputIDs[id]; !ok {
			removed = append(removed, id)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)

	return added, removed
}

func identitySet(items []any) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for i, item := range items {
		set[Identity(item, i)] = struct{}{}
	}

	return set
}

// Identity keys an item by its "id" field when present, falling back to a
// stable rendering of its content.
func Identity(item any, index int) string {
	if obj, ok := item.(map[string]any); ok {
		if id, ok := obj["id"].(string); ok && id != "" {
			return id
		}
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("#%d", index)
	}

	return string(raw)
}

func mergeInputItems(inputs map[string]models.NodeResult) []any {
	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var items []any
	for _, id := range ids {
		items = append(items, inputs[id].Items()...)
	}

	return items
}
