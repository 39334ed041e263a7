// Package filter provides the node that applies a compiled multi-condition
// filter to the upstream item collection.
package filter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oddsflow/oddsflow/pkg/filter"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/trace"
)

// FilterNode evaluates every upstream item against its compiled conditions.
// Items flow through in input order; removed items are reported with the
// first failing condition's reason so the trace can explain each removal.
type FilterNode struct {
	id     string
	config *filter.Config
}

func NewFilterNode(id string, config map[string]any) (*FilterNode, error) {
	compiled, err := filter.ParseConfig(config)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}

	return &FilterNode{id: id, config: compiled}, nil
}

func (n *FilterNode) ID() string {
	return n.id
}

func (n *FilterNode) Type() string {
	return models.NodeTypeFilter
}

func (n *FilterNode) Execute(_ context.Context, _ *models.ExecutionContext, inputs map[string]models.NodeResult) (models.NodeResult, error) {
	items := collectItems(inputs)

	passed := make([]any, 0, len(items))
	failures := make(map[string]string)

	for i, item := range items {
		r := n.config.Apply(item)
		if r.Passed {
			passed = append(passed, item)

			continue
		}

		// keyed with trace.Identity so removal reasons join the trace diff
		failures[trace.Identity(item, i)] = r.Reason
	}

	return models.NodeResult{
		NodeID: n.id,
		Data: map[string]any{
			"items":           passed,
			"input_count":     len(items),
			"output_count":    len(passed),
			"filter_failures": failures,
		},
		Status:    models.NodeStatusSucceeded,
		Timestamp: time.Now().UTC(),
	}, nil
}

// collectItems merges the item collections of all upstream results, in
// deterministic upstream-id order.
func collectItems(inputs map[string]models.NodeResult) []any {
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
