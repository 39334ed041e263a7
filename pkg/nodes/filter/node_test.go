package filter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsflow/oddsflow/pkg/models"
	filternode "github.com/oddsflow/oddsflow/pkg/nodes/filter"
	"github.com/oddsflow/oddsflow/pkg/trace"
)

func oddsFilterConfig() map[string]any {
	return map[string]any{
		"conditions": []any{
			map[string]any{
				"field":    "odds",
				"type":     "number",
				"operator": "between",
				"value":    []any{0.2, 0.8},
			},
		},
	}
}

func upstream(id string, items ...any) map[string]models.NodeResult {
	return map[string]models.NodeResult{
		id: {
			NodeID:    id,
			Data:      map[string]any{"items": items},
			Status:    models.NodeStatusSucceeded,
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestExecuteSplitsPassedAndFailed(t *testing.T) {
	t.Parallel()

	node, err := filternode.NewFilterNode("filter-1", oddsFilterConfig())
	require.NoError(t, err)

	inputs := upstream("market-1",
		map[string]any{"id": "m1", "odds": 0.5},
		map[string]any{"id": "m2", "odds": 0.95},
		map[string]any{"id": "m3", "odds": 0.3},
	)

	result, err := node.Execute(context.Background(), nil, inputs)
	require.NoError(t, err)

	items := result.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3, result.Data["input_count"])
	assert.Equal(t, 2, result.Data["output_count"])

	failures, ok := result.Data["filter_failures"].(map[string]string)
	require.True(t, ok)
	require.Contains(t, failures, "m2")
	assert.NotEmpty(t, failures["m2"])
}

func TestExecuteKeepsInputOrder(t *testing.T) {
	t.Parallel()

	node, err := filternode.NewFilterNode("filter-1", oddsFilterConfig())
	require.NoError(t, err)

	inputs := upstream("market-1",
		map[string]any{"id": "m3", "odds": 0.3},
		map[string]any{"id": "m1", "odds": 0.4},
		map[string]any{"id": "m2", "odds": 0.5},
	)

	result, err := node.Execute(context.Background(), nil, inputs)
	require.NoError(t, err)

	items := result.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "m3", items[0].(map[string]any)["id"])
	assert.Equal(t, "m1", items[1].(map[string]any)["id"])
	assert.Equal(t, "m2", items[2].(map[string]any)["id"])
}

func TestExecuteFailureKeyMatchesTraceIdentity(t *testing.T) {
	t.Parallel()

	node, err := filternode.NewFilterNode("filter-1", oddsFilterConfig())
	require.NoError(t, err)

	// first item has no id and fails the condition
	idless := map[string]any{"odds": 0.95}
	inputs := upstream("market-1",
		idless,
		map[string]any{"id": "m2", "odds": 0.5},
	)

	result, err := node.Execute(context.Background(), nil, inputs)
	require.NoError(t, err)

	failures, ok := result.Data["filter_failures"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, failures, trace.Identity(idless, 0))
}

func TestExecuteMergesUpstreamsInSortedOrder(t *testing.T) {
	t.Parallel()

	node, err := filternode.NewFilterNode("filter-1", oddsFilterConfig())
	require.NoError(t, err)

	inputs := map[string]models.NodeResult{
		"b-upstream": {Data: map[string]any{"items": []any{map[string]any{"id": "m2", "odds": 0.5}}}},
		"a-upstream": {Data: map[string]any{"items": []any{map[string]any{"id": "m1", "odds": 0.4}}}},
	}

	result, err := node.Execute(context.Background(), nil, inputs)
	require.NoError(t, err)

	items := result.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "m1", items[0].(map[string]any)["id"])
	assert.Equal(t, "m2", items[1].(map[string]any)["id"])
}

func TestNewFilterNodeRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := filternode.NewFilterNode("filter-1", map[string]any{"conditions": []any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter-1")
}
