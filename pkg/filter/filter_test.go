package filter_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsflow/oddsflow/pkg/filter"
)

func mustConfig(t *testing.T, raw map[string]any) *filter.Config {
	t.Helper()

	cfg, err := filter.ParseConfig(raw)
	require.NoError(t, err)

	return cfg
}

func condition(field, fieldType, operator string, value any) map[string]any {
	return map[string]any{
		"field":    field,
		"type":     fieldType,
		"operator": operator,
		"value":    value,
	}
}

func TestNumberOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		operator string
		value    any
		item     float64
		want     bool
	}{
		{"eq", 0.5, 0.5, true},
		{"eq", 0.5, 0.6, false},
		{"ne", 0.5, 0.6, true},
		{"gt", 0.5, 0.6, true},
		{"gt", 0.5, 0.5, false},
		{"gte", 0.5, 0.5, true},
		{"lt", 0.5, 0.4, true},
		{"lte", 0.5, 0.5, true},
		{"between", []any{0.3, 0.7}, 0.3, true},
		{"between", []any{0.3, 0.7}, 0.7, true},
		{"between", []any{0.3, 0.7}, 0.71, false},
		{"between", []any{0.3, 0.7}, 0.29, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s_%v_%v", tc.operator, tc.value, tc.item), func(t *testing.T) {
			t.Parallel()

			cfg := mustConfig(t, map[string]any{
				"conditions": []any{condition("odds", "number", tc.operator, tc.value)},
			})

			result := cfg.Apply(map[string]any{"odds": tc.item})
			assert.Equal(t, tc.want, result.Passed, result.Reason)
		})
	}
}

func TestStringOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		operator string
		value    any
		item     string
		want     bool
	}{
		{"eq", "politics", "politics", true},
		{"eq", "politics", "Politics", true}, // case-insensitive by default
		{"ne", "politics", "sports", true},
		{"contains", "elect", "US election 2026", true},
		{"not_contains", "crypto", "US election 2026", true},
		{"starts_with", "us", "US election 2026", true},
		{"ends_with", "2026", "US election 2026", true},
		{"in", []any{"politics", "sports"}, "sports", true},
		{"in", []any{"politics", "sports"}, "crypto", false},
		{"not_in", []any{"politics", "sports"}, "crypto", true},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s_%v", tc.operator, tc.item), func(t *testing.T) {
			t.Parallel()

			cfg := mustConfig(t, map[string]any{
				"conditions": []any{condition("question", "string", tc.operator, tc.value)},
			})

			result := cfg.Apply(map[string]any{"question": tc.item})
			assert.Equal(t, tc.want, result.Passed, result.Reason)
		})
	}
}

func TestStringCaseSensitive(t *testing.T) {
	t.Parallel()

	cond := condition("category", "string", "eq", "Politics")
	cond["case_sensitive"] = true

	cfg := mustConfig(t, map[string]any{"conditions": []any{cond}})

	assert.False(t, cfg.Apply(map[string]any{"category": "politics"}).Passed)
	assert.True(t, cfg.Apply(map[string]any{"category": "Politics"}).Passed)
}

func TestTagOperators(t *testing.T) {
	t.Parallel()

	item := map[string]any{"tags": []any{"election", "us", "2026"}}

	tests := []struct {
		operator string
		value    any
		want     bool
	}{
		{"contains", "us", true},
		{"contains", "eu", false},
		{"has_any", []any{"eu", "us"}, true},
		{"has_any", []any{"eu", "uk"}, false},
		{"has_all", []any{"us", "election"}, true},
		{"has_all", []any{"us", "eu"}, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s_%v", tc.operator, tc.value), func(t *testing.T) {
			t.Parallel()

			cfg := mustConfig(t, map[string]any{
				"conditions": []any{condition("tags", "tag", tc.operator, tc.value)},
			})

			result := cfg.Apply(item)
			assert.Equal(t, tc.want, result.Passed, result.Reason)
		})
	}
}

func TestTagIsEmpty(t *testing.T) {
	t.Parallel()

	cond := condition("tags", "tag", "is_empty", nil)
	cfg := mustConfig(t, map[string]any{"conditions": []any{cond}})

	assert.True(t, cfg.Apply(map[string]any{"tags": []any{}}).Passed)
	assert.False(t, cfg.Apply(map[string]any{"tags": []any{"x"}}).Passed)

	// an absent tag array is undefined, not empty
	result := cfg.Apply(map[string]any{})
	assert.False(t, result.Passed)
	assert.Equal(t, "field tags not present", result.Reason)
}

func TestBooleanOperator(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, map[string]any{
		"conditions": []any{condition("active", "boolean", "eq", true)},
	})

	assert.True(t, cfg.Apply(map[string]any{"active": true}).Passed)
	assert.False(t, cfg.Apply(map[string]any{"active": false}).Passed)
}

func TestDateOperators(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, map[string]any{
		"conditions": []any{condition("end_date", "date", "gt", "2026-01-01T00:00:00Z")},
	})

	assert.True(t, cfg.Apply(map[string]any{"end_date": "2026-06-01T00:00:00Z"}).Passed)
	assert.False(t, cfg.Apply(map[string]any{"end_date": "2025-06-01T00:00:00Z"}).Passed)
}

func TestDotPathResolution(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, map[string]any{
		"conditions": []any{condition("market.stats.volume", "number", "gte", 1000)},
	})

	item := map[string]any{
		"market": map[string]any{
			"stats": map[string]any{"volume": 5000.0},
		},
	}

	assert.True(t, cfg.Apply(item).Passed)
}

func TestMissingFieldFailsWithReason(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, map[string]any{
		"conditions": []any{condition("market.stats.volume", "number", "gte", 1000)},
	})

	result := cfg.Apply(map[string]any{"market": map[string]any{}})
	assert.False(t, result.Passed)
	assert.Equal(t, "field market.stats.volume not present", result.Reason)

	// intermediate step that is not an object
	result = cfg.Apply(map[string]any{"market": "oops"})
	assert.False(t, result.Passed)
	assert.Equal(t, "field market.stats.volume not present", result.Reason)
}

func TestMissingFieldFailsForEveryOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field     string
		fieldType string
		operator  string
		value     any
	}{
		{"odds", "number", "between", []any{0.2, 0.8}},
		{"category", "category", "eq", "politics"},
		{"question", "string", "contains", "election"},
		{"tags", "tag", "is_empty", nil},
		{"tags", "tag", "has_any", []any{"us"}},
		{"active", "boolean", "eq", true},
	}

	for _, tc := range tests {
		t.Run(tc.field+"_"+tc.operator, func(t *testing.T) {
			t.Parallel()

			cfg := mustConfig(t, map[string]any{
				"conditions": []any{condition(tc.field, tc.fieldType, tc.operator, tc.value)},
			})

			result := cfg.Apply(map[string]any{"id": "m1"})
			assert.False(t, result.Passed)
			assert.Equal(t, "field "+tc.field+" not present", result.Reason)
		})
	}
}

func TestAndOrLogic(t *testing.T) {
	t.Parallel()

	conditions := []any{
		condition("odds", "number", "gt", 0.5),
		condition("category", "category", "eq", "politics"),
	}

	andCfg := mustConfig(t, map[string]any{"conditions": conditions, "logic": "AND"})
	orCfg := mustConfig(t, map[string]any{"conditions": conditions, "logic": "OR"})

	both := map[string]any{"odds": 0.6, "category": "politics"}
	one := map[string]any{"odds": 0.4, "category": "politics"}
	neither := map[string]any{"odds": 0.4, "category": "sports"}

	assert.True(t, andCfg.Apply(both).Passed)
	assert.False(t, andCfg.Apply(one).Passed)
	assert.True(t, orCfg.Apply(one).Passed)
	assert.False(t, orCfg.Apply(neither).Passed)
}

func TestFirstFailingConditionReason(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, map[string]any{
		"conditions": []any{
			condition("odds", "number", "gt", 0.5),
			condition("volume", "number", "gt", 1000),
		},
		"logic": "AND",
	})

	// both fail, the reason must come from the first declared condition
	result := cfg.Apply(map[string]any{"odds": 0.1, "volume": 10.0})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "field odds")
}

func TestConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{
			"no conditions",
			map[string]any{"conditions": []any{}},
		},
		{
			"too many conditions",
			map[string]any{"conditions": repeatCondition(11)},
		},
		{
			"invalid logic",
			map[string]any{
				"conditions": []any{condition("a", "number", "eq", 1)},
				"logic":      "XOR",
			},
		},
		{
			"operator type mismatch",
			map[string]any{"conditions": []any{condition("a", "number", "contains", "x")}},
		},
		{
			"unknown type",
			map[string]any{"conditions": []any{condition("a", "uuid", "eq", "x")}},
		},
		{
			"between inverted bounds",
			map[string]any{"conditions": []any{condition("a", "number", "between", []any{0.7, 0.3})}},
		},
		{
			"between not a pair",
			map[string]any{"conditions": []any{condition("a", "number", "between", []any{0.7})}},
		},
		{
			"missing field path",
			map[string]any{"conditions": []any{condition("", "number", "eq", 1)}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := filter.ParseConfig(tc.raw)
			require.Error(t, err)

			var configErr *filter.ConfigError

			assert.ErrorAs(t, err, &configErr)
		})
	}
}

func repeatCondition(n int) []any {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, condition(fmt.Sprintf("f%d", i), "number", "eq", 1))
	}

	return out
}

// 500 deterministic items through a two-condition filter; same inputs, same
// outputs, every removal explained.
func TestLargeBatchDeterminism(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, map[string]any{
		"conditions": []any{
			condition("odds", "number", "between", []any{0.2, 0.8}),
			condition("category", "category", "eq", "politics"),
		},
		"logic": "AND",
	})

	items := make([]map[string]any, 0, 500)

	for i := 0; i < 500; i++ {
		category := "politics"
		if i%3 == 0 {
			category = "sports"
		}

		items = append(items, map[string]any{
			"id":       fmt.Sprintf("mkt-%03d", i),
			"odds":     float64(i%100) / 100.0,
			"category": category,
		})
	}

	run := func() (passed []string, reasons map[string]string) {
		reasons = make(map[string]string)

		for _, item := range items {
			result := cfg.Apply(item)
			if result.Passed {
				passed = append(passed, item["id"].(string))
			} else {
				reasons[item["id"].(string)] = result.Reason
			}
		}

		return passed, reasons
	}

	firstPassed, firstReasons := run()
	secondPassed, secondReasons := run()

	assert.Equal(t, firstPassed, secondPassed)
	assert.Equal(t, firstReasons, secondReasons)
	assert.Len(t, firstPassed, 500-len(firstReasons))

	for id, reason := range firstReasons {
		assert.NotEmpty(t, reason, "item %s removed without a reason", id)
	}
}
