package filter

import (
	"context"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// FilterNodeFactory creates FilterNode instances.
type FilterNodeFactory struct{}

func NewFilterNodeFactory() protocol.NodeFactory {
	return &FilterNodeFactory{}
}

func (f *FilterNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewFilterNode(id, config)
}

func (f *FilterNodeFactory) ID() string {
	return models.NodeTypeFilter
}

func (f *FilterNodeFactory) Name() string {
	return "Filter"
}

func (f *FilterNodeFactory) Description() string {
	return "Filters upstream items against 1-10 typed conditions combined with AND or OR."
}

func (f *FilterNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"logic": map[string]any{
				"type": "string",
				"enum": []string{"AND", "OR"},
			},
			"conditions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 10,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":             map[string]any{"type": "string"},
						"field":          map[string]any{"type": "string", "description": "Dot-path into the item, e.g. \"odds\" or \"meta.source\"."},
						"type":           map[string]any{"type": "string", "enum": []string{"number", "string", "boolean", "date", "category", "tag"}},
						"operator":       map[string]any{"type": "string"},
						"value":          map[string]any{},
						"case_sensitive": map[string]any{"type": "boolean"},
					},
					"required": []string{"field", "type", "operator"},
				},
			},
		},
		"required": []string{"conditions"},
	}
}
