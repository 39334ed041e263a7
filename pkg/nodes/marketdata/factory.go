package marketdata

import (
	"context"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// MarketDataNodeFactory creates MarketDataNode instances bound to a data
// provider.
type MarketDataNodeFactory struct {
	provider protocol.DataProvider
}

func NewMarketDataNodeFactory(provider protocol.DataProvider) protocol.NodeFactory {
	return &MarketDataNodeFactory{provider: provider}
}

func (f *MarketDataNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewMarketDataNode(id, config, f.provider)
}

func (f *MarketDataNodeFactory) ID() string {
	return models.NodeTypeMarketData
}

func (f *MarketDataNodeFactory) Name() string {
	return "Market Data"
}

func (f *MarketDataNodeFactory) Description() string {
	return "Fetches market snapshots from the data provider, by market id or by category."
}

func (f *MarketDataNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"market_id": map[string]any{
				"type":        "string",
				"description": "Single market to fetch.",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Fetch all markets in this category.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Maximum number of markets to emit.",
			},
		},
		"anyOf": []map[string]any{
			{"required": []string{"market_id"}},
			{"required": []string{"category"}},
		},
	}
}
