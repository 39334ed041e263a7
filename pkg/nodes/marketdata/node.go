// Package marketdata provides the node that pulls market snapshots from the
// external data provider into the run.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// MarketDataNode fetches one market or a category of markets and publishes
// them as the run's item collection.
type MarketDataNode struct {
	id       string
	marketID string
	category string
	limit    int
	provider protocol.DataProvider
}

// NewMarketDataNode creates a market data node. One of market_id or category
// must be configured.
func NewMarketDataNode(id string, config map[string]any, provider protocol.DataProvider) (*MarketDataNode, error) {
	marketID, _ := config["market_id"].(string)
	category, _ := config["category"].(string)

	if marketID == "" && category == "" {
		return nil, fmt.Errorf("node %s: one of 'market_id' or 'category' is required", id)
	}

	limit := 0
	if v, ok := config["limit"].(float64); ok {
		limit = int(v)
	}

	return &MarketDataNode{
		id:       id,
		marketID: marketID,
		category: category,
		limit:    limit,
		provider: provider,
	}, nil
}

func (n *MarketDataNode) ID() string {
	return n.id
}

func (n *MarketDataNode) Type() string {
	return models.NodeTypeMarketData
}

// Execute fetches the configured markets. A provider failure is fatal for the
// branch.
func (n *MarketDataNode) Execute(ctx context.Context, _ *models.ExecutionContext, _ map[string]models.NodeResult) (models.NodeResult, error) {
	var snapshots []models.MarketSnapshot

	if n.marketID != "" {
		market, err := n.provider.Market(ctx, n.marketID)
		if err != nil {
			return models.NodeResult{}, &protocol.ExternalServiceError{Service: "data_provider", Err: err}
		}

		snapshots = []models.MarketSnapshot{market}
	} else {
		markets, err := n.provider.Markets(ctx, n.category)
		if err != nil {
			return models.NodeResult{}, &protocol.ExternalServiceError{Service: "data_provider", Err: err}
		}

		snapshots = markets
	}

	if n.limit > 0 && len(snapshots) > n.limit {
		snapshots = snapshots[:n.limit]
	}

	items, err := toItems(snapshots)
	if err != nil {
		return models.NodeResult{}, fmt.Errorf("node %s: %w", n.id, err)
	}

	return models.NodeResult{
		NodeID: n.id,
		Data: map[string]any{
			"items": items,
			"count": len(items),
		},
		Status:    models.NodeStatusSucceeded,
		Timestamp: time.Now().UTC(),
	}, nil
}

// toItems renders snapshots as generic JSON objects so downstream filter
// conditions can resolve dot-paths over them.
func toItems(snapshots []models.MarketSnapshot) ([]any, error) {
	raw, err := json.Marshal(snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal market snapshots: %w", err)
	}

	var items []any

	err = json.Unmarshal(raw, &items)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal market snapshots: %w", err)
	}

	return items, nil
}
