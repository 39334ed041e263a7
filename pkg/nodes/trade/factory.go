package trade

import (
	"context"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// TradeNodeFactory creates TradeNode instances bound to the trade executor
// and the decision store.
type TradeNodeFactory struct {
	executor  protocol.TradeExecutor
	decisions persistence.DecisionRepository
}

func NewTradeNodeFactory(executor protocol.TradeExecutor, decisions persistence.DecisionRepository) protocol.NodeFactory {
	return &TradeNodeFactory{executor: executor, decisions: decisions}
}

func (f *TradeNodeFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return NewTradeNode(id, f.executor, f.decisions)
}

func (f *TradeNodeFactory) ID() string {
	return models.NodeTypeTrade
}

func (f *TradeNodeFactory) Name() string {
	return "Trade Execution"
}

func (f *TradeNodeFactory) Description() string {
	return "Submits the upstream decision's order to the trade execution collaborator once it is approved."
}

func (f *TradeNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
