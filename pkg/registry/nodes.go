package registry

import (
	"log/slog"

	"github.com/oddsflow/oddsflow/pkg/nodes/filter"
	"github.com/oddsflow/oddsflow/pkg/nodes/log"
	"github.com/oddsflow/oddsflow/pkg/nodes/marketdata"
	"github.com/oddsflow/oddsflow/pkg/nodes/sizing"
	"github.com/oddsflow/oddsflow/pkg/nodes/trade"
	"github.com/oddsflow/oddsflow/pkg/orchestrator"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

// Collaborators carries the external dependencies the built-in nodes bind to.
type Collaborators struct {
	Logger       *slog.Logger
	Data         protocol.DataProvider
	Orchestrator *orchestrator.Orchestrator
	Trades       protocol.TradeExecutor
	Decisions    persistence.DecisionRepository
}

// RegisterDefaultNodes registers all built-in node factories.
func (r *Registry) RegisterDefaultNodes(c Collaborators) {
	r.RegisterNode(marketdata.NewMarketDataNodeFactory(c.Data))
	r.RegisterNode(filter.NewFilterNodeFactory())
	r.RegisterNode(sizing.NewSizingNodeFactory(c.Orchestrator))
	r.RegisterNode(trade.NewTradeNodeFactory(c.Trades, c.Decisions))
	r.RegisterNode(log.NewLogNodeFactory(c.Logger))
}
