// Package papertrade implements a trade executor that records orders without
// touching a real exchange. It is the default executor for development and
// dry runs.
package papertrade

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/oddsflow/oddsflow/pkg/protocol"
)

type Executor struct {
	logger *slog.Logger

	mu     sync.Mutex
	orders []protocol.TradeOrder
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{
		logger: logger.With("module", "papertrade_executor"),
	}
}

func (e *Executor) Submit(ctx context.Context, order protocol.TradeOrder) (string, error) {
	e.mu.Lock()
	e.orders = append(e.orders, order)
	e.mu.Unlock()

	tradeID := "paper-" + uuid.New().String()

	e.logger.InfoContext(ctx, "paper trade submitted",
		"trade_id", tradeID,
		"market_id", order.MarketID,
		"side", order.Side,
		"notional_usd", order.Notional,
		"max_slippage", order.MaxSlippage,
	)

	return tradeID, nil
}

// Orders returns a copy of all submitted orders, in submission order.
func (e *Executor) Orders() []protocol.TradeOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]protocol.TradeOrder(nil), e.orders...)
}
