// Package lognotifier implements the pending-decision notifier on top of the
// structured logger. Deployments with a real channel replace it behind the
// protocol.Notifier interface.
package lognotifier

import (
	"context"
	"log/slog"

	"github.com/oddsflow/oddsflow/pkg/models"
)

type Notifier struct {
	logger *slog.Logger
}

func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger.With("module", "notifier")}
}

func (n *Notifier) DecisionPending(ctx context.Context, decision *models.Decision) {
	n.logger.InfoContext(ctx, "decision awaiting approval",
		"decision_id", decision.ID,
		"execution_id", decision.ExecutionID,
		"market_id", decision.MarketID,
		"action", decision.Action,
		"notional_usd", decision.RecommendedNotional,
	)
}
