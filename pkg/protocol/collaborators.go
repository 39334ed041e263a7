package protocol

import (
	"context"
	"fmt"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// DataProvider is the external market/portfolio data collaborator. Reads are
// synchronous snapshots; a failure surfaces as a NodeExecutionError and is
// fatal for the affected branch, since sizing cannot proceed without a
// portfolio view.
type DataProvider interface {
	Market(ctx context.Context, marketID string) (models.MarketSnapshot, error)
	Markets(ctx context.Context, category string) ([]models.MarketSnapshot, error)
	Portfolio(ctx context.Context) (models.PortfolioSnapshot, error)
}

// DecisionRequest is the payload handed to the AI decision service.
type DecisionRequest struct {
	Market    models.MarketSnapshot    `json:"market"`
	Portfolio models.PortfolioSnapshot `json:"portfolio"`
	Rules     models.SizingRules       `json:"rules"`
	Signal    models.SizingRequest     `json:"signal"`
}

// DecisionResponse is the AI service's advisory output. It refines the
// rule-based recommendation but never bypasses the constraint pipeline.
type DecisionResponse struct {
	Decision        models.DecisionAction `json:"decision"`
	RecommendedSize float64               `json:"recommended_size"`
	RiskScore       float64               `json:"risk_score"`
	Reasoning       string                `json:"reasoning"`
	Confidence      float64               `json:"confidence"`
}

// DecisionService is the AI collaborator behind a bounded timeout. A timeout
// or error degrades the orchestrator to rule-based sizing; it is never a
// fatal run error.
type DecisionService interface {
	Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error)
}

// TradeOrder is the order handed to the trade execution collaborator.
type TradeOrder struct {
	MarketID    string              `json:"market_id"`
	Side        models.PositionSide `json:"side"`
	Notional    float64             `json:"notional"`
	MaxSlippage float64             `json:"max_slippage"`
}

// TradeExecutor is invoked only when a decision reaches approved.
type TradeExecutor interface {
	Submit(ctx context.Context, order TradeOrder) (tradeID string, err error)
}

// Notifier is the fire-and-forget notification collaborator, invoked when a
// decision enters pending. Errors are logged, never propagated.
type Notifier interface {
	DecisionPending(ctx context.Context, decision *models.Decision)
}

// ExternalServiceError wraps a collaborator failure with enough context to
// diagnose it without re-running the workflow.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
