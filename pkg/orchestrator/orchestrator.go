// Package orchestrator runs the position-sizing decision flow: read-once data
// snapshots, an advisory AI call behind a bounded timeout, the deterministic
// Kelly pipeline, and the approval state machine around the resulting
// decision record.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oddsflow/oddsflow/pkg/eventbus"
	"github.com/oddsflow/oddsflow/pkg/events"
	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/protocol"
	"github.com/oddsflow/oddsflow/pkg/sizing"
)

// Config carries the orchestrator's collaborators. Data and Decisions are
// required; AI, Trades, Notifier, and Bus are optional and degrade gracefully
// when absent.
type Config struct {
	Logger    *slog.Logger
	Data      protocol.DataProvider
	Decisions persistence.DecisionRepository
	AI        protocol.DecisionService
	Trades    protocol.TradeExecutor
	Notifier  protocol.Notifier
	Bus       eventbus.EventPublisher
}

type Orchestrator struct {
	logger    *slog.Logger
	data      protocol.DataProvider
	decisions persistence.DecisionRepository
	ai        protocol.DecisionService
	trades    protocol.TradeExecutor
	notifier  protocol.Notifier
	bus       eventbus.EventPublisher
	validate  *validator.Validate
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		logger:    cfg.Logger.With("module", "orchestrator"),
		data:      cfg.Data,
		decisions: cfg.Decisions,
		ai:        cfg.AI,
		trades:    cfg.Trades,
		notifier:  cfg.Notifier,
		bus:       cfg.Bus,
		validate:  validator.New(),
	}
}

// SizeParams identifies the run and node a decision belongs to.
type SizeParams struct {
	ExecutionID string
	NodeID      string
	WorkflowID  string
	Mode        models.OrchestratorMode
	Request     models.SizingRequest
	Rules       models.SizingRules
}

// Size runs one sizing decision end to end. In autonomous mode the decision
// is approved and executed inline; in approval-required mode an actionable
// decision is persisted as pending and the caller suspends its branch. HOLD
// decisions finalize inline in both modes since there is nothing to approve.
func (o *Orchestrator) Size(ctx context.Context, p SizeParams) (*models.Decision, error) {
	if p.Request.MarketID == "" {
		decision := o.newDecision(p, models.MarketSnapshot{}, models.PortfolioSnapshot{}, sizing.Outcome{
			Action:             models.ActionHold,
			ConstraintsApplied: []string{},
			RiskFlags:          []string{models.RiskFlagMissingInput},
		})
		decision.Reasoning = "input validation failed: market_id is required"

		return decision, o.finalizeHold(ctx, decision)
	}

	// Read-once snapshots. Either failing is fatal for the branch: sizing
	// without a portfolio view would not be auditable.
	market, err := o.data.Market(ctx, p.Request.MarketID)
	if err != nil {
		return nil, &protocol.ExternalServiceError{Service: "data_provider", Err: err}
	}

	portfolio, err := o.data.Portfolio(ctx)
	if err != nil {
		return nil, &protocol.ExternalServiceError{Service: "data_provider", Err: err}
	}

	// Node-built requests leave the bankroll fields to the snapshot; external
	// callers may assert their own.
	if p.Request.TotalEquityUSD == 0 {
		p.Request.TotalEquityUSD = portfolio.TotalEquity
		p.Request.FreeCashUSD = portfolio.FreeCash
	}

	if p.Request.CurrentPosition.Shares == 0 {
		if pos, ok := portfolio.PositionFor(p.Request.MarketID); ok {
			p.Request.CurrentPosition = pos
		}
	}

	err = o.validate.Struct(p.Request)
	if err != nil {
		o.logger.WarnContext(ctx, "sizing request failed validation",
			"execution_id", p.ExecutionID, "node_id", p.NodeID, "error", err)

		decision := o.newDecision(p, market, portfolio, sizing.Outcome{
			Action:             models.ActionHold,
			ConstraintsApplied: []string{},
			RiskFlags:          []string{models.RiskFlagMissingInput},
		})
		decision.Reasoning = fmt.Sprintf("input validation failed: %v", err)

		return decision, o.finalizeHold(ctx, decision)
	}

	in := sizing.Input{
		Request:   p.Request,
		Rules:     p.Rules,
		Market:    market,
		Portfolio: portfolio,
	}

	var (
		aiResp     protocol.DecisionResponse
		aiOK       bool
		aiFallback bool
	)

	if o.ai != nil {
		aiResp, err = o.ai.Decide(ctx, protocol.DecisionRequest{
			Market:    market,
			Portfolio: portfolio,
			Rules:     p.Rules,
			Signal:    p.Request,
		})
		if err != nil {
			o.logger.WarnContext(ctx, "AI decision service unavailable, using rule-based sizing",
				"execution_id", p.ExecutionID, "error", err)

			aiFallback = true
		} else {
			aiOK = true
			in.AdvisoryFraction = aiResp.RecommendedSize
		}
	}

	outcome := sizing.Compute(in)

	if aiFallback {
		outcome.RiskFlags = append(outcome.RiskFlags, models.RiskFlagAIFallback)
	}

	decision := o.newDecision(p, market, portfolio, outcome)

	if aiOK {
		decision.RiskScore = aiResp.RiskScore
		decision.Confidence = aiResp.Confidence
		decision.Reasoning = aiResp.Reasoning
	}

	o.logger.InfoContext(ctx, "sizing decision computed",
		"execution_id", p.ExecutionID,
		"decision_id", decision.ID,
		"market_id", decision.MarketID,
		"action", decision.Action,
		"fraction", decision.RecommendedFraction,
		"constraints", decision.ConstraintsApplied)

	if decision.Action == models.ActionHold {
		return decision, o.finalizeHold(ctx, decision)
	}

	if p.Mode == models.ModeApprovalRequired {
		return decision, o.parkPending(ctx, decision)
	}

	return decision, o.executeInline(ctx, decision)
}

func (o *Orchestrator) newDecision(p SizeParams, market models.MarketSnapshot, portfolio models.PortfolioSnapshot, outcome sizing.Outcome) *models.Decision {
	now := time.Now().UTC()

	return &models.Decision{
		ID:                  uuid.New().String(),
		ExecutionID:         p.ExecutionID,
		NodeID:              p.NodeID,
		WorkflowID:          p.WorkflowID,
		Mode:                p.Mode,
		MarketID:            p.Request.MarketID,
		Side:                p.Request.Side,
		Market:              market,
		Portfolio:           portfolio,
		Status:              models.DecisionStatusPending,
		Action:              outcome.Action,
		RecommendedFraction: outcome.RecommendedFraction,
		RecommendedNotional: outcome.RecommendedNotional,
		TargetShares:        outcome.TargetShares,
		DeltaShares:         outcome.DeltaShares,
		MaxSlippage:         p.Rules.MaxSlippage,
		ConstraintsApplied:  outcome.ConstraintsApplied,
		RiskFlags:           outcome.RiskFlags,
		Computation:         outcome.Computation,
		Version:             0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// finalizeHold records a HOLD decision as terminal. Nothing is submitted and
// no approval is requested.
func (o *Orchestrator) finalizeHold(ctx context.Context, decision *models.Decision) error {
	decision.Status = models.DecisionStatusExecuted

	err := o.decisions.SaveDecision(ctx, decision)
	if err != nil {
		return fmt.Errorf("failed to persist hold decision %s: %w", decision.ID, err)
	}

	return nil
}

// parkPending persists the decision as pending, notifies, and publishes the
// pending event. The caller suspends the branch afterwards.
func (o *Orchestrator) parkPending(ctx context.Context, decision *models.Decision) error {
	err := o.decisions.SaveDecision(ctx, decision)
	if err != nil {
		return fmt.Errorf("failed to persist pending decision %s: %w", decision.ID, err)
	}

	if o.notifier != nil {
		o.notifier.DecisionPending(ctx, decision)
	}

	if o.bus != nil {
		event := events.DecisionPending{
			BaseEvent:   events.NewBaseEvent(events.DecisionPendingEvent, decision.WorkflowID),
			ExecutionID: decision.ExecutionID,
			DecisionID:  decision.ID,
			MarketID:    decision.MarketID,
			Action:      decision.Action,
			NotionalUSD: decision.RecommendedNotional,
		}

		err := o.bus.Publish(ctx, decision.WorkflowID, event)
		if err != nil {
			o.logger.WarnContext(ctx, "failed to publish decision pending event",
				"decision_id", decision.ID, "error", err)
		}
	}

	return nil
}

// executeInline walks the autonomous path pending → approved → executed,
// submitting the order between the two transitions. Each transition is a
// separate compare-and-swap so the audit trail shows the same state machine
// the approval flow uses.
func (o *Orchestrator) executeInline(ctx context.Context, decision *models.Decision) error {
	err := o.decisions.SaveDecision(ctx, decision)
	if err != nil {
		return fmt.Errorf("failed to persist decision %s: %w", decision.ID, err)
	}

	decision.Status = models.DecisionStatusApproved
	decision.ActualNotional = decision.RecommendedNotional

	err = o.decisions.UpdateDecision(ctx, decision, 0)
	if err != nil {
		return fmt.Errorf("failed to approve decision %s: %w", decision.ID, err)
	}

	if o.trades == nil {
		return fmt.Errorf("decision %s is actionable but no trade executor is configured", decision.ID)
	}

	tradeID, err := o.trades.Submit(ctx, protocol.TradeOrder{
		MarketID:    decision.MarketID,
		Side:        decision.Side,
		Notional:    decision.ActualNotional,
		MaxSlippage: decision.MaxSlippage,
	})
	if err != nil {
		return &protocol.ExternalServiceError{Service: "trade_executor", Err: err}
	}

	decision.Status = models.DecisionStatusExecuted
	decision.TradeID = tradeID

	err = o.decisions.UpdateDecision(ctx, decision, 1)
	if err != nil {
		return fmt.Errorf("failed to mark decision %s executed: %w", decision.ID, err)
	}

	if o.bus != nil {
		event := events.DecisionExecuted{
			BaseEvent:   events.NewBaseEvent(events.DecisionExecutedEvent, decision.WorkflowID),
			ExecutionID: decision.ExecutionID,
			DecisionID:  decision.ID,
			TradeID:     tradeID,
		}

		err := o.bus.Publish(ctx, decision.WorkflowID, event)
		if err != nil {
			o.logger.WarnContext(ctx, "failed to publish decision executed event",
				"decision_id", decision.ID, "error", err)
		}
	}

	return nil
}
