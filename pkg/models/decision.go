package models

import "time"

// DecisionStatus is the approval state machine for a sizing decision.
// Transitions are monotonic: pending → {approved, rejected} → executed, and
// executed/rejected are terminal.
type DecisionStatus string

const (
	DecisionStatusPending  DecisionStatus = "pending"
	DecisionStatusApproved DecisionStatus = "approved"
	DecisionStatusRejected DecisionStatus = "rejected"
	DecisionStatusExecuted DecisionStatus = "executed"
)

// CanTransitionTo reports whether the status machine allows moving from the
// current status to the target.
func (s DecisionStatus) CanTransitionTo(target DecisionStatus) bool {
	switch s {
	case DecisionStatusPending:
		return target == DecisionStatusApproved || target == DecisionStatusRejected
	case DecisionStatusApproved:
		return target == DecisionStatusExecuted
	default:
		return false
	}
}

// DecisionAction is the verb the sizing pipeline recommends.
type DecisionAction string

const (
	ActionHold   DecisionAction = "HOLD"
	ActionBuy    DecisionAction = "BUY"
	ActionReduce DecisionAction = "REDUCE"
	ActionClose  DecisionAction = "CLOSE"
	ActionFlip   DecisionAction = "FLIP"
)

// OrchestratorMode controls whether a decision needs human approval.
type OrchestratorMode string

const (
	ModeAutonomous       OrchestratorMode = "autonomous"
	ModeApprovalRequired OrchestratorMode = "approval-required"
)

// Decision is the complete audit record of one sizing decision. It is created
// by the orchestrator node, mutated only through approve/reject (guarded by
// the optimistic Version counter), and terminal once executed or rejected.
type Decision struct {
	ID          string           `json:"id"`
	ExecutionID string           `json:"execution_id"`
	NodeID      string           `json:"node_id"`
	WorkflowID  string           `json:"workflow_id"`
	Mode        OrchestratorMode `json:"mode"`

	MarketID  string            `json:"market_id"`
	Side      PositionSide      `json:"side"`
	Market    MarketSnapshot    `json:"market"`
	Portfolio PortfolioSnapshot `json:"portfolio"`

	Status DecisionStatus `json:"status"`
	Action DecisionAction `json:"action"`

	RecommendedFraction float64 `json:"recommended_fraction_of_bankroll"`
	RecommendedNotional float64 `json:"recommended_notional_usd"`
	TargetShares        float64 `json:"target_shares"`
	DeltaShares         float64 `json:"delta_shares"`
	ActualNotional      float64 `json:"actual_notional_usd,omitempty"` // set on approval, may carry an override

	MaxSlippage float64 `json:"max_slippage,omitempty"`

	RiskScore  float64 `json:"risk_score"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`

	ConstraintsApplied []string          `json:"constraints_applied"`
	RiskFlags          []string          `json:"risk_flags"`
	Computation        SizingComputation `json:"computation"`

	RejectReason string `json:"reject_reason,omitempty"`
	TradeID      string `json:"trade_id,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Risk flags attached to decisions for audit.
const (
	RiskFlagMissingInput    = "MISSING_INPUT"
	RiskFlagAIFallback      = "AI_FALLBACK"
	RiskFlagBelowBreakEven  = "BELOW_BREAK_EVEN"
	RiskFlagNegativeGrowth  = "NEGATIVE_LOG_GROWTH"
	RiskFlagCashConstrained = "CASH_CONSTRAINED"
	RiskFlagBelowMinOrder   = "BELOW_MIN_ORDER"
	RiskFlagDrawdownDamped  = "DRAWDOWN_DAMPENED"
)
