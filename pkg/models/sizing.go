package models

import "time"

// SizingRequest is the language-neutral position-sizing contract. Every field
// tagged required must be present; a request failing validation yields a HOLD
// decision flagged MISSING_INPUT rather than an error, so the audit trail
// stays complete.
type SizingRequest struct {
	Timestamp         time.Time    `json:"timestamp"             validate:"required"`
	MarketID          string       `json:"market_id"             validate:"required"`
	Side              PositionSide `json:"side"                  validate:"required,oneof=YES NO"`
	PWin              float64      `json:"p_win"                 validate:"required,gt=0,lt=1"`
	EntryCostPerShare float64      `json:"entry_cost_per_share"  validate:"required,gt=0,lt=1"`
	ResolutionFeeRate float64      `json:"resolution_fee_rate"   validate:"gte=0,lt=1"`
	KellyLambda       float64      `json:"fractional_kelly_lambda" validate:"required,gt=0,lte=1"`
	TotalEquityUSD    float64      `json:"bankroll_total_equity_usd" validate:"required,gt=0"`
	FreeCashUSD       float64      `json:"bankroll_free_cash_usd"    validate:"gte=0"`
	CurrentPosition   Position     `json:"current_position"`
}

// SizingRules are the configured constraint parameters for one sizing node.
// Fractions are of total equity; dollar caps are converted to fractions at
// pipeline entry using the read-once equity snapshot.
type SizingRules struct {
	MaxFractionPerMarket  float64 `json:"max_fraction_per_market"`
	AbsoluteMaxFraction   float64 `json:"absolute_max_fraction"`
	MaxNotionalPerMarket  float64 `json:"max_notional_per_market,omitempty"`
	MaxCategoryFraction   float64 `json:"max_category_fraction"`
	MaxActiveRiskFraction float64 `json:"max_active_risk_fraction"`
	DustFraction          float64 `json:"dust_fraction"`
	MaxLiquidityFraction  float64 `json:"max_liquidity_fraction"`
	LotSize               float64 `json:"lot_size"`
	MinOrderNotionalUSD   float64 `json:"min_order_notional_usd"`
	MaxSlippage           float64 `json:"max_slippage,omitempty"`
	DrawdownDampener      float64 `json:"drawdown_dampener,omitempty"`    // multiplier applied to f while in drawdown
	DrawdownTriggerUSD    float64 `json:"drawdown_trigger_usd,omitempty"` // recent loss that arms the dampener
}

// DefaultSizingRules returns conservative defaults used when a sizing node's
// config omits the rules block.
func DefaultSizingRules() SizingRules {
	return SizingRules{
		MaxFractionPerMarket:  0.05,
		AbsoluteMaxFraction:   0.10,
		MaxCategoryFraction:   0.20,
		MaxActiveRiskFraction: 0.50,
		DustFraction:          0.001,
		MaxLiquidityFraction:  0.05,
		LotSize:               1,
		MinOrderNotionalUSD:   10,
		DrawdownDampener:      0.5,
		DrawdownTriggerUSD:    0,
	}
}

// SizingComputation records every intermediate quantity of the Kelly pipeline
// so a decision can be audited without re-running it.
type SizingComputation struct {
	NetOdds          float64 `json:"net_odds"`            // R
	BreakEvenPWin    float64 `json:"break_even_p_win"`    // p_be
	RawKelly         float64 `json:"raw_kelly"`           // f_raw
	FractionalKelly  float64 `json:"fractional_kelly"`    // λ·f_raw (after dampener)
	ExpectedLogGrow  float64 `json:"expected_log_growth"` // g at the fractional Kelly
	ConstrainedFrac  float64 `json:"constrained_fraction"`
	PreClipNotional  float64 `json:"pre_clip_notional_usd"`
	LiquidityCapUSD  float64 `json:"liquidity_cap_usd"`
	RoundedShares    float64 `json:"rounded_shares"`
	RoundedNotional  float64 `json:"rounded_notional_usd"`
	DeltaNotionalUSD float64 `json:"delta_notional_usd"`
}

// SizingResponse is the wire shape returned to callers of the sizing API.
type SizingResponse struct {
	Decision            DecisionAction `json:"decision"`
	RecommendedFraction float64        `json:"recommended_fraction_of_bankroll"`
	RecommendedNotional float64        `json:"recommended_notional_usd"`
	TargetShares        float64        `json:"target_shares"`
	DeltaShares         float64        `json:"delta_shares"`
	ConstraintsApplied  []string       `json:"constraints_applied"`
	RiskFlags           []string       `json:"risk_flags"`
}
