// Package sizing implements the fractional-Kelly position computation: raw
// edge math, an ordered shrink-only constraint pipeline, notional conversion
// with lot rounding, and reconciliation against existing holdings. Everything
// here is pure and deterministic for fixed inputs.
package sizing

import (
	"math"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// Constraint names recorded on decisions when a pipeline step binds.
const (
	ConstraintPerMarketCap      = "per_market_cap"
	ConstraintAbsoluteCap       = "absolute_cap"
	ConstraintCategoryCapacity  = "category_capacity"
	ConstraintPortfolioCapacity = "portfolio_capacity"
	ConstraintDustThreshold     = "dust_threshold"
	ConstraintLiquidityCap      = "liquidity_cap"
	ConstraintFreeCash          = "free_cash"
	ConstraintMinOrder          = "min_order_notional"
)

// maxKellyFraction bounds the raw Kelly output; a fraction of 1 would bet the
// whole bankroll and ruin log-growth on a single loss.
const maxKellyFraction = 0.99

// Input carries everything one sizing computation reads. Market and portfolio
// snapshots are read once; the pipeline never consults live state.
type Input struct {
	Request   models.SizingRequest
	Rules     models.SizingRules
	Market    models.MarketSnapshot
	Portfolio models.PortfolioSnapshot

	// AdvisoryFraction is an optional shrink-only cap from the AI reviewer,
	// applied before the constraint pipeline. Zero means no advisory cap.
	AdvisoryFraction float64
}

// Outcome is the complete result of one sizing computation, including every
// intermediate quantity for the audit record.
type Outcome struct {
	Action              models.DecisionAction
	RecommendedFraction float64
	RecommendedNotional float64
	TargetShares        float64
	DeltaShares         float64
	ConstraintsApplied  []string
	RiskFlags           []string
	Computation         models.SizingComputation
}

// Compute runs the full pipeline. It never returns an error: degenerate
// inputs produce a HOLD outcome with the relevant risk flags so the decision
// record stays audit-complete.
func Compute(in Input) Outcome {
	out := Outcome{
		Action:             models.ActionHold,
		ConstraintsApplied: []string{},
		RiskFlags:          []string{},
	}

	req := in.Request
	rules := in.Rules

	// Net odds and break-even probability from the entry cost and the fee
	// charged on resolution.
	cost := req.EntryCostPerShare
	netOdds := ((1 - cost) * (1 - req.ResolutionFeeRate)) / cost
	breakEven := 1 / (1 + netOdds)

	out.Computation.NetOdds = netOdds
	out.Computation.BreakEvenPWin = breakEven

	var rawKelly float64

	if req.PWin <= breakEven {
		out.RiskFlags = append(out.RiskFlags, models.RiskFlagBelowBreakEven)
	} else {
		rawKelly = (req.PWin*netOdds - (1 - req.PWin)) / netOdds
		rawKelly = math.Min(rawKelly, maxKellyFraction)
	}

	out.Computation.RawKelly = rawKelly

	f := clampLambda(req.KellyLambda) * rawKelly

	// Drawdown dampener: scale down further while the portfolio is in a
	// losing streak.
	if f > 0 && rules.DrawdownDampener > 0 && rules.DrawdownDampener < 1 &&
		in.Portfolio.RecentPnL < 0 && -in.Portfolio.RecentPnL >= rules.DrawdownTriggerUSD {
		f *= rules.DrawdownDampener
		out.RiskFlags = append(out.RiskFlags, models.RiskFlagDrawdownDamped)
	}

	out.Computation.FractionalKelly = f

	if in.AdvisoryFraction > 0 && in.AdvisoryFraction < f {
		f = in.AdvisoryFraction
	}

	// Sanity check: zero out any fraction whose expected log-growth is not
	// strictly positive.
	growth := logGrowth(req.PWin, netOdds, f)
	out.Computation.ExpectedLogGrow = growth

	if f > 0 && growth <= 0 {
		f = 0
		out.RiskFlags = append(out.RiskFlags, models.RiskFlagNegativeGrowth)
	}

	f = applyConstraints(f, in, &out)
	out.Computation.ConstrainedFrac = f
	out.RecommendedFraction = f

	shares, notional := toShares(f, in, &out)
	out.Computation.RoundedShares = shares
	out.Computation.RoundedNotional = notional

	reconcile(shares, notional, in, &out)

	return out
}

// logGrowth is the expected log-growth of the bankroll at fraction f:
// g = p·ln(1+fR) + (1-p)·ln(1-f).
func logGrowth(pWin, netOdds, f float64) float64 {
	if f <= 0 || f >= 1 {
		return 0
	}

	return pWin*math.Log(1+f*netOdds) + (1-pWin)*math.Log(1-f)
}

// applyConstraints runs the ordered shrink-only cap pipeline. Each step can
// only reduce the fraction; every step that binds is recorded by name, in
// application order.
func applyConstraints(f float64, in Input, out *Outcome) float64 {
	rules := in.Rules
	equity := in.Request.TotalEquityUSD

	f = shrink(f, rules.MaxFractionPerMarket, ConstraintPerMarketCap, out)

	// The absolute hard cap may be configured in dollars; convert it to an
	// equity fraction at pipeline entry rather than mixing headroom units.
	absolute := rules.AbsoluteMaxFraction
	if rules.MaxNotionalPerMarket > 0 && equity > 0 {
		absolute = math.Min(absolute, rules.MaxNotionalPerMarket/equity)
	}

	f = shrink(f, absolute, ConstraintAbsoluteCap, out)

	if rules.MaxCategoryFraction > 0 {
		headroom := math.Max(0, rules.MaxCategoryFraction-in.Portfolio.ExposureFraction(in.Market.Category))
		f = shrink(f, headroom, ConstraintCategoryCapacity, out)
	}

	if rules.MaxActiveRiskFraction > 0 {
		headroom := math.Max(0, rules.MaxActiveRiskFraction-in.Portfolio.ExposureFraction(""))
		f = shrink(f, headroom, ConstraintPortfolioCapacity, out)
	}

	if f > 0 && f < rules.DustFraction {
		f = 0

		out.ConstraintsApplied = append(out.ConstraintsApplied, ConstraintDustThreshold)
	}

	return f
}

func shrink(f, limit float64, name string, out *Outcome) float64 {
	if limit <= 0 {
		return f
	}

	if f > limit {
		out.ConstraintsApplied = append(out.ConstraintsApplied, name)

		return limit
	}

	return f
}

// toShares converts the constrained fraction to notional, clips to the
// liquidity cap, floors shares to the lot size, and recomputes notional from
// the rounded shares so the order never exceeds the recommendation.
func toShares(f float64, in Input, out *Outcome) (float64, float64) {
	notional := f * in.Request.TotalEquityUSD
	out.Computation.PreClipNotional = notional

	if in.Rules.MaxLiquidityFraction > 0 && in.Market.Liquidity > 0 {
		liqCap := in.Rules.MaxLiquidityFraction * in.Market.Liquidity
		out.Computation.LiquidityCapUSD = liqCap

		if notional > liqCap {
			notional = liqCap

			out.ConstraintsApplied = append(out.ConstraintsApplied, ConstraintLiquidityCap)
		}
	}

	lot := in.Rules.LotSize
	if lot <= 0 {
		lot = 1
	}

	shares := math.Floor(notional/in.Request.EntryCostPerShare/lot) * lot
	if shares < 0 {
		shares = 0
	}

	return shares, shares * in.Request.EntryCostPerShare
}

// clampLambda keeps the fractional-Kelly multiplier in (0, 1].
func clampLambda(lambda float64) float64 {
	if lambda <= 0 {
		return 0
	}

	if lambda > 1 {
		return 1
	}

	return lambda
}
