package sizing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/sizing"
	"github.com/oddsflow/oddsflow/pkg/testutil"
)

// openRules returns rules where no cap binds, so tests can observe the raw
// pipeline output before layering constraints on top.
func openRules() models.SizingRules {
	return models.SizingRules{
		MaxFractionPerMarket: 1,
		AbsoluteMaxFraction:  1,
		LotSize:              1,
	}
}

func baseInput() sizing.Input {
	return sizing.Input{
		Request:   testutil.CreateTestSizingRequest(),
		Rules:     openRules(),
		Market:    testutil.CreateTestMarket(),
		Portfolio: testutil.CreateTestPortfolio(),
	}
}

// Hand-checked pipeline values for p_win=0.75, cost=0.65, fee=0.02, λ=0.5 on
// a 10k bankroll: R=0.343/0.65, f_raw=0.75-0.25/R, f=λ·f_raw.
func TestComputeHandCheckedValues(t *testing.T) {
	t.Parallel()

	out := sizing.Compute(baseInput())

	assert.InDelta(t, 0.5276923077, out.Computation.NetOdds, 1e-9)
	assert.InDelta(t, 0.6545821752, out.Computation.BreakEvenPWin, 1e-9)
	assert.InDelta(t, 0.2762390671, out.Computation.RawKelly, 1e-9)
	assert.InDelta(t, 0.1381195335, out.Computation.FractionalKelly, 1e-9)
	assert.Greater(t, out.Computation.ExpectedLogGrow, 0.0)

	assert.InDelta(t, 0.1381195335, out.RecommendedFraction, 1e-9)
	assert.InDelta(t, 1381.1953353, out.Computation.PreClipNotional, 1e-6)

	// floor(1381.1953/0.65) = 2124 shares, re-derived notional 1380.60
	assert.Equal(t, models.ActionBuy, out.Action)
	assert.InDelta(t, 2124, out.TargetShares, 1e-9)
	assert.InDelta(t, 2124, out.DeltaShares, 1e-9)
	assert.InDelta(t, 1380.60, out.RecommendedNotional, 1e-9)

	assert.Empty(t, out.ConstraintsApplied)
	assert.Empty(t, out.RiskFlags)
}

func TestComputeBelowBreakEvenHolds(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.PWin = 0.60 // break-even is ≈0.6546 at this cost and fee

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionHold, out.Action)
	assert.Zero(t, out.Computation.RawKelly)
	assert.Zero(t, out.RecommendedFraction)
	assert.Zero(t, out.RecommendedNotional)
	assert.Contains(t, out.RiskFlags, models.RiskFlagBelowBreakEven)
}

func TestComputeFractionMonotonicInPWin(t *testing.T) {
	t.Parallel()

	prev := -1.0

	for pWin := 0.66; pWin < 0.96; pWin += 0.02 {
		in := baseInput()
		in.Request.PWin = pWin

		out := sizing.Compute(in)

		assert.GreaterOrEqual(t, out.RecommendedFraction, prev,
			"fraction must not shrink as p_win rises (p_win=%v)", pWin)

		prev = out.RecommendedFraction
	}
}

func TestComputeCapsShrinkOnlyInOrder(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MaxFractionPerMarket = 0.05
	in.Rules.MaxNotionalPerMarket = 300 // 3% of the 10k bankroll

	out := sizing.Compute(in)

	// 0.138 → 0.05 (per-market) → 0.03 (dollar cap as a fraction), recorded
	// in application order.
	assert.Equal(t, []string{sizing.ConstraintPerMarketCap, sizing.ConstraintAbsoluteCap},
		out.ConstraintsApplied)
	assert.InDelta(t, 0.03, out.RecommendedFraction, 1e-9)
	assert.InDelta(t, 461, out.TargetShares, 1e-9) // floor(300/0.65)
}

func TestComputeCapNeverGrowsFraction(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MaxFractionPerMarket = 0.90 // far above the Kelly output

	out := sizing.Compute(in)

	assert.InDelta(t, 0.1381195335, out.RecommendedFraction, 1e-9)
	assert.NotContains(t, out.ConstraintsApplied, sizing.ConstraintPerMarketCap)
}

func TestComputeCategoryHeadroom(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MaxCategoryFraction = 0.20
	in.Portfolio.OpenPositions = []models.Position{
		{MarketID: "mkt-other", Side: models.SideYes, Shares: 3000, AvgEntryCost: 0.5, Category: "politics"},
	}

	out := sizing.Compute(in)

	// 15% already committed to politics leaves 5% of headroom.
	assert.Contains(t, out.ConstraintsApplied, sizing.ConstraintCategoryCapacity)
	assert.InDelta(t, 0.05, out.RecommendedFraction, 1e-9)
}

func TestComputePortfolioHeadroom(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MaxActiveRiskFraction = 0.16
	in.Portfolio.OpenPositions = []models.Position{
		{MarketID: "mkt-other", Side: models.SideYes, Shares: 3000, AvgEntryCost: 0.5, Category: "sports"},
	}

	out := sizing.Compute(in)

	assert.Contains(t, out.ConstraintsApplied, sizing.ConstraintPortfolioCapacity)
	assert.InDelta(t, 0.01, out.RecommendedFraction, 1e-9)
}

func TestComputeDustThresholdZeroes(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MaxFractionPerMarket = 0.0005
	in.Rules.DustFraction = 0.001

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionHold, out.Action)
	assert.Zero(t, out.RecommendedFraction)
	assert.Contains(t, out.ConstraintsApplied, sizing.ConstraintDustThreshold)
}

func TestComputeLiquidityCapClipsNotional(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MaxLiquidityFraction = 0.05
	in.Market.Liquidity = 10000 // cap at 500 USD

	out := sizing.Compute(in)

	assert.Contains(t, out.ConstraintsApplied, sizing.ConstraintLiquidityCap)
	assert.InDelta(t, 500, out.Computation.LiquidityCapUSD, 1e-9)
	assert.InDelta(t, 769, out.TargetShares, 1e-9) // floor(500/0.65)
	assert.InDelta(t, 499.85, out.RecommendedNotional, 1e-9)
}

func TestComputeLotRounding(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.LotSize = 100

	out := sizing.Compute(in)

	// floor(2124.9/100)·100
	assert.InDelta(t, 2100, out.TargetShares, 1e-9)
	assert.InDelta(t, 1365, out.RecommendedNotional, 1e-9)
}

func TestComputeAdvisoryFractionShrinkOnly(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.AdvisoryFraction = 0.05

	out := sizing.Compute(in)

	assert.InDelta(t, 0.05, out.RecommendedFraction, 1e-9)
	// the audit record keeps the pre-advisory fractional Kelly
	assert.InDelta(t, 0.1381195335, out.Computation.FractionalKelly, 1e-9)

	// an advisory above the computed fraction must not grow it
	in.AdvisoryFraction = 0.50
	out = sizing.Compute(in)
	assert.InDelta(t, 0.1381195335, out.RecommendedFraction, 1e-9)
}

func TestComputeDrawdownDampener(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.DrawdownDampener = 0.5
	in.Rules.DrawdownTriggerUSD = 200
	in.Portfolio.RecentPnL = -500

	out := sizing.Compute(in)

	assert.InDelta(t, 0.1381195335/2, out.Computation.FractionalKelly, 1e-9)
	assert.Contains(t, out.RiskFlags, models.RiskFlagDrawdownDamped)
}

func TestReconcileFlipOppositeSide(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.CurrentPosition = models.Position{
		MarketID: "mkt-test", Side: models.SideNo, Shares: 1000, AvgEntryCost: 0.4,
	}

	out := sizing.Compute(in)

	// flip counts both legs: close 1000 NO, open 2124 YES
	assert.Equal(t, models.ActionFlip, out.Action)
	assert.InDelta(t, 3124, out.DeltaShares, 1e-9)
	assert.InDelta(t, 2124, out.TargetShares, 1e-9)
}

func TestReconcileOppositeSideZeroTargetCloses(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.PWin = 0.60 // below break-even, target zero
	in.Request.CurrentPosition = models.Position{
		MarketID: "mkt-test", Side: models.SideNo, Shares: 1000, AvgEntryCost: 0.4,
	}

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionClose, out.Action)
	assert.InDelta(t, -1000, out.DeltaShares, 1e-9)
}

func TestReconcileSameSideReduce(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.CurrentPosition = models.Position{
		MarketID: "mkt-test", Side: models.SideYes, Shares: 3000, AvgEntryCost: 0.6,
	}

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionReduce, out.Action)
	assert.InDelta(t, -876, out.DeltaShares, 1e-9) // 2124 - 3000
}

func TestReconcileSameSideZeroTargetCloses(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.PWin = 0.60
	in.Request.CurrentPosition = models.Position{
		MarketID: "mkt-test", Side: models.SideYes, Shares: 1000, AvgEntryCost: 0.6,
	}
	in.Rules.MinOrderNotionalUSD = 5000 // a pure close is exempt from the minimum

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionClose, out.Action)
	assert.InDelta(t, -1000, out.DeltaShares, 1e-9)
	assert.NotContains(t, out.RiskFlags, models.RiskFlagBelowMinOrder)
}

func TestReconcileSameSideEqualTargetHolds(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MaxFractionPerMarket = 0.138062 // still floors to 2124 shares
	in.Request.CurrentPosition = models.Position{
		MarketID: "mkt-test", Side: models.SideYes, Shares: 2124, AvgEntryCost: 0.65,
	}

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionHold, out.Action)
	assert.Zero(t, out.DeltaShares)
}

func TestReconcileCashClip(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.FreeCashUSD = 100

	out := sizing.Compute(in)

	// floor(100/0.65) = 153 affordable shares
	assert.Equal(t, models.ActionBuy, out.Action)
	assert.InDelta(t, 153, out.DeltaShares, 1e-9)
	assert.InDelta(t, 153, out.TargetShares, 1e-9)
	assert.InDelta(t, 99.45, out.RecommendedNotional, 1e-9)
	assert.Contains(t, out.ConstraintsApplied, sizing.ConstraintFreeCash)
	assert.Contains(t, out.RiskFlags, models.RiskFlagCashConstrained)
}

func TestReconcileNoCashHolds(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.FreeCashUSD = 0

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionHold, out.Action)
	assert.Zero(t, out.DeltaShares)
	assert.Contains(t, out.ConstraintsApplied, sizing.ConstraintFreeCash)
}

func TestReconcileFlipDegradesToCloseWithoutCash(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Request.FreeCashUSD = 0
	in.Request.CurrentPosition = models.Position{
		MarketID: "mkt-test", Side: models.SideNo, Shares: 500, AvgEntryCost: 0.4,
	}

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionClose, out.Action)
	assert.InDelta(t, -500, out.DeltaShares, 1e-9)
}

func TestReconcileBelowMinOrderHolds(t *testing.T) {
	t.Parallel()

	in := baseInput()
	in.Rules.MinOrderNotionalUSD = 2000 // recommended order is ≈1380.60

	out := sizing.Compute(in)

	assert.Equal(t, models.ActionHold, out.Action)
	assert.Zero(t, out.DeltaShares)
	assert.Contains(t, out.RiskFlags, models.RiskFlagBelowMinOrder)
}
