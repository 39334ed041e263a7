package sizing

import (
	"math"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// reconcile compares the rounded target against the existing holding in the
// same market and derives the decision verb plus a signed share delta. An
// opposite-side holding with a nonzero target always yields FLIP; for a flip
// the delta counts both legs (close the old side, open the new one). Finally
// the delta is checked for cash feasibility and the minimum order size.
func reconcile(targetShares, targetNotional float64, in Input, out *Outcome) {
	existing := in.Request.CurrentPosition
	cost := in.Request.EntryCostPerShare

	out.TargetShares = targetShares
	out.RecommendedNotional = targetNotional

	switch {
	case existing.Shares == 0:
		if targetShares == 0 {
			out.Action = models.ActionHold

			return
		}

		out.Action = models.ActionBuy
		out.DeltaShares = targetShares

	case existing.Side != in.Request.Side:
		if targetShares == 0 {
			out.Action = models.ActionClose
			out.DeltaShares = -existing.Shares
		} else {
			out.Action = models.ActionFlip
			out.DeltaShares = existing.Shares + targetShares
		}

	default: // same side
		delta := targetShares - existing.Shares

		switch {
		case delta > 0:
			out.Action = models.ActionBuy
			out.DeltaShares = delta
		case delta == 0:
			out.Action = models.ActionHold

			return
		case targetShares == 0:
			out.Action = models.ActionClose
			out.DeltaShares = delta
		default:
			out.Action = models.ActionReduce
			out.DeltaShares = delta
		}
	}

	// Cash feasibility: only the new-exposure leg consumes free cash. Clip it
	// and re-derive the order before the minimum-notional check.
	newShares := newSideShares(out, targetShares)
	if newShares > 0 && newShares*cost > in.Request.FreeCashUSD {
		lot := in.Rules.LotSize
		if lot <= 0 {
			lot = 1
		}

		affordable := math.Floor(in.Request.FreeCashUSD/cost/lot) * lot
		if affordable < 0 {
			affordable = 0
		}

		clipNewSide(out, &targetShares, affordable, existing)

		out.TargetShares = targetShares
		out.RecommendedNotional = targetShares * cost
		out.ConstraintsApplied = append(out.ConstraintsApplied, ConstraintFreeCash)
		out.RiskFlags = append(out.RiskFlags, models.RiskFlagCashConstrained)
	}

	out.Computation.DeltaNotionalUSD = out.DeltaShares * cost

	// Orders below the configured minimum collapse to HOLD; a pure CLOSE is
	// exempt so positions can always be unwound.
	if out.Action != models.ActionClose && out.Action != models.ActionHold &&
		math.Abs(out.DeltaShares)*cost < in.Rules.MinOrderNotionalUSD {
		out.Action = models.ActionHold
		out.DeltaShares = 0
		out.TargetShares = existing.Shares
		out.RecommendedNotional = existing.Shares * cost
		out.RiskFlags = append(out.RiskFlags, models.RiskFlagBelowMinOrder)
	}
}

// newSideShares returns how many shares of new exposure the action opens.
func newSideShares(out *Outcome, targetShares float64) float64 {
	switch out.Action {
	case models.ActionBuy:
		return out.DeltaShares
	case models.ActionFlip:
		return targetShares
	default:
		return 0
	}
}

// clipNewSide shrinks the new-exposure leg to the affordable share count and
// recomputes the delta for the resulting action.
func clipNewSide(out *Outcome, targetShares *float64, affordable float64, existing models.Position) {
	switch out.Action {
	case models.ActionBuy:
		if existing.Shares == 0 {
			*targetShares = affordable
			out.DeltaShares = affordable

			if affordable == 0 {
				out.Action = models.ActionHold
			}
		} else {
			*targetShares = existing.Shares + affordable
			out.DeltaShares = affordable

			if affordable == 0 {
				out.Action = models.ActionHold
			}
		}
	case models.ActionFlip:
		*targetShares = affordable
		out.DeltaShares = existing.Shares + affordable

		if affordable == 0 {
			// Nothing can be opened on the new side; the flip degrades to
			// closing the existing exposure.
			out.Action = models.ActionClose
			out.DeltaShares = -existing.Shares
		}
	}
}
