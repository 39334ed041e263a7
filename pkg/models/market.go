package models

import "time"

// PositionSide is the side of an open position in a prediction market.
type PositionSide string

const (
	SideYes PositionSide = "YES"
	SideNo  PositionSide = "NO"
)

// MarketSnapshot is the read-once market view handed to the sizing pipeline.
// It is produced by the external data provider collaborator.
type MarketSnapshot struct {
	ID        string    `json:"id"        validate:"required"`
	Question  string    `json:"question"`
	Category  string    `json:"category"`
	Volume    float64   `json:"volume"`
	Liquidity float64   `json:"liquidity"`
	Odds      float64   `json:"odds"`
	CreatedAt time.Time `json:"created_at"`
	EndDate   time.Time `json:"end_date"`
}

// Position is an open holding in a single market.
type Position struct {
	MarketID     string       `json:"market_id"`
	Side         PositionSide `json:"side"`
	Shares       float64      `json:"shares"`
	AvgEntryCost float64      `json:"avg_entry_cost"`
	Category     string       `json:"category,omitempty"`
}

// Notional returns the capital committed to the position at entry cost.
func (p Position) Notional() float64 {
	return p.Shares * p.AvgEntryCost
}

// PortfolioSnapshot is the read-once portfolio view for one orchestrator
// invocation. The engine never mutates it mid-run.
type PortfolioSnapshot struct {
	TotalEquity   float64    `json:"total_equity" validate:"required,gt=0"`
	FreeCash      float64    `json:"free_cash"    validate:"gte=0"`
	OpenPositions []Position `json:"open_positions"`
	RecentPnL     float64    `json:"recent_pnl"`
}

// ExposureFraction returns the fraction of total equity committed to open
// positions, optionally restricted to one category. Zero equity yields zero.
func (p PortfolioSnapshot) ExposureFraction(category string) float64 {
	if p.TotalEquity <= 0 {
		return 0
	}

	var notional float64

	for _, pos := range p.OpenPositions {
		if category == "" || pos.Category == category {
			notional += pos.Notional()
		}
	}

	return notional / p.TotalEquity
}

// PositionFor returns the open position for a market, if any.
func (p PortfolioSnapshot) PositionFor(marketID string) (Position, bool) {
	for _, pos := range p.OpenPositions {
		if pos.MarketID == marketID {
			return pos, true
		}
	}

	return Position{}, false
}
