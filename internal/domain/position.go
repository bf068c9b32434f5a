package domain

import "time"

// PositionType is the directional exposure of a lot, derived from the
// opening side.
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
)

// TypeForSide maps an opening order side to its directional type.
func TypeForSide(side OrderSide) PositionType {
	if side == OrderSideSell {
		return PositionShort
	}
	return PositionLong
}

// Position represents an open lot held by the paper ledger. Buys open
// new lots; sells close existing lots oldest-first.
type Position struct {
	ID           string
	Symbol       string
	Side         OrderSide
	Type         PositionType
	Amount       float64
	EntryPrice   float64
	CurrentPrice float64
	Bot          string // originating bot name, empty for manual orders
	OpenedAt     time.Time
}

// MarketValue returns the current notional of the lot.
func (p Position) MarketValue() float64 {
	return p.CurrentPrice * p.Amount
}

// PnL computes the mark-to-market profit at the given price. Short
// lots profit when price falls.
func (p Position) PnL(price float64) float64 {
	pnl := (price - p.EntryPrice) * p.Amount
	if p.Type == PositionShort {
		return -pnl
	}
	return pnl
}

// PnLPercent is the mark-to-market profit relative to entry notional.
func (p Position) PnLPercent(price float64) float64 {
	notional := p.EntryPrice * p.Amount
	if notional == 0 {
		return 0
	}
	return p.PnL(price) / notional * 100
}
