package domain

import "time"

// Trade is a fill recorded by the paper ledger. PnL is set only on
// sells that close inventory; it is nil for buys.
type Trade struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Price     float64
	Amount    float64
	Total     float64 // Price * Amount
	Fee       float64
	PnL       *float64
	Bot       string
	Timestamp time.Time
}

// TradingStats summarizes realized performance of the ledger or a
// single bot.
type TradingStats struct {
	Balance       float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percentage, 0-100
	TotalPnL      float64
	TotalFees     float64
	OpenPositions int
	BestTrade     *Trade
	WorstTrade    *Trade
}
