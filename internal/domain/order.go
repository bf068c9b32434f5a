package domain

import "context"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates what triggered the order.
type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypePrediction OrderType = "prediction"
)

// OrderExecutor fills paper orders against the ledger. Bots depend on
// this rather than the concrete ledger.
type OrderExecutor interface {
	ExecuteOrder(ctx context.Context, symbol string, side OrderSide, amount float64, orderType OrderType) (Trade, error)
}

// SignalSource exposes the signal aggregator's read side to the bots.
type SignalSource interface {
	Predictions(symbol string) []Prediction
	PredictionFor(symbol string, horizonMinutes int) (Prediction, bool)
	SentimentScore(ctx context.Context) float64
}

