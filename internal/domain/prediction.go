package domain

import "time"

// Direction is the predicted price movement.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Horizon is a prediction timeframe.
type Horizon struct {
	Label   string // e.g. "1h", "3d"
	Minutes int
}

// Horizons lists every timeframe a generation pass produces, shortest
// first.
var Horizons = []Horizon{
	{Label: "15m", Minutes: 15},
	{Label: "1h", Minutes: 60},
	{Label: "4h", Minutes: 240},
	{Label: "12h", Minutes: 720},
	{Label: "24h", Minutes: 1440},
	{Label: "3d", Minutes: 4320},
	{Label: "7d", Minutes: 10080},
}

// Prediction is one price forecast for a symbol at a horizon. Accuracy
// fields stay nil until the target time passes and the forecast is
// verified against the actual price.
type Prediction struct {
	ID               string
	Symbol           string
	Horizon          string
	HorizonMinutes   int
	PriceAtCreation  float64
	PredictedPrice   float64
	Direction        Direction
	Confidence       float64 // 0-100
	CreatedAt        time.Time
	TargetTime       time.Time
	ActualPrice      *float64
	Accuracy         *float64 // percentage, 0-100
	DirectionCorrect *bool
}

// Verified reports whether the prediction has been scored.
func (p Prediction) Verified() bool {
	return p.Accuracy != nil
}

// HorizonMetrics summarizes verified predictions for one timeframe.
type HorizonMetrics struct {
	Horizon          string
	Total            int
	AvgAccuracy      float64
	DirectionHitRate float64 // percentage, 0-100
}

// PredictionMetrics is the overall forecasting scorecard.
type PredictionMetrics struct {
	TotalVerified    int
	AvgAccuracy      float64
	DirectionHitRate float64
	ByHorizon        []HorizonMetrics
}
