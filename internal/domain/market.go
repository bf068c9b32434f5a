package domain

import (
	"context"
	"time"
)

// Interval identifies a candle timeframe.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// TickerStats is a 24-hour rolling summary for one symbol.
type TickerStats struct {
	Symbol             string
	LastPrice          float64
	PriceChange        float64
	PriceChangePercent float64
	HighPrice          float64
	LowPrice           float64
	Volume             float64
	QuoteVolume        float64
}

// TickerFunc receives price updates from a subscription.
type TickerFunc func(symbol string, price float64)

// CancelFunc stops a subscription or a scheduled task.
type CancelFunc func()

// MarketSource provides price data for the bots and the ledger.
type MarketSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	Stats24h(ctx context.Context, symbol string) (TickerStats, error)
	Candles(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error)
	Subscribe(symbol string, fn TickerFunc) (CancelFunc, error)
}
