// Package marketdata implements the market data port: a Binance-backed
// live source, a random-walk simulator, and a fallback wrapper that
// degrades from live to simulated data instead of failing.
package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

// BasePrices seeds the simulator with a realistic level per symbol.
var BasePrices = map[string]float64{
	"BTCUSDT": 69500,
	"ETHUSDT": 3450,
	"SOLUSDT": 145,
	"BNBUSDT": 580,
	"XRPUSDT": 0.52,
	"ADAUSDT": 0.45,
}

// defaultBasePrice covers symbols missing from the table so the
// simulator never refuses a request.
const defaultBasePrice = 100.0

// maxTickDrift bounds the relative per-tick price move.
const maxTickDrift = 0.003

// Simulator produces a bounded random walk per symbol. With a fixed
// seed the walk is fully deterministic, which the tests rely on.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64

	subMu   sync.Mutex
	nextSub int
	subs    map[int]simSub
	ticker  *time.Ticker
	done    chan struct{}
}

type simSub struct {
	symbol string
	fn     domain.TickerFunc
}

var _ domain.MarketSource = (*Simulator)(nil)

// NewSimulator creates a simulator advancing prices with the given
// seed.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64),
	}
}

func (s *Simulator) base(symbol string) float64 {
	if base, ok := BasePrices[symbol]; ok {
		return base
	}
	return defaultBasePrice
}

// step advances the walk for symbol and returns the new price. The
// price is clamped to [0.5, 1.5] times the base so a long run cannot
// wander into absurd levels.
func (s *Simulator) step(symbol string) float64 {
	base := s.base(symbol)
	price, ok := s.prices[symbol]
	if !ok {
		price = base
	}

	drift := (s.rng.Float64()*2 - 1) * maxTickDrift
	price *= 1 + drift
	if price < base*0.5 {
		price = base * 0.5
	}
	if price > base*1.5 {
		price = base * 1.5
	}
	s.prices[symbol] = price
	return price
}

// CurrentPrice advances the walk one tick and returns the new price.
// It never fails.
func (s *Simulator) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(symbol), nil
}

// Stats24h synthesizes a 24h summary around the current walk level.
func (s *Simulator) Stats24h(_ context.Context, symbol string) (domain.TickerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.step(symbol)
	changePct := (s.rng.Float64()*2 - 1) * 5 // within +-5%
	open := price / (1 + changePct/100)

	return domain.TickerStats{
		Symbol:             symbol,
		LastPrice:          price,
		PriceChange:        price - open,
		PriceChangePercent: changePct,
		HighPrice:          price * (1 + s.rng.Float64()*0.02),
		LowPrice:           price * (1 - s.rng.Float64()*0.02),
		Volume:             10000 + s.rng.Float64()*50000,
		QuoteVolume:        (10000 + s.rng.Float64()*50000) * price,
	}, nil
}

// Candles synthesizes limit bars ending at the current walk level.
func (s *Simulator) Candles(_ context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	d := intervalDuration(interval)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Walk backwards from the current price so the last close matches
	// CurrentPrice.
	closes := make([]float64, limit)
	price := s.step(symbol)
	for i := limit - 1; i >= 0; i-- {
		closes[i] = price
		price /= 1 + (s.rng.Float64()*2-1)*maxTickDrift
	}

	now := time.Now().Truncate(d)
	candles := make([]domain.Candle, limit)
	for i, closePrice := range closes {
		open := price
		if i > 0 {
			open = closes[i-1]
		}
		high := max(open, closePrice) * (1 + s.rng.Float64()*0.001)
		low := min(open, closePrice) * (1 - s.rng.Float64()*0.001)
		openTime := now.Add(-d * time.Duration(limit-i))
		candles[i] = domain.Candle{
			OpenTime:  openTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    100 + s.rng.Float64()*1000,
			CloseTime: openTime.Add(d),
		}
	}
	return candles, nil
}

// Subscribe pushes a fresh walk tick for symbol every 2 seconds until
// the returned cancel runs.
func (s *Simulator) Subscribe(symbol string, fn domain.TickerFunc) (domain.CancelFunc, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.ticker == nil {
		s.ticker = time.NewTicker(2 * time.Second)
		s.done = make(chan struct{})
		s.subs = make(map[int]simSub)
		go s.pushLoop(s.ticker, s.done)
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = simSub{symbol: symbol, fn: fn}

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
		if len(s.subs) == 0 && s.ticker != nil {
			s.ticker.Stop()
			close(s.done)
			s.ticker = nil
		}
	}, nil
}

func (s *Simulator) pushLoop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.subMu.Lock()
			subs := make([]simSub, 0, len(s.subs))
			for _, sub := range s.subs {
				subs = append(subs, sub)
			}
			s.subMu.Unlock()

			for _, sub := range subs {
				s.mu.Lock()
				price := s.step(sub.symbol)
				s.mu.Unlock()
				sub.fn(sub.symbol, price)
			}
		}
	}
}

func intervalDuration(interval domain.Interval) time.Duration {
	switch interval {
	case domain.Interval1m:
		return time.Minute
	case domain.Interval5m:
		return 5 * time.Minute
	case domain.Interval15m:
		return 15 * time.Minute
	case domain.Interval4h:
		return 4 * time.Hour
	case domain.Interval1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
