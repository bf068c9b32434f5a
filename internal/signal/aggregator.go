// Package signal produces the trading signals the bots consume: price
// predictions per horizon, verified against realized prices, and a
// keyword-scored news sentiment feed.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intellidex/cryptobot/internal/domain"
)

const keyPredictions = "predictions"

// NewsSource supplies headlines for sentiment scoring.
type NewsSource interface {
	Headlines(ctx context.Context, currency string) ([]domain.Headline, error)
}

// horizonParams tunes prediction generation per timeframe: longer
// horizons move further and are trusted less.
type horizonParams struct {
	multiplier     float64
	confidenceBase float64
}

var paramsByHorizon = map[int]horizonParams{
	15:    {multiplier: 0.5, confidenceBase: 88},
	60:    {multiplier: 1.0, confidenceBase: 84},
	240:   {multiplier: 1.8, confidenceBase: 79},
	720:   {multiplier: 2.5, confidenceBase: 74},
	1440:  {multiplier: 3.5, confidenceBase: 70},
	4320:  {multiplier: 5.0, confidenceBase: 63},
	10080: {multiplier: 8.0, confidenceBase: 57},
}

// Config tunes the aggregator. Zero values fall back to the defaults.
type Config struct {
	Currency       string // news currency code, default "BTC"
	SentimentTTL   time.Duration
	MaxPredictions int
	Seed           int64
}

// Aggregator generates and verifies predictions and maintains the
// cached sentiment score.
type Aggregator struct {
	mu          sync.Mutex
	predictions []domain.Prediction

	sentiment       domain.SentimentAnalysis
	sentimentLoaded bool

	market   domain.MarketSource
	news     NewsSource
	store    domain.KVStore
	archiver domain.Archiver
	logger   *slog.Logger
	rng      *rand.Rand
	now      func() time.Time

	currency       string
	sentimentTTL   time.Duration
	maxPredictions int
}

var _ domain.SignalSource = (*Aggregator)(nil)

// New builds an aggregator, restoring persisted prediction history.
// The archiver may be nil.
func New(ctx context.Context, market domain.MarketSource, news NewsSource, store domain.KVStore, archiver domain.Archiver, logger *slog.Logger, cfg Config) (*Aggregator, error) {
	if cfg.Currency == "" {
		cfg.Currency = "BTC"
	}
	if cfg.SentimentTTL == 0 {
		cfg.SentimentTTL = 30 * time.Minute
	}
	if cfg.MaxPredictions <= 0 {
		cfg.MaxPredictions = 500
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	a := &Aggregator{
		market:         market,
		news:           news,
		store:          store,
		archiver:       archiver,
		logger:         logger.With(slog.String("component", "signal")),
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		now:            time.Now,
		currency:       cfg.Currency,
		sentimentTTL:   cfg.SentimentTTL,
		maxPredictions: cfg.MaxPredictions,
	}

	raw, err := store.Get(ctx, keyPredictions)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &a.predictions); err != nil {
			return nil, fmt.Errorf("signal: decode predictions: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("signal: restore predictions: %w", err)
	}

	return a, nil
}

// Generate produces one prediction per horizon for symbol at the
// current price, indicators and sentiment.
func (a *Aggregator) Generate(ctx context.Context, symbol string) ([]domain.Prediction, error) {
	price, err := a.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("signal: price for %s: %w", symbol, err)
	}

	// One candle fetch per distinct indicator timeframe.
	indicatorsByInterval := make(map[domain.Interval]Indicators)
	for _, h := range domain.Horizons {
		interval := intervalFor(h.Minutes)
		if _, ok := indicatorsByInterval[interval]; ok {
			continue
		}
		candles, err := a.market.Candles(ctx, symbol, interval, 100)
		if err != nil {
			a.logger.Warn("candles unavailable",
				slog.String("symbol", symbol),
				slog.String("interval", string(interval)),
				slog.Any("error", err))
			indicatorsByInterval[interval] = Indicators{RSI: 50}
			continue
		}
		ind, ok := ComputeIndicators(candles)
		if !ok {
			ind = Indicators{RSI: 50}
		}
		indicatorsByInterval[interval] = ind
	}

	sentiment := a.SentimentScore(ctx)
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	generated := make([]domain.Prediction, 0, len(domain.Horizons))
	for _, h := range domain.Horizons {
		params := paramsByHorizon[h.Minutes]
		ind := indicatorsByInterval[intervalFor(h.Minutes)]

		rsiBias := (50 - ind.RSI) / 50 * 0.02
		macdBias := 0.005
		if ind.MACDHistogram < 0 {
			macdBias = -0.005
		}
		sentimentBias := sentiment * 0.01
		random := (a.rng.Float64() - 0.5) * 0.02

		move := (random + rsiBias + macdBias + sentimentBias) * params.multiplier
		predicted := price * (1 + move)

		direction := domain.DirectionUp
		if predicted < price {
			direction = domain.DirectionDown
		}

		confidence := params.confidenceBase + (a.rng.Float64()*6 - 3)
		confidence = clamp(confidence, 45, 95)

		generated = append(generated, domain.Prediction{
			ID:              uuid.NewString(),
			Symbol:          symbol,
			Horizon:         h.Label,
			HorizonMinutes:  h.Minutes,
			PriceAtCreation: price,
			PredictedPrice:  predicted,
			Direction:       direction,
			Confidence:      confidence,
			CreatedAt:       now,
			TargetTime:      now.Add(time.Duration(h.Minutes) * time.Minute),
		})
	}

	a.predictions = append(a.predictions, generated...)
	a.pruneLocked(ctx)
	a.persistLocked(ctx)

	a.logger.Info("predictions generated",
		slog.String("symbol", symbol),
		slog.Int("count", len(generated)),
		slog.Float64("price", price))
	return generated, nil
}

func (a *Aggregator) pruneLocked(ctx context.Context) {
	if len(a.predictions) <= a.maxPredictions {
		return
	}
	pruned := make([]domain.Prediction, len(a.predictions)-a.maxPredictions)
	copy(pruned, a.predictions[:len(pruned)])
	a.predictions = append(a.predictions[:0], a.predictions[len(pruned):]...)

	if a.archiver == nil {
		return
	}
	if err := a.archiver.ArchivePredictions(ctx, pruned); err != nil {
		a.logger.Error("archive pruned predictions",
			slog.Int("count", len(pruned)), slog.Any("error", err))
	}
}

func (a *Aggregator) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(a.predictions)
	if err != nil {
		a.logger.Error("encode predictions", slog.Any("error", err))
		return
	}
	if err := a.store.Set(ctx, keyPredictions, raw); err != nil {
		a.logger.Error("persist predictions", slog.Any("error", err))
	}
}

// VerifyAccuracy scores every prediction whose target time has passed
// against the realized price and returns how many were verified.
func (a *Aggregator) VerifyAccuracy(ctx context.Context) (int, error) {
	now := a.now()

	a.mu.Lock()
	due := make(map[string]struct{})
	for _, p := range a.predictions {
		if !p.Verified() && !p.TargetTime.After(now) {
			due[p.Symbol] = struct{}{}
		}
	}
	a.mu.Unlock()

	if len(due) == 0 {
		return 0, nil
	}

	prices := make(map[string]float64, len(due))
	for sym := range due {
		price, err := a.market.CurrentPrice(ctx, sym)
		if err != nil {
			return 0, fmt.Errorf("signal: verify price for %s: %w", sym, err)
		}
		prices[sym] = price
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var verified int
	for i := range a.predictions {
		p := &a.predictions[i]
		if p.Verified() || p.TargetTime.After(now) {
			continue
		}
		actual, ok := prices[p.Symbol]
		if !ok {
			continue
		}

		accuracy := 0.0
		if actual != 0 {
			accuracy = math.Max(0, 100-math.Abs(actual-p.PredictedPrice)/actual*100)
		}
		wentUp := actual >= p.PriceAtCreation
		correct := (p.Direction == domain.DirectionUp) == wentUp

		p.ActualPrice = &actual
		p.Accuracy = &accuracy
		p.DirectionCorrect = &correct
		verified++
	}

	if verified > 0 {
		a.persistLocked(ctx)
		a.logger.Info("predictions verified", slog.Int("count", verified))
	}
	return verified, nil
}

// Predictions returns symbol's predictions, newest generation first.
func (a *Aggregator) Predictions(symbol string) []domain.Prediction {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []domain.Prediction
	for i := len(a.predictions) - 1; i >= 0; i-- {
		if a.predictions[i].Symbol == symbol {
			out = append(out, a.predictions[i])
		}
	}
	return out
}

// All returns every retained prediction, newest first.
func (a *Aggregator) All() []domain.Prediction {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]domain.Prediction, 0, len(a.predictions))
	for i := len(a.predictions) - 1; i >= 0; i-- {
		out = append(out, a.predictions[i])
	}
	return out
}

// PredictionFor returns the most recent prediction for symbol at the
// given horizon.
func (a *Aggregator) PredictionFor(symbol string, horizonMinutes int) (domain.Prediction, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.predictions) - 1; i >= 0; i-- {
		p := a.predictions[i]
		if p.Symbol == symbol && p.HorizonMinutes == horizonMinutes {
			return p, true
		}
	}
	return domain.Prediction{}, false
}

// SentimentScore returns the cached aggregate sentiment in [-1, 1].
func (a *Aggregator) SentimentScore(ctx context.Context) float64 {
	return a.Analysis(ctx).Score
}

// Analysis returns the sentiment view, refreshing it when the cache
// is older than the TTL. News failures fall back to canned headlines,
// so this never fails.
func (a *Aggregator) Analysis(ctx context.Context) domain.SentimentAnalysis {
	now := a.now()

	a.mu.Lock()
	if a.sentimentLoaded && now.Sub(a.sentiment.FetchedAt) < a.sentimentTTL {
		cached := a.sentiment
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	headlines, err := a.news.Headlines(ctx, a.currency)
	if err != nil || len(headlines) == 0 {
		if err != nil {
			a.logger.Warn("news fetch failed, using fallback headlines", slog.Any("error", err))
		}
		headlines = FallbackHeadlines(now)
	}

	for i := range headlines {
		headlines[i].Score = ScoreHeadline(headlines[i].Title)
	}

	score := AggregateScore(headlines, now)
	analysis := domain.SentimentAnalysis{
		Score:      score,
		Label:      LabelFor(score),
		Confidence: clamp(40+float64(len(headlines))*2+math.Abs(score)*30, 0, 95),
		Headlines:  headlines,
		FetchedAt:  now,
	}

	a.mu.Lock()
	a.sentiment = analysis
	a.sentimentLoaded = true
	a.mu.Unlock()

	return analysis
}

// PerformanceMetrics summarizes every verified prediction, overall and
// per horizon.
func (a *Aggregator) PerformanceMetrics() domain.PredictionMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	type bucket struct {
		total    int
		accuracy float64
		hits     int
	}
	buckets := make(map[string]*bucket)
	overall := bucket{}

	for _, p := range a.predictions {
		if !p.Verified() {
			continue
		}
		b, ok := buckets[p.Horizon]
		if !ok {
			b = &bucket{}
			buckets[p.Horizon] = b
		}
		b.total++
		b.accuracy += *p.Accuracy
		overall.total++
		overall.accuracy += *p.Accuracy
		if p.DirectionCorrect != nil && *p.DirectionCorrect {
			b.hits++
			overall.hits++
		}
	}

	metrics := domain.PredictionMetrics{TotalVerified: overall.total}
	if overall.total > 0 {
		metrics.AvgAccuracy = overall.accuracy / float64(overall.total)
		metrics.DirectionHitRate = float64(overall.hits) / float64(overall.total) * 100
	}

	for _, h := range domain.Horizons {
		b, ok := buckets[h.Label]
		if !ok {
			continue
		}
		metrics.ByHorizon = append(metrics.ByHorizon, domain.HorizonMetrics{
			Horizon:          h.Label,
			Total:            b.total,
			AvgAccuracy:      b.accuracy / float64(b.total),
			DirectionHitRate: float64(b.hits) / float64(b.total) * 100,
		})
	}
	return metrics
}
