package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/ratelimit"

	"github.com/intellidex/cryptobot/internal/domain"
)

// restCallsPerMinute keeps us well under Binance's request weight
// ceiling.
const restCallsPerMinute = 600

// Binance implements domain.MarketSource against the Binance spot API.
// REST calls share one rate limiter; subscriptions ride the 1m kline
// websocket stream.
type Binance struct {
	client  *binance.Client
	limiter ratelimit.Limiter
}

var _ domain.MarketSource = (*Binance)(nil)

// NewBinance creates a live source. Key and secret may be empty: every
// endpoint used here is public.
func NewBinance(apiKey, secretKey string) *Binance {
	return &Binance{
		client:  binance.NewClient(apiKey, secretKey),
		limiter: ratelimit.New(restCallsPerMinute, ratelimit.Per(time.Minute)),
	}
}

// CurrentPrice returns the last traded price for symbol.
func (b *Binance) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	b.limiter.Take()
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance: list prices %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("binance: %s: %w", symbol, domain.ErrDataUnavailable)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

// Stats24h returns the rolling 24h ticker for symbol.
func (b *Binance) Stats24h(ctx context.Context, symbol string) (domain.TickerStats, error) {
	b.limiter.Take()
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.TickerStats{}, fmt.Errorf("binance: 24h stats %s: %w", symbol, err)
	}
	if len(stats) == 0 {
		return domain.TickerStats{}, fmt.Errorf("binance: %s: %w", symbol, domain.ErrDataUnavailable)
	}

	s := stats[0]
	out := domain.TickerStats{Symbol: symbol}
	for _, field := range []struct {
		dst *float64
		src string
	}{
		{&out.LastPrice, s.LastPrice},
		{&out.PriceChange, s.PriceChange},
		{&out.PriceChangePercent, s.PriceChangePercent},
		{&out.HighPrice, s.HighPrice},
		{&out.LowPrice, s.LowPrice},
		{&out.Volume, s.Volume},
		{&out.QuoteVolume, s.QuoteVolume},
	} {
		v, err := strconv.ParseFloat(field.src, 64)
		if err != nil {
			return domain.TickerStats{}, fmt.Errorf("binance: parse stats %s: %w", symbol, err)
		}
		*field.dst = v
	}
	return out, nil
}

// Candles returns up to limit klines for symbol at interval.
func (b *Binance) Candles(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		limit = 100
	}

	b.limiter.Take()
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(string(interval)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := candleFromKline(k)
		if err != nil {
			return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func candleFromKline(k *binance.Kline) (domain.Candle, error) {
	var c domain.Candle
	for _, field := range []struct {
		dst *float64
		src string
	}{
		{&c.Open, k.Open},
		{&c.High, k.High},
		{&c.Low, k.Low},
		{&c.Close, k.Close},
		{&c.Volume, k.Volume},
	} {
		v, err := strconv.ParseFloat(field.src, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("parse kline field %q: %w", field.src, err)
		}
		*field.dst = v
	}
	c.OpenTime = time.UnixMilli(k.OpenTime)
	c.CloseTime = time.UnixMilli(k.CloseTime)
	return c, nil
}

// Subscribe streams close prices from the 1m kline websocket. The
// returned cancel stops the stream.
func (b *Binance) Subscribe(symbol string, fn domain.TickerFunc) (domain.CancelFunc, error) {
	handler := func(event *binance.WsKlineEvent) {
		price, err := strconv.ParseFloat(event.Kline.Close, 64)
		if err != nil {
			return
		}
		fn(event.Symbol, price)
	}
	errHandler := func(err error) {}

	_, stopC, err := binance.WsKlineServe(symbol, "1m", handler, errHandler)
	if err != nil {
		return nil, fmt.Errorf("binance: kline stream %s: %w", symbol, err)
	}

	return func() {
		stopC <- struct{}{}
	}, nil
}
