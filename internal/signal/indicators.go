package signal

import (
	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/intellidex/cryptobot/internal/domain"
)

// Indicators is the technical snapshot feeding prediction generation.
type Indicators struct {
	RSI           float64
	MACD          float64
	MACDHistogram float64
	SMA20         float64
}

// minCandles is what the slowest indicator (MACD 12/26 with a 9-bar
// signal) needs to produce a meaningful value.
const minCandles = 35

// newTimeSeries converts candles into a techan series.
func newTimeSeries(candles []domain.Candle) *techan.TimeSeries {
	series := techan.NewTimeSeries()
	for _, c := range candles {
		period := techan.NewTimePeriod(c.OpenTime, c.CloseTime.Sub(c.OpenTime))
		candle := techan.NewCandle(period)
		candle.OpenPrice = big.NewDecimal(c.Open)
		candle.ClosePrice = big.NewDecimal(c.Close)
		candle.MaxPrice = big.NewDecimal(c.High)
		candle.MinPrice = big.NewDecimal(c.Low)
		candle.Volume = big.NewDecimal(c.Volume)
		series.AddCandle(candle)
	}
	return series
}

// ComputeIndicators evaluates RSI(14), MACD(12/26/9) and SMA(20) on
// the latest bar. It returns ok=false when there is not enough data.
func ComputeIndicators(candles []domain.Candle) (Indicators, bool) {
	if len(candles) < minCandles {
		return Indicators{}, false
	}

	series := newTimeSeries(candles)
	closePrices := techan.NewClosePriceIndicator(series)
	last := series.LastIndex()

	rsi := techan.NewRelativeStrengthIndexIndicator(closePrices, 14)
	macd := techan.NewMACDIndicator(closePrices, 12, 26)
	macdHist := techan.NewMACDHistogramIndicator(macd, 9)
	sma := techan.NewSimpleMovingAverage(closePrices, 20)

	return Indicators{
		RSI:           rsi.Calculate(last).Float(),
		MACD:          macd.Calculate(last).Float(),
		MACDHistogram: macdHist.Calculate(last).Float(),
		SMA20:         sma.Calculate(last).Float(),
	}, true
}

// intervalFor picks a candle timeframe roughly matching a prediction
// horizon so the indicators look at the right scale.
func intervalFor(horizonMinutes int) domain.Interval {
	switch {
	case horizonMinutes <= 60:
		return domain.Interval5m
	case horizonMinutes <= 720:
		return domain.Interval1h
	case horizonMinutes <= 1440:
		return domain.Interval4h
	default:
		return domain.Interval1d
	}
}
