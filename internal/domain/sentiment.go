package domain

import "time"

// SentimentLabel classifies an aggregate sentiment score.
type SentimentLabel string

const (
	SentimentBullish SentimentLabel = "BULLISH"
	SentimentBearish SentimentLabel = "BEARISH"
	SentimentNeutral SentimentLabel = "NEUTRAL"
)

// Headline is one news item scored for sentiment.
type Headline struct {
	Title       string
	Source      string
	PublishedAt time.Time
	Score       float64 // -1..1
}

// SentimentAnalysis is the aggregate view over recent headlines.
type SentimentAnalysis struct {
	Score      float64 // -1..1, age-decay weighted
	Label      SentimentLabel
	Confidence float64 // 0-100
	Headlines  []Headline
	FetchedAt  time.Time
}
