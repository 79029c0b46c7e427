package provider

import "time"

type FearGreedPoint struct {
	Value            int
	Classification   string
	Timestamp        time.Time
	TimeUntilUpdateS int
}

// ContentItem is one raw article or post before classification.
type ContentItem struct {
	Source       string
	SourceItemID string
	Title        string
	URL          string
	Excerpt      string
	Author       string
	PublishedAt  time.Time
	Metadata     map[string]any
}

type NetworkActivity struct {
	ProviderKey string
	Symbol      string
	Score       float64
	Confidence  float64
	Metrics     map[string]float64
}

// FlowPoint is one daily exchange-flow observation.
type FlowPoint struct {
	Date  time.Time
	Value float64
}

// MacroQuote is the latest close of a market index.
type MacroQuote struct {
	Symbol string
	Value  float64
	AsOf   time.Time
}

type FundingRate struct {
	Symbol      string
	RatePercent float64
	MarkPrice   float64
	NextFunding time.Time
}

type OpenInterestPoint struct {
	Time     time.Time
	ValueUSD float64
}
