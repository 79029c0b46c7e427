package domain

import "time"

type EventType string

const (
	EventHack        EventType = "hack"
	EventETF         EventType = "etf"
	EventCBDC        EventType = "cbdc"
	EventEnforcement EventType = "enforcement"
	EventLegislation EventType = "legislation"
	EventRegulation  EventType = "regulation"
	EventPartnership EventType = "partnership"
	EventAdoption    EventType = "adoption"
	EventNews        EventType = "news"
)

// IsRegulatory reports whether the event type counts fully toward policy risk.
func (e EventType) IsRegulatory() bool {
	switch e {
	case EventCBDC, EventEnforcement, EventLegislation, EventRegulation:
		return true
	}
	return false
}

type SourceType string

const (
	SourceNews       SourceType = "news"
	SourceSocial     SourceType = "social"
	SourceGovernment SourceType = "government"
	SourceExchange   SourceType = "exchange"
)

type Region string

const (
	RegionUS         Region = "us"
	RegionEU         Region = "eu"
	RegionUK         Region = "uk"
	RegionChina      Region = "china"
	RegionJapan      Region = "japan"
	RegionKorea      Region = "korea"
	RegionIndia      Region = "india"
	RegionLatAm      Region = "latam"
	RegionMiddleEast Region = "middle_east"
	RegionGlobal     Region = "global"
)

type ImpactLevel string

const (
	ImpactCritical ImpactLevel = "critical"
	ImpactHigh     ImpactLevel = "high"
	ImpactMedium   ImpactLevel = "medium"
	ImpactLow      ImpactLevel = "low"
)

// Rank orders impact levels, critical highest.
func (l ImpactLevel) Rank() int {
	switch l {
	case ImpactCritical:
		return 4
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	}
	return 0
}

// NewsEvent is classified once at ingestion and never re-evaluated.
type NewsEvent struct {
	ID              string      `json:"id"`
	Timestamp       time.Time   `json:"timestamp"`
	Title           string      `json:"title"`
	URL             string      `json:"url"`
	Source          string      `json:"source"`
	EventType       EventType   `json:"event_type"`
	SourceType      SourceType  `json:"source_type"`
	Region          Region      `json:"region"`
	ImpactLevel     ImpactLevel `json:"impact_level"`
	SentimentImpact float64     `json:"sentiment_impact"`
	AffectedCoins   []string    `json:"affected_coins"`
	AffectedSectors []string    `json:"affected_sectors"`
}

// Mentions reports whether the event names symbol. Events with no coins are
// treated as market-wide.
func (e NewsEvent) Mentions(symbol string) bool {
	if len(e.AffectedCoins) == 0 {
		return true
	}
	for _, c := range e.AffectedCoins {
		if c == symbol {
			return true
		}
	}
	return false
}

// ScoredItem is one social or news item with its sentiment in [-1, 1].
type ScoredItem struct {
	Source      string    `json:"source"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Symbols     []string  `json:"symbols"`
	Score       float64   `json:"score"`
	Confidence  float64   `json:"confidence"`
	PublishedAt time.Time `json:"published_at"`
}

const (
	ItemKindNews   = "news"
	ItemKindSocial = "social"
)

// Auxiliary is collected once per run and shared read-only by all assets.
type Auxiliary struct {
	CollectedAt time.Time
	FearGreed   *FearGreed
	Items       []ScoredItem
	// Events holds the trailing 30 days, including events classified this run.
	Events     []NewsEvent
	PolicyRisk map[Region]float64
	Warnings   []string
}

type FearGreed struct {
	Value int       `json:"value"`
	Label string    `json:"label"`
	Time  time.Time `json:"time"`
}

// AssetRegions maps a symbol to the regions whose policy risk applies to it
// beyond the global one.
var AssetRegions = map[string][]Region{
	"BTC":   {RegionUS},
	"ETH":   {RegionUS, RegionEU},
	"XRP":   {RegionUS},
	"SOL":   {RegionUS},
	"ADA":   {RegionEU, RegionJapan},
	"DOGE":  {RegionUS},
	"DOT":   {RegionEU},
	"AVAX":  {RegionUS, RegionKorea},
	"LINK":  {RegionUS},
	"MATIC": {RegionIndia},
}
