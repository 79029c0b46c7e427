package domain

import "time"

// Direction is the ternary forecast label produced by the scoring engine.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
	DirectionNeutral Direction = "NEUTRAL"
)

// RiskLevel is derived from VIX only and is independent of direction.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskExtreme:
		return true
	}
	return false
}

// SignalDomain names one collector family.
type SignalDomain string

const (
	DomainMarket      SignalDomain = "market"
	DomainTechnical   SignalDomain = "technical"
	DomainSentiment   SignalDomain = "sentiment"
	DomainNews        SignalDomain = "news"
	DomainOnChain     SignalDomain = "onchain"
	DomainMacro       SignalDomain = "macro"
	DomainDerivatives SignalDomain = "derivatives"
)

// DomainOrder is the order bundles are applied to a snapshot.
var DomainOrder = []SignalDomain{
	DomainMarket,
	DomainTechnical,
	DomainSentiment,
	DomainNews,
	DomainOnChain,
	DomainMacro,
	DomainDerivatives,
}

type MACDCross string

const (
	MACDBullish MACDCross = "bullish"
	MACDBearish MACDCross = "bearish"
	MACDNeutral MACDCross = "neutral"
)

type MAPosition string

const (
	MAAbove   MAPosition = "above"
	MABelow   MAPosition = "below"
	MAUnknown MAPosition = "unknown"
)

type BandPosition string

const (
	BandAbove  BandPosition = "above"
	BandBelow  BandPosition = "below"
	BandMiddle BandPosition = "middle"
)

type ExchangeFlow string

const (
	FlowInflow  ExchangeFlow = "inflow"
	FlowOutflow ExchangeFlow = "outflow"
	FlowNeutral ExchangeFlow = "neutral"
)

type WhaleActivity string

const (
	WhaleAccumulation WhaleActivity = "accumulation"
	WhaleDistribution WhaleActivity = "distribution"
	WhaleNeutral      WhaleActivity = "neutral"
)

type SmartMoneyTrend string

const (
	SmartMoneyAccumulating SmartMoneyTrend = "accumulating"
	SmartMoneyDistributing SmartMoneyTrend = "distributing"
	SmartMoneyNeutral      SmartMoneyTrend = "neutral"
)

type RiskEnvironment string

const (
	RiskOn         RiskEnvironment = "risk_on"
	RiskOff        RiskEnvironment = "risk_off"
	RiskEnvNeutral RiskEnvironment = "neutral"
)

// Bundle is one domain's collected signals. ApplyTo copies the bundle into
// the snapshot's flattened fields.
type Bundle interface {
	Domain() SignalDomain
	ApplyTo(s *Snapshot)
}

type MarketSignals struct {
	Price        *float64 `json:"price,omitempty"`
	Change24hPct *float64 `json:"change_24h_pct,omitempty"`
	Change7dPct  *float64 `json:"change_7d_pct,omitempty"`
	Volume24h    *float64 `json:"volume_24h,omitempty"`
	MarketCap    *float64 `json:"market_cap,omitempty"`
}

func (MarketSignals) Domain() SignalDomain  { return DomainMarket }
func (b MarketSignals) ApplyTo(s *Snapshot) { s.MarketSignals = b }
func (b MarketSignals) Available() bool     { return b.Price != nil }

type TechnicalSignals struct {
	RSI14                  *float64      `json:"rsi_14,omitempty"`
	MACDCross              *MACDCross    `json:"macd_cross,omitempty"`
	MACDHistogram          *float64      `json:"macd_histogram,omitempty"`
	MA50                   *float64      `json:"ma_50,omitempty"`
	MA200                  *float64      `json:"ma_200,omitempty"`
	MA50Position           *MAPosition   `json:"ma_50_position,omitempty"`
	MA200Position          *MAPosition   `json:"ma_200_position,omitempty"`
	BollingerPosition      *BandPosition `json:"bollinger_position,omitempty"`
	PriceVolumeCorrelation *float64      `json:"price_volume_correlation,omitempty"`
}

func (TechnicalSignals) Domain() SignalDomain  { return DomainTechnical }
func (b TechnicalSignals) ApplyTo(s *Snapshot) { s.TechnicalSignals = b }

type SentimentSignals struct {
	FearGreedIndex       *int     `json:"fear_greed_index,omitempty"`
	FearGreedLabel       *string  `json:"fear_greed_label,omitempty"`
	SentimentSocialScore *float64 `json:"sentiment_social_score,omitempty"`
	SentimentNewsScore   *float64 `json:"sentiment_news_score,omitempty"`
	SentimentSampleSize  *int     `json:"sentiment_sample_size,omitempty"`
}

func (SentimentSignals) Domain() SignalDomain  { return DomainSentiment }
func (b SentimentSignals) ApplyTo(s *Snapshot) { s.SentimentSignals = b }

type NewsSignals struct {
	NewsEventCount24h  *int       `json:"news_event_count_24h,omitempty"`
	NewsSentiment      *float64   `json:"news_sentiment,omitempty"`
	DominantEventType  *EventType `json:"dominant_event_type,omitempty"`
	CriticalEventCount *int       `json:"critical_event_count,omitempty"`
	AdoptionScore      *float64   `json:"adoption_score,omitempty"`
	PolicyRiskScore    *float64   `json:"policy_risk_score,omitempty"`
}

func (NewsSignals) Domain() SignalDomain  { return DomainNews }
func (b NewsSignals) ApplyTo(s *Snapshot) { s.NewsSignals = b }

type OnChainSignals struct {
	ExchangeNetFlow      *float64         `json:"exchange_net_flow,omitempty"`
	ExchangeFlow         *ExchangeFlow    `json:"exchange_flow,omitempty"`
	WhaleActivity        *WhaleActivity   `json:"whale_activity,omitempty"`
	SmartMoneyTrend      *SmartMoneyTrend `json:"smart_money_trend,omitempty"`
	NetworkActivityScore *float64         `json:"network_activity_score,omitempty"`
}

func (OnChainSignals) Domain() SignalDomain  { return DomainOnChain }
func (b OnChainSignals) ApplyTo(s *Snapshot) { s.OnChainSignals = b }

type MacroSignals struct {
	VIX             *float64         `json:"vix,omitempty"`
	DXY             *float64         `json:"dxy,omitempty"`
	PolicyRate      *float64         `json:"policy_rate,omitempty"`
	RiskEnvironment *RiskEnvironment `json:"risk_environment,omitempty"`
}

func (MacroSignals) Domain() SignalDomain  { return DomainMacro }
func (b MacroSignals) ApplyTo(s *Snapshot) { s.MacroSignals = b }

type DerivativesSignals struct {
	FundingRate           *float64 `json:"funding_rate,omitempty"` // percent per funding interval
	OpenInterestChange24h *float64 `json:"open_interest_change_24h,omitempty"`
	Liquidations24h       *float64 `json:"liquidations_24h,omitempty"`
}

func (DerivativesSignals) Domain() SignalDomain  { return DomainDerivatives }
func (b DerivativesSignals) ApplyTo(s *Snapshot) { s.DerivativesSignals = b }

// Snapshot is one fused record for an asset at one point in time. Only the
// realized-outcome block is written after creation.
type Snapshot struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	AssetID   string    `json:"asset_id"`
	Symbol    string    `json:"symbol"`

	MarketSignals
	TechnicalSignals
	SentimentSignals
	NewsSignals
	OnChainSignals
	MacroSignals
	DerivativesSignals

	Prediction   *Direction `json:"prediction,omitempty"`
	Confidence   *int       `json:"confidence,omitempty"`
	RiskLevel    *RiskLevel `json:"risk_level,omitempty"`
	Reasons      []string   `json:"reasons,omitempty"`
	BullishScore *int       `json:"bullish_score,omitempty"`
	BearishScore *int       `json:"bearish_score,omitempty"`

	PriceAfter24h  *float64 `json:"price_after_24h,omitempty"`
	PriceAfter7d   *float64 `json:"price_after_7d,omitempty"`
	ActualImpact   *float64 `json:"actual_impact,omitempty"`
	Accuracy       *int     `json:"accuracy,omitempty"`
	ActualImpact7d *float64 `json:"actual_impact_7d,omitempty"`
	Accuracy7d     *int     `json:"accuracy_7d,omitempty"`
}

// Horizon selects which realized-outcome columns a backfill writes.
type Horizon string

const (
	Horizon24h Horizon = "24h"
	Horizon7d  Horizon = "7d"
)

func (h Horizon) Duration() time.Duration {
	if h == Horizon7d {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// RealizedOutcome is the only mutation a snapshot accepts after scoring.
type RealizedOutcome struct {
	SnapshotID   string
	Horizon      Horizon
	PriceAfter   float64
	ActualImpact float64
	Accuracy     int
}

type TrainingRecord struct {
	SnapshotID      string             `json:"snapshot_id"`
	AssetID         string             `json:"asset_id"`
	Features        map[string]float64 `json:"features"`
	PriceAtSnapshot float64            `json:"price_at_snapshot"`
	CreatedAt       time.Time          `json:"created_at"`
}

type RunType string

const (
	RunFull  RunType = "full"
	RunQuick RunType = "quick"
)

type RunOptions struct {
	Type              RunType  `json:"type"`
	Coins             []string `json:"coins"`
	SkipPrediction    bool     `json:"skip_prediction"`
	StoreTrainingData bool     `json:"store_training_data"`
}

type RunState string

const (
	StateIdle                RunState = "idle"
	StateCollectingAuxiliary RunState = "collecting_auxiliary"
	StatePerAssetLoop        RunState = "per_asset_loop"
	StatePersisting          RunState = "persisting"
	StateDone                RunState = "done"
	StatePartialFailure      RunState = "partial_failure"
)

type BackfillResult struct {
	Updated int `json:"updated_count"`
	Errors  int `json:"error_count"`
}

type RunResult struct {
	RunID            string         `json:"run_id"`
	Success          bool           `json:"success"`
	State            RunState       `json:"state"`
	SnapshotsCreated int            `json:"snapshots_created"`
	TrainingRecords  int            `json:"training_records"`
	Backfill         BackfillResult `json:"backfill"`
	Warnings         []string       `json:"warnings,omitempty"`
	Errors           []string       `json:"errors"`
	DurationMs       int64          `json:"duration_ms"`
}
