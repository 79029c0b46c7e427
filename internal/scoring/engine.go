// Package scoring fuses a snapshot's signals into a direction, confidence
// and risk tier with a fixed weighted-sum model.
package scoring

import (
	"fmt"

	"market-pulse/internal/domain"
)

const (
	minConfidence = 30
	maxConfidence = 95
	maxReasons    = 3
)

type Side string

const (
	Bullish Side = "bullish"
	Bearish Side = "bearish"
)

// Factor is one rule that fired.
type Factor struct {
	Rule   string `json:"rule"`
	Side   Side   `json:"side"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

type Result struct {
	Direction  domain.Direction `json:"direction"`
	Confidence int              `json:"confidence"`
	RiskLevel  domain.RiskLevel `json:"risk_level"`
	Reasons    []string         `json:"reasons"`
	Bullish    int              `json:"bullish_score"`
	Bearish    int              `json:"bearish_score"`
	Factors    []Factor         `json:"factors"`
}

// ApplyTo writes the scoring fields of s.
func (r Result) ApplyTo(s *domain.Snapshot) {
	dir, risk := r.Direction, r.RiskLevel
	conf, bull, bear := r.Confidence, r.Bullish, r.Bearish
	s.Prediction = &dir
	s.Confidence = &conf
	s.RiskLevel = &risk
	s.Reasons = append([]string(nil), r.Reasons...)
	s.BullishScore = &bull
	s.BearishScore = &bear
}

type Engine struct {
	weights    Weights
	thresholds Thresholds
}

func NewEngine(weights Weights, thresholds Thresholds) *Engine {
	return &Engine{weights: weights, thresholds: thresholds}
}

func NewDefaultEngine() *Engine {
	return NewEngine(DefaultWeights(), DefaultThresholds())
}

type tally struct {
	factors []Factor
}

func (t *tally) add(rule string, side Side, points int, reason string) {
	if points == 0 {
		return
	}
	t.factors = append(t.factors, Factor{Rule: rule, Side: side, Points: points, Reason: reason})
}

// Score is deterministic. Absent signals add nothing to either side.
func (e *Engine) Score(s *domain.Snapshot) Result {
	w, th := e.weights, e.thresholds
	t := &tally{}

	if s.RSI14 != nil {
		switch {
		case *s.RSI14 < th.RSIOversold:
			t.add("rsi", Bullish, w.RSI, fmt.Sprintf("RSI oversold (<%g)", th.RSIOversold))
		case *s.RSI14 > th.RSIOverbought:
			t.add("rsi", Bearish, w.RSI, fmt.Sprintf("RSI overbought (>%g)", th.RSIOverbought))
		}
	}
	if s.MACDCross != nil {
		switch *s.MACDCross {
		case domain.MACDBullish:
			t.add("macd", Bullish, w.MACD, "MACD bullish cross")
		case domain.MACDBearish:
			t.add("macd", Bearish, w.MACD, "MACD bearish cross")
		}
	}
	if s.MA200Position != nil {
		switch *s.MA200Position {
		case domain.MAAbove:
			t.add("ma200", Bullish, w.MA200, "Price above 200-day MA")
		case domain.MABelow:
			t.add("ma200", Bearish, w.MA200, "Price below 200-day MA")
		}
	}
	if s.MA50Position != nil {
		switch *s.MA50Position {
		case domain.MAAbove:
			t.add("ma50", Bullish, w.MA50, "Price above 50-day MA")
		case domain.MABelow:
			t.add("ma50", Bearish, w.MA50, "Price below 50-day MA")
		}
	}
	if s.BollingerPosition != nil {
		switch *s.BollingerPosition {
		case domain.BandBelow:
			t.add("bollinger", Bullish, w.Bollinger, "Price below lower Bollinger band")
		case domain.BandAbove:
			t.add("bollinger", Bearish, w.Bollinger, "Price above upper Bollinger band")
		}
	}
	if s.FearGreedIndex != nil {
		switch {
		case *s.FearGreedIndex < th.ExtremeFear:
			t.add("fear_greed", Bullish, w.FearGreed, fmt.Sprintf("Extreme fear (<%d), contrarian buy", th.ExtremeFear))
		case *s.FearGreedIndex > th.ExtremeGreed:
			t.add("fear_greed", Bearish, w.FearGreed, fmt.Sprintf("Extreme greed (>%d), contrarian sell", th.ExtremeGreed))
		}
	}
	if s.SentimentSocialScore != nil {
		switch {
		case *s.SentimentSocialScore > th.SocialSentiment:
			t.add("social", Bullish, w.Social, "Positive social sentiment")
		case *s.SentimentSocialScore < -th.SocialSentiment:
			t.add("social", Bearish, w.Social, "Negative social sentiment")
		}
	}
	if s.SentimentNewsScore != nil {
		switch {
		case *s.SentimentNewsScore > th.NewsSentiment:
			t.add("news", Bullish, w.News, "Positive news sentiment")
		case *s.SentimentNewsScore < -th.NewsSentiment:
			t.add("news", Bearish, w.News, "Negative news sentiment")
		}
	}
	if s.PolicyRiskScore != nil && *s.PolicyRiskScore > th.PolicyRisk {
		t.add("policy_risk", Bearish, w.PolicyRisk, fmt.Sprintf("High policy risk (>%g)", th.PolicyRisk))
	}
	if s.ExchangeFlow != nil {
		switch *s.ExchangeFlow {
		case domain.FlowOutflow:
			t.add("exchange_flow", Bullish, w.ExchangeFlow, "Exchange outflows")
		case domain.FlowInflow:
			t.add("exchange_flow", Bearish, w.ExchangeFlow, "Exchange inflows")
		}
	}
	if s.WhaleActivity != nil {
		switch *s.WhaleActivity {
		case domain.WhaleAccumulation:
			t.add("whale", Bullish, w.Whale, "Whale accumulation")
		case domain.WhaleDistribution:
			t.add("whale", Bearish, w.Whale, "Whale distribution")
		}
	}
	if s.SmartMoneyTrend != nil {
		switch *s.SmartMoneyTrend {
		case domain.SmartMoneyAccumulating:
			t.add("smart_money", Bullish, w.SmartMoney, "Smart money accumulating")
		case domain.SmartMoneyDistributing:
			t.add("smart_money", Bearish, w.SmartMoney, "Smart money distributing")
		}
	}
	if s.VIX != nil && *s.VIX > th.VIXElevated {
		t.add("vix", Bearish, w.VIX, fmt.Sprintf("Elevated VIX (>%g)", th.VIXElevated))
	}
	if s.RiskEnvironment != nil {
		switch *s.RiskEnvironment {
		case domain.RiskOn:
			t.add("risk_environment", Bullish, w.RiskEnvironment, "Risk-on macro environment")
		case domain.RiskOff:
			t.add("risk_environment", Bearish, w.RiskEnvironment, "Risk-off macro environment")
		}
	}
	if s.FundingRate != nil {
		switch {
		case *s.FundingRate < th.FundingLow:
			t.add("funding", Bullish, w.Funding, "Negative funding rate")
		case *s.FundingRate > th.FundingHigh:
			t.add("funding", Bearish, w.Funding, "Elevated funding rate")
		}
	}

	res := Result{Factors: t.factors, RiskLevel: e.riskLevel(s.VIX)}
	for _, f := range t.factors {
		if f.Side == Bullish {
			res.Bullish += f.Points
		} else {
			res.Bearish += f.Points
		}
		if len(res.Reasons) < maxReasons {
			res.Reasons = append(res.Reasons, f.Reason)
		}
	}

	diff := res.Bullish - res.Bearish
	switch {
	case diff > th.Direction:
		res.Direction = domain.DirectionBullish
	case diff < -th.Direction:
		res.Direction = domain.DirectionBearish
	default:
		res.Direction = domain.DirectionNeutral
	}
	res.Confidence = confidence(diff)
	return res
}

// confidence is the absolute spread offset by the floor, capped at 95.
func confidence(diff int) int {
	if diff < 0 {
		diff = -diff
	}
	return min(maxConfidence, max(minConfidence, diff+minConfidence))
}

func (e *Engine) riskLevel(vix *float64) domain.RiskLevel {
	if vix == nil {
		return domain.RiskMedium
	}
	th := e.thresholds
	switch {
	case *vix > th.RiskExtremeVIX:
		return domain.RiskExtreme
	case *vix > th.RiskHighVIX:
		return domain.RiskHigh
	case *vix < th.RiskLowVIX:
		return domain.RiskLow
	}
	return domain.RiskMedium
}
