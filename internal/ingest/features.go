package ingest

import "market-pulse/internal/domain"

// TrainingRecordFor flattens a snapshot's present signals into numeric
// features. Labels are encoded +1 for the bullish reading, -1 for the
// bearish one and 0 otherwise. Absent signals are left out.
func TrainingRecordFor(s *domain.Snapshot) domain.TrainingRecord {
	f := make(map[string]float64, 40)
	num := func(name string, v *float64) {
		if v != nil {
			f[name] = *v
		}
	}
	integer := func(name string, v *int) {
		if v != nil {
			f[name] = float64(*v)
		}
	}
	label := func(name string, bull, bear bool) {
		switch {
		case bull:
			f[name] = 1
		case bear:
			f[name] = -1
		default:
			f[name] = 0
		}
	}

	num("price", s.Price)
	num("change_24h_pct", s.Change24hPct)
	num("change_7d_pct", s.Change7dPct)
	num("volume_24h", s.Volume24h)
	num("market_cap", s.MarketCap)

	num("rsi_14", s.RSI14)
	num("macd_histogram", s.MACDHistogram)
	num("ma_50", s.MA50)
	num("ma_200", s.MA200)
	num("price_volume_correlation", s.PriceVolumeCorrelation)
	if v := s.MACDCross; v != nil {
		label("macd_cross", *v == domain.MACDBullish, *v == domain.MACDBearish)
	}
	if v := s.MA50Position; v != nil && *v != domain.MAUnknown {
		label("ma_50_position", *v == domain.MAAbove, *v == domain.MABelow)
	}
	if v := s.MA200Position; v != nil && *v != domain.MAUnknown {
		label("ma_200_position", *v == domain.MAAbove, *v == domain.MABelow)
	}
	if v := s.BollingerPosition; v != nil {
		label("bollinger_position", *v == domain.BandBelow, *v == domain.BandAbove)
	}

	integer("fear_greed_index", s.FearGreedIndex)
	num("sentiment_social_score", s.SentimentSocialScore)
	num("sentiment_news_score", s.SentimentNewsScore)

	integer("news_event_count_24h", s.NewsEventCount24h)
	num("news_sentiment", s.NewsSentiment)
	integer("critical_event_count", s.CriticalEventCount)
	num("adoption_score", s.AdoptionScore)
	num("policy_risk_score", s.PolicyRiskScore)

	num("exchange_net_flow", s.ExchangeNetFlow)
	num("network_activity_score", s.NetworkActivityScore)
	if v := s.ExchangeFlow; v != nil {
		label("exchange_flow", *v == domain.FlowOutflow, *v == domain.FlowInflow)
	}
	if v := s.WhaleActivity; v != nil {
		label("whale_activity", *v == domain.WhaleAccumulation, *v == domain.WhaleDistribution)
	}
	if v := s.SmartMoneyTrend; v != nil {
		label("smart_money_trend", *v == domain.SmartMoneyAccumulating, *v == domain.SmartMoneyDistributing)
	}

	num("vix", s.VIX)
	num("dxy", s.DXY)
	num("policy_rate", s.PolicyRate)
	if v := s.RiskEnvironment; v != nil {
		label("risk_environment", *v == domain.RiskOn, *v == domain.RiskOff)
	}

	num("funding_rate", s.FundingRate)
	num("open_interest_change_24h", s.OpenInterestChange24h)
	num("liquidations_24h", s.Liquidations24h)

	integer("bullish_score", s.BullishScore)
	integer("bearish_score", s.BearishScore)
	integer("confidence", s.Confidence)

	rec := domain.TrainingRecord{
		SnapshotID: s.ID,
		AssetID:    s.AssetID,
		Features:   f,
		CreatedAt:  s.Timestamp,
	}
	if s.Price != nil {
		rec.PriceAtSnapshot = *s.Price
	}
	return rec
}
