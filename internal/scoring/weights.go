package scoring

// Weights holds the points each rule adds to the bullish or bearish side.
type Weights struct {
	RSI             int
	MACD            int
	MA200           int
	MA50            int
	Bollinger       int
	FearGreed       int
	Social          int
	News            int
	PolicyRisk      int
	ExchangeFlow    int
	Whale           int
	SmartMoney      int
	VIX             int
	RiskEnvironment int
	Funding         int
}

func DefaultWeights() Weights {
	return Weights{
		RSI:             15,
		MACD:            10,
		MA200:           10,
		MA50:            5,
		Bollinger:       8,
		FearGreed:       12,
		Social:          8,
		News:            6,
		PolicyRisk:      8,
		ExchangeFlow:    10,
		Whale:           12,
		SmartMoney:      8,
		VIX:             8,
		RiskEnvironment: 5,
		Funding:         10,
	}
}

// Thresholds are the trigger levels the rules compare against.
type Thresholds struct {
	RSIOversold     float64
	RSIOverbought   float64
	ExtremeFear     int
	ExtremeGreed    int
	SocialSentiment float64
	NewsSentiment   float64
	PolicyRisk      float64
	VIXElevated     float64
	FundingLow      float64
	FundingHigh     float64
	// Direction is the bullish minus bearish spread needed to leave NEUTRAL.
	Direction int

	RiskExtremeVIX float64
	RiskHighVIX    float64
	RiskLowVIX     float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:     30,
		RSIOverbought:   70,
		ExtremeFear:     25,
		ExtremeGreed:    75,
		SocialSentiment: 30,
		NewsSentiment:   30,
		PolicyRisk:      70,
		VIXElevated:     30,
		FundingLow:      -0.01,
		FundingHigh:     0.05,
		Direction:       20,
		RiskExtremeVIX:  40,
		RiskHighVIX:     30,
		RiskLowVIX:      15,
	}
}
