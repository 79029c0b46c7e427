package domain

import "time"

// Candle represents a single OHLCV candle for an asset at a given interval.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// PriceSnapshot represents the latest price data for an asset.
type PriceSnapshot struct {
	Symbol          string  `json:"symbol"`
	PriceUSD        float64 `json:"price_usd"`
	Volume24h       float64 `json:"volume_24h"`
	Change24hPct    float64 `json:"change_24h_pct"`
	LastUpdatedUnix int64   `json:"last_updated_unix"`
}

// Closes returns the close prices of candles in their given order.
func Closes(candles []*Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c == nil {
			continue
		}
		out = append(out, c.Close)
	}
	return out
}

// Volumes returns the volumes of candles in their given order.
func Volumes(candles []*Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c == nil {
			continue
		}
		out = append(out, c.Volume)
	}
	return out
}
