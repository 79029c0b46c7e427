package collector

import (
	"context"
	"fmt"

	"market-pulse/internal/domain"
	"market-pulse/internal/ta"

	"go.opentelemetry.io/otel/trace"
)

const (
	historyDays       = 220
	rsiPeriod         = 14
	bollingerPeriod   = 20
	bollingerStdDevs  = 2.0
	correlationWindow = 30
)

type HistorySource interface {
	FetchDailyHistory(ctx context.Context, asset domain.Asset, days int) ([]*domain.Candle, error)
}

// TechnicalCollector derives indicators from daily closes.
type TechnicalCollector struct {
	source HistorySource
	tracer trace.Tracer
}

func NewTechnicalCollector(source HistorySource, tracer trace.Tracer) *TechnicalCollector {
	return &TechnicalCollector{source: source, tracer: tracer}
}

func (c *TechnicalCollector) Domain() domain.SignalDomain { return domain.DomainTechnical }

func (c *TechnicalCollector) Collect(ctx context.Context, req Request) (domain.Bundle, error) {
	ctx, span := c.tracer.Start(ctx, "collector.technical")
	defer span.End()

	candles, err := c.source.FetchDailyHistory(ctx, req.Asset, historyDays)
	if err != nil {
		return nil, err
	}
	closes := domain.Closes(candles)
	if len(closes) < 2 {
		return nil, fmt.Errorf("technical history for %s has %d closes", req.Asset.ID, len(closes))
	}
	return Technicals(closes, domain.Volumes(candles)), nil
}

// Technicals computes the technical bundle from oldest-first closes and
// matching volumes. Indicators without enough history stay nil.
func Technicals(closes, volumes []float64) domain.TechnicalSignals {
	var out domain.TechnicalSignals
	price := closes[len(closes)-1]

	if rsi, ok := ta.RSI(closes, rsiPeriod); ok {
		out.RSI14 = ptr(rsi)
	}

	macdLine, signalLine := ta.MACDSeries(closes)
	macd, okM := ta.Last(macdLine)
	signal, okS := ta.Last(signalLine)
	if okM && okS {
		hist := macd - signal
		cross := domain.MACDNeutral
		switch {
		case hist > 0:
			cross = domain.MACDBullish
		case hist < 0:
			cross = domain.MACDBearish
		}
		out.MACDCross = ptr(cross)
		out.MACDHistogram = ptr(hist)
	}

	out.MA50, out.MA50Position = maPosition(closes, 50, price)
	out.MA200, out.MA200Position = maPosition(closes, 200, price)

	if band, ok := ta.Bollinger(closes, bollingerPeriod, bollingerStdDevs); ok {
		pos := domain.BandMiddle
		switch {
		case price > band.Upper:
			pos = domain.BandAbove
		case price < band.Lower:
			pos = domain.BandBelow
		}
		out.BollingerPosition = ptr(pos)
	}

	if len(volumes) == len(closes) {
		n := min(correlationWindow, len(closes))
		if r, ok := ta.PearsonCorrelation(closes[len(closes)-n:], volumes[len(volumes)-n:]); ok {
			out.PriceVolumeCorrelation = ptr(r)
		}
	}
	return out
}

func maPosition(closes []float64, period int, price float64) (*float64, *domain.MAPosition) {
	ma, ok := ta.SMA(closes, period)
	if !ok {
		return nil, ptr(domain.MAUnknown)
	}
	pos := domain.MABelow
	if price > ma {
		pos = domain.MAAbove
	}
	return ptr(ma), ptr(pos)
}
