package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	binanceFuturesBaseURL = "https://fapi.binance.com"
	coinglassBaseURL      = "https://open-api-v3.coinglass.com"
)

// DerivativesProvider reads perpetual futures data from Binance USDⓈ-M and
// liquidation totals from Coinglass when a key is configured.
type DerivativesProvider struct {
	client          Doer
	binanceURL      string
	coinglassURL    string
	coinglassAPIKey string
	tracer          trace.Tracer
}

func NewDerivativesProvider(client Doer, tracer trace.Tracer, coinglassURL, coinglassAPIKey string) *DerivativesProvider {
	coinglassURL = strings.TrimSpace(coinglassURL)
	if coinglassURL == "" {
		coinglassURL = coinglassBaseURL
	}
	return &DerivativesProvider{
		client:          orDefaultClient(client),
		binanceURL:      binanceFuturesBaseURL,
		coinglassURL:    strings.TrimRight(coinglassURL, "/"),
		coinglassAPIKey: strings.TrimSpace(coinglassAPIKey),
		tracer:          tracer,
	}
}

// FetchFundingRate returns the last funding rate as a percentage.
func (p *DerivativesProvider) FetchFundingRate(ctx context.Context, pair string) (*FundingRate, error) {
	ctx, span := p.tracer.Start(ctx, "binance.fetch-funding-rate")
	defer span.End()
	span.SetAttributes(attribute.String("pair", pair))

	u := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=%s", p.binanceURL, url.QueryEscape(pair))
	body, err := fetch(ctx, p.client, "binance", u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch funding for %s: %w", pair, err)
	}

	var payload struct {
		Symbol          string `json:"symbol"`
		MarkPrice       string `json:"markPrice"`
		LastFundingRate string `json:"lastFundingRate"`
		NextFundingTime int64  `json:"nextFundingTime"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode premium index: %w", err)
	}
	rate, err := parseNumber("lastFundingRate", payload.LastFundingRate)
	if err != nil {
		return nil, fmt.Errorf("premium index for %s: %w", pair, err)
	}
	mark, err := parseNumber("markPrice", payload.MarkPrice)
	if err != nil {
		return nil, fmt.Errorf("premium index for %s: %w", pair, err)
	}
	return &FundingRate{
		Symbol:      payload.Symbol,
		RatePercent: rate * 100,
		MarkPrice:   mark,
		NextFunding: time.UnixMilli(payload.NextFundingTime).UTC(),
	}, nil
}

// FetchOpenInterestHistory returns hourly open interest in USD, oldest first.
func (p *DerivativesProvider) FetchOpenInterestHistory(ctx context.Context, pair string, hours int) ([]OpenInterestPoint, error) {
	ctx, span := p.tracer.Start(ctx, "binance.fetch-open-interest")
	defer span.End()
	span.SetAttributes(attribute.String("pair", pair))

	if hours <= 0 {
		hours = 25
	}
	u := fmt.Sprintf("%s/futures/data/openInterestHist?symbol=%s&period=1h&limit=%d", p.binanceURL, url.QueryEscape(pair), hours)
	body, err := fetch(ctx, p.client, "binance", u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch open interest for %s: %w", pair, err)
	}

	var rows []struct {
		SumOpenInterestValue string `json:"sumOpenInterestValue"`
		Timestamp            int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode open interest: %w", err)
	}
	points := make([]OpenInterestPoint, 0, len(rows))
	for _, r := range rows {
		value, err := parseNumber("sumOpenInterestValue", r.SumOpenInterestValue)
		if err != nil || r.Timestamp <= 0 {
			continue
		}
		points = append(points, OpenInterestPoint{Time: time.UnixMilli(r.Timestamp).UTC(), ValueUSD: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

// FetchLiquidations24h returns total long+short liquidations in USD.
func (p *DerivativesProvider) FetchLiquidations24h(ctx context.Context, symbol string) (float64, error) {
	ctx, span := p.tracer.Start(ctx, "coinglass.fetch-liquidations")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	if p.coinglassAPIKey == "" {
		return 0, fmt.Errorf("coinglass: %w", ErrProviderNotConfigured)
	}
	u := fmt.Sprintf("%s/api/futures/liquidation/coin-list?symbol=%s", p.coinglassURL, url.QueryEscape(strings.ToUpper(symbol)))
	body, err := fetch(ctx, p.client, "coinglass", u, map[string]string{"CG-API-KEY": p.coinglassAPIKey})
	if err != nil {
		return 0, fmt.Errorf("fetch liquidations for %s: %w", symbol, err)
	}

	var payload struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Symbol                 string `json:"symbol"`
			LiquidationUSD24h      number `json:"liquidation_usd_24h"`
			LongLiquidationUSD24h  number `json:"long_liquidation_usd_24h"`
			ShortLiquidationUSD24h number `json:"short_liquidation_usd_24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode liquidations: %w", err)
	}
	if payload.Code != "" && payload.Code != "0" {
		return 0, fmt.Errorf("coinglass error %s: %s", payload.Code, payload.Msg)
	}
	for _, row := range payload.Data {
		if !strings.EqualFold(row.Symbol, symbol) {
			continue
		}
		if total, ok := row.LiquidationUSD24h.Value(); ok && total > 0 {
			return total, nil
		}
		m, err := requireAll("coinglass "+symbol,
			namedNumber{"long_liquidation_usd_24h", row.LongLiquidationUSD24h},
			namedNumber{"short_liquidation_usd_24h", row.ShortLiquidationUSD24h},
		)
		if err != nil {
			return 0, err
		}
		return m["long_liquidation_usd_24h"] + m["short_liquidation_usd_24h"], nil
	}
	return 0, fmt.Errorf("coinglass has no liquidation row for %s", symbol)
}
