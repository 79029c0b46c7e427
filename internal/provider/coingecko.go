package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider fetches tickers, batched prices and daily history from
// the CoinGecko API. Pacing is owned by the Doer, normally a HostRateLimiter.
type CoinGeckoProvider struct {
	client  Doer
	baseURL string
	apiKey  string
	tracer  trace.Tracer
}

func NewCoinGeckoProvider(client Doer, tracer trace.Tracer, apiKey string) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  orDefaultClient(client),
		baseURL: coingeckoBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		tracer:  tracer,
	}
}

// MarketTicker is one row of /coins/markets. Nil fields were null upstream.
type MarketTicker struct {
	ID           string
	Symbol       string
	Price        *float64
	MarketCap    *float64
	Volume24h    *float64
	Change24hPct *float64
	Change7dPct  *float64
	LastUpdated  time.Time
}

// FetchMarket returns the ticker for one CoinGecko id.
func (p *CoinGeckoProvider) FetchMarket(ctx context.Context, id string) (*MarketTicker, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-market")
	defer span.End()
	span.SetAttributes(attribute.String("asset", id))

	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s&price_change_percentage=24h,7d",
		p.baseURL, url.QueryEscape(id))
	body, err := p.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch market for %s: %w", id, err)
	}

	var rows []struct {
		ID           string   `json:"id"`
		Symbol       string   `json:"symbol"`
		CurrentPrice *float64 `json:"current_price"`
		MarketCap    *float64 `json:"market_cap"`
		TotalVolume  *float64 `json:"total_volume"`
		Change24h    *float64 `json:"price_change_percentage_24h_in_currency"`
		Change24hAlt *float64 `json:"price_change_percentage_24h"`
		Change7d     *float64 `json:"price_change_percentage_7d_in_currency"`
		LastUpdated  string   `json:"last_updated"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse market for %s: %w", id, err)
	}
	for _, row := range rows {
		if row.ID != id {
			continue
		}
		change24h := row.Change24h
		if change24h == nil {
			change24h = row.Change24hAlt
		}
		ticker := &MarketTicker{
			ID:           row.ID,
			Symbol:       strings.ToUpper(row.Symbol),
			Price:        row.CurrentPrice,
			MarketCap:    row.MarketCap,
			Volume24h:    row.TotalVolume,
			Change24hPct: change24h,
			Change7dPct:  row.Change7d,
		}
		if ts, err := time.Parse(time.RFC3339, row.LastUpdated); err == nil {
			ticker.LastUpdated = ts.UTC()
		}
		return ticker, nil
	}
	return nil, fmt.Errorf("market for %s: %w", id, domain.ErrNotFound)
}

// FetchPrices fetches current prices for ids in a single call, keyed by id.
// An empty ids slice means every supported asset.
func (p *CoinGeckoProvider) FetchPrices(ctx context.Context, ids []string) (map[string]*domain.PriceSnapshot, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-prices")
	defer span.End()

	if len(ids) == 0 {
		for _, a := range domain.SupportedAssets {
			ids = append(ids, a.ID)
		}
	}
	span.SetAttributes(attribute.Int("ids", len(ids)))

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true&include_24hr_change=true",
		p.baseURL, url.QueryEscape(strings.Join(ids, ",")))
	body, err := p.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	// {"bitcoin": {"usd": 97000, "usd_24h_vol": 45000000000, "usd_24h_change": 2.34}, ...}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}

	now := time.Now().Unix()
	result := make(map[string]*domain.PriceSnapshot, len(raw))
	for id, data := range raw {
		price, ok := data["usd"]
		if !ok {
			continue
		}
		symbol := id
		if a, ok := domain.LookupAsset(id); ok {
			symbol = a.Symbol
		}
		result[id] = &domain.PriceSnapshot{
			Symbol:          symbol,
			PriceUSD:        price,
			Volume24h:       data["usd_24h_vol"],
			Change24hPct:    data["usd_24h_change"],
			LastUpdatedUnix: now,
		}
	}
	return result, nil
}

// FetchDailyHistory fetches `days` of daily market_chart points and buckets
// them into daily candles, oldest first.
func (p *CoinGeckoProvider) FetchDailyHistory(ctx context.Context, asset domain.Asset, days int) ([]*domain.Candle, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-daily-history")
	defer span.End()
	span.SetAttributes(attribute.String("asset", asset.ID), attribute.Int("days", days))

	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d&interval=daily",
		p.baseURL, url.PathEscape(asset.ID), days)
	body, err := p.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch market chart for %s: %w", asset.ID, err)
	}

	var raw struct {
		Prices       [][]float64 `json:"prices"`
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse market chart for %s: %w", asset.ID, err)
	}
	return buildCandlesFromMarketChart(asset.Symbol, "1d", raw.Prices, raw.TotalVolumes), nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	return fetch(ctx, p.client, "coingecko", rawURL, map[string]string{"x-cg-demo-api-key": p.apiKey})
}

type volumePoint struct {
	ts  int64
	vol float64
}

// buildCandlesFromMarketChart constructs candles of the given interval
// from raw market_chart price/volume arrays.
func buildCandlesFromMarketChart(symbol, interval string, prices, volumes [][]float64) []*domain.Candle {
	if len(prices) == 0 {
		return nil
	}
	width := intervalToDuration(interval)
	if width == 0 {
		return nil
	}

	volPoints := make([]volumePoint, 0, len(volumes))
	for _, v := range volumes {
		if len(v) >= 2 {
			volPoints = append(volPoints, volumePoint{ts: int64(v[0]), vol: v[1]})
		}
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i][0] < prices[j][0] })

	type bucket struct {
		open, high, low, close float64
		openTime               time.Time
	}
	buckets := make(map[int64]*bucket)
	for _, pt := range prices {
		if len(pt) < 2 {
			continue
		}
		price := pt[1]
		start := time.UnixMilli(int64(pt[0])).Truncate(width).UnixMilli()

		b, ok := buckets[start]
		if !ok {
			buckets[start] = &bucket{open: price, high: price, low: price, close: price, openTime: time.UnixMilli(start)}
			continue
		}
		b.high = math.Max(b.high, price)
		b.low = math.Min(b.low, price)
		b.close = price
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	candles := make([]*domain.Candle, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		candles = append(candles, &domain.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: b.openTime.UTC(),
			Open:     b.open,
			High:     b.high,
			Low:      b.low,
			Close:    b.close,
			Volume:   findClosestVolume(volPoints, k+width.Milliseconds()),
		})
	}
	return candles
}

func findClosestVolume(volumes []volumePoint, targetMs int64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	closest := volumes[0]
	minDiff := int64(math.MaxInt64)
	for _, v := range volumes {
		diff := v.ts - targetMs
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = v
		}
	}
	return closest.vol
}

func intervalToDuration(interval string) time.Duration {
	switch interval {
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}
