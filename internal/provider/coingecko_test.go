package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func stubClient(fn func(*http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: roundTripFunc(fn)}
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func TestBuildCandlesFromMarketChartDaily(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	prices := [][]float64{
		{float64(base.Add(day).UnixMilli()), 12},
		{float64(base.UnixMilli()), 10},
		{float64(base.Add(6 * time.Hour).UnixMilli()), 11},
		{float64(base.Add(day + 3*time.Hour).UnixMilli()), 9},
	}
	volumes := [][]float64{
		{float64(base.Add(day).UnixMilli()), 100},
		{float64(base.Add(2 * day).UnixMilli()), 200},
	}

	candles := buildCandlesFromMarketChart("BTC", "1d", prices, volumes)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	first := candles[0]
	if first.Open != 10 || first.High != 11 || first.Close != 11 || first.Volume != 100 {
		t.Fatalf("unexpected first candle: %+v", first)
	}
	second := candles[1]
	if !second.OpenTime.Equal(base.Add(day)) || second.Close != 9 || second.Low != 9 || second.Volume != 200 {
		t.Fatalf("unexpected second candle: %+v", second)
	}
}

func TestFindClosestVolume(t *testing.T) {
	volumes := []volumePoint{{ts: 1000, vol: 1}, {ts: 1500, vol: 5}, {ts: 2000, vol: 10}}
	if vol := findClosestVolume(volumes, 1600); vol != 5 {
		t.Fatalf("expected volume 5, got %f", vol)
	}
	if vol := findClosestVolume(nil, 10); vol != 0 {
		t.Fatalf("expected 0 for empty volumes, got %f", vol)
	}
}

func TestCoinGeckoProviderFetchMarket(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(nil, testTracer(), "demo-key")
	provider.baseURL = "http://example"
	provider.client = stubClient(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, "/coins/markets") || req.URL.Query().Get("ids") != "bitcoin" {
			t.Errorf("unexpected request: %s", req.URL.String())
		}
		if req.Header.Get("x-cg-demo-api-key") != "demo-key" {
			t.Errorf("missing api key header")
		}
		return jsonResponse(http.StatusOK, `[{"id":"bitcoin","symbol":"btc","current_price":64000.5,"market_cap":1.2e12,
			"total_volume":3.1e10,"price_change_percentage_24h_in_currency":-1.25,
			"price_change_percentage_7d_in_currency":null,"last_updated":"2025-03-01T10:00:00Z"}]`), nil
	})

	ticker, err := provider.FetchMarket(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticker.Symbol != "BTC" || ticker.Price == nil || *ticker.Price != 64000.5 {
		t.Fatalf("unexpected ticker: %+v", ticker)
	}
	if ticker.Change24hPct == nil || *ticker.Change24hPct != -1.25 {
		t.Fatalf("unexpected 24h change: %v", ticker.Change24hPct)
	}
	if ticker.Change7dPct != nil {
		t.Fatalf("null 7d change must stay nil, got %v", *ticker.Change7dPct)
	}
}

func TestCoinGeckoProviderFetchMarketMissingRow(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(nil, testTracer(), "")
	provider.baseURL = "http://example"
	provider.client = stubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})
	if _, err := provider.FetchMarket(context.Background(), "bitcoin"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCoinGeckoProviderFetchPrices(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(nil, testTracer(), "")
	provider.baseURL = "http://example"
	provider.client = stubClient(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, "/simple/price") {
			t.Errorf("unexpected path: %s", req.URL.Path)
		}
		if got := req.URL.Query().Get("ids"); got != "bitcoin,ethereum" {
			t.Errorf("unexpected ids: %s", got)
		}
		return jsonResponse(http.StatusOK, `{"bitcoin":{"usd":100,"usd_24h_vol":10,"usd_24h_change":1.5},"ethereum":{}}`), nil
	})

	result, err := provider.FetchPrices(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, ok := result["bitcoin"]
	if !ok || snap.PriceUSD != 100 || snap.Symbol != "BTC" {
		t.Fatalf("expected bitcoin snapshot, got %+v", snap)
	}
	if _, ok := result["ethereum"]; ok {
		t.Fatal("row without usd price must be skipped")
	}
}

func TestCoinGeckoProviderFetchDailyHistory(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(24 * time.Hour)
	provider := NewCoinGeckoProvider(nil, testTracer(), "")
	provider.baseURL = "http://example"
	provider.client = stubClient(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, "/coins/bitcoin/market_chart") {
			t.Errorf("unexpected path: %s", req.URL.Path)
		}
		if req.URL.Query().Get("interval") != "daily" || req.URL.Query().Get("days") != "220" {
			t.Errorf("unexpected query: %s", req.URL.RawQuery)
		}
		body := `{"prices":[[` + ms(now.Add(-24*time.Hour)) + `,10],[` + ms(now) + `,12]],"total_volumes":[[` + ms(now) + `,100]]}`
		return jsonResponse(http.StatusOK, body), nil
	})

	btc, _ := domain.LookupAsset("bitcoin")
	candles, err := provider.FetchDailyHistory(context.Background(), btc, 220)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 || candles[0].Symbol != "BTC" || candles[1].Close != 12 {
		t.Fatalf("unexpected candles: %+v", candles)
	}
}

func TestCoinGeckoProviderStatusError(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(nil, testTracer(), "")
	provider.baseURL = "http://example"
	provider.client = stubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, "boom"), nil
	})
	_, err := provider.FetchPrices(context.Background(), nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status error, got %v", err)
	}
}

func ms(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
