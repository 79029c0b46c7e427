package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	yahooBaseURL = "https://query1.finance.yahoo.com"
	fredBaseURL  = "https://api.stlouisfed.org"

	SymbolVIX = "^VIX"
	SymbolDXY = "DX-Y.NYB"
)

// MacroProvider reads index closes from Yahoo's chart API and the policy
// rate from FRED.
type MacroProvider struct {
	client     Doer
	yahooURL   string
	fredURL    string
	fredAPIKey string
	fredSeries string
	tracer     trace.Tracer
}

func NewMacroProvider(client Doer, tracer trace.Tracer, fredAPIKey string) *MacroProvider {
	return &MacroProvider{
		client:     orDefaultClient(client),
		yahooURL:   yahooBaseURL,
		fredURL:    fredBaseURL,
		fredAPIKey: strings.TrimSpace(fredAPIKey),
		fredSeries: "FEDFUNDS",
		tracer:     tracer,
	}
}

// FetchQuote returns the most recent non-null daily close for symbol.
func (p *MacroProvider) FetchQuote(ctx context.Context, symbol string) (*MacroQuote, error) {
	ctx, span := p.tracer.Start(ctx, "macro.fetch-quote")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", strings.TrimRight(p.yahooURL, "/"), url.PathEscape(symbol))
	body, err := fetch(ctx, p.client, "yahoo", u, map[string]string{"User-Agent": "Mozilla/5.0 (market-pulse)"})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	var payload struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice *float64 `json:"regularMarketPrice"`
					RegularMarketTime  int64    `json:"regularMarketTime"`
				} `json:"meta"`
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode yahoo chart for %s: %w", symbol, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart for %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart for %s has no result", symbol)
	}

	res := payload.Chart.Result[0]
	if len(res.Indicators.Quote) > 0 {
		closes := res.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] == nil {
				continue
			}
			asOf := time.Time{}
			if i < len(res.Timestamp) {
				asOf = time.Unix(res.Timestamp[i], 0).UTC()
			}
			return &MacroQuote{Symbol: symbol, Value: *closes[i], AsOf: asOf}, nil
		}
	}
	if res.Meta.RegularMarketPrice != nil {
		return &MacroQuote{Symbol: symbol, Value: *res.Meta.RegularMarketPrice, AsOf: time.Unix(res.Meta.RegularMarketTime, 0).UTC()}, nil
	}
	return nil, fmt.Errorf("yahoo chart for %s has no closes", symbol)
}

// FetchPolicyRate returns the latest FRED observation of the policy series.
func (p *MacroProvider) FetchPolicyRate(ctx context.Context) (*MacroQuote, error) {
	ctx, span := p.tracer.Start(ctx, "macro.fetch-policy-rate")
	defer span.End()

	if p.fredAPIKey == "" {
		return nil, fmt.Errorf("fred: %w", ErrProviderNotConfigured)
	}
	q := url.Values{}
	q.Set("series_id", p.fredSeries)
	q.Set("api_key", p.fredAPIKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "desc")
	q.Set("limit", "5")
	body, err := fetch(ctx, p.client, "fred", strings.TrimRight(p.fredURL, "/")+"/fred/series/observations?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch policy rate: %w", err)
	}

	var payload struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode fred observations: %w", err)
	}
	// FRED marks missing observations with ".".
	for _, obs := range payload.Observations {
		if strings.TrimSpace(obs.Value) == "." {
			continue
		}
		value, err := parseNumber("fred value", obs.Value)
		if err != nil {
			continue
		}
		asOf, err := time.Parse("2006-01-02", strings.TrimSpace(obs.Date))
		if err != nil {
			continue
		}
		return &MacroQuote{Symbol: p.fredSeries, Value: value, AsOf: asOf.UTC()}, nil
	}
	return nil, fmt.Errorf("fred %s has no observations", p.fredSeries)
}
