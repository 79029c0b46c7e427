package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// NetworkActivitySource reports chain usage for one symbol. Score is in
// [-1, 1]; positive means busier than the baseline.
type NetworkActivitySource interface {
	Symbol() string
	FetchActivity(ctx context.Context) (*NetworkActivity, error)
}

type chainClient struct {
	client  Doer
	baseURL string
	tracer  trace.Tracer
}

func newChainClient(client Doer, tracer trace.Tracer, baseURL, fallback string) chainClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = fallback
	}
	return chainClient{client: orDefaultClient(client), baseURL: strings.TrimRight(baseURL, "/"), tracer: tracer}
}

func (c chainClient) getJSON(ctx context.Context, name, path string, out any) error {
	body, err := fetch(ctx, c.client, name, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", name, err)
	}
	return nil
}

func activity(key, symbol string, score float64, metrics map[string]float64) *NetworkActivity {
	score = clamp(score, -1, 1)
	return &NetworkActivity{
		ProviderKey: key,
		Symbol:      symbol,
		Score:       score,
		Confidence:  confidenceFromScore(score),
		Metrics:     metrics,
	}
}

// BTCMempoolProvider reads mempool.space 24h statistics.
type BTCMempoolProvider struct{ chainClient }

func NewBTCMempoolProvider(client Doer, tracer trace.Tracer, baseURL string) *BTCMempoolProvider {
	return &BTCMempoolProvider{newChainClient(client, tracer, baseURL, "https://mempool.space")}
}

func (p *BTCMempoolProvider) Symbol() string { return "BTC" }

func (p *BTCMempoolProvider) FetchActivity(ctx context.Context) (*NetworkActivity, error) {
	ctx, span := p.tracer.Start(ctx, "onchain.btc-mempool.fetch")
	defer span.End()

	var rows []struct {
		Count           number `json:"count"`
		VBytesPerSecond number `json:"vbytes_per_second"`
		MinFee          number `json:"min_fee"`
		TotalFee        number `json:"total_fee"`
	}
	if err := p.getJSON(ctx, "btc mempool", "/api/v1/statistics/24h", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("btc mempool payload has no rows")
	}

	r := rows[0]
	m, err := requireAll("btc mempool",
		namedNumber{"count", r.Count},
		namedNumber{"vbytes_per_second", r.VBytesPerSecond},
		namedNumber{"min_fee", r.MinFee},
		namedNumber{"total_fee", r.TotalFee},
	)
	if err != nil {
		return nil, err
	}
	countNorm := clamp((m["count"]-120000.0)/180000.0, -1, 1)
	throughputNorm := clamp((m["vbytes_per_second"]-1200.0)/2400.0, -1, 1)
	feeLoadNorm := clamp((m["min_fee"]-5.0)/40.0, -1, 1)
	totalFeeNorm := clamp((m["total_fee"]-2_000_000.0)/8_000_000.0, -1, 1)
	score := (0.35 * countNorm) + (0.35 * throughputNorm) + (0.15 * totalFeeNorm) - (0.15 * feeLoadNorm)

	return activity("btc_mempool", "BTC", score, m), nil
}

// ETHBlockscoutProvider reads Blockscout network stats.
type ETHBlockscoutProvider struct{ chainClient }

func NewETHBlockscoutProvider(client Doer, tracer trace.Tracer, baseURL string) *ETHBlockscoutProvider {
	return &ETHBlockscoutProvider{newChainClient(client, tracer, baseURL, "https://eth.blockscout.com")}
}

func (p *ETHBlockscoutProvider) Symbol() string { return "ETH" }

func (p *ETHBlockscoutProvider) FetchActivity(ctx context.Context) (*NetworkActivity, error) {
	ctx, span := p.tracer.Start(ctx, "onchain.eth-blockscout.fetch")
	defer span.End()

	var payload struct {
		TransactionsToday            number `json:"transactions_today"`
		NetworkUtilizationPercentage number `json:"network_utilization_percentage"`
		GasPrices                    struct {
			Average number `json:"average"`
		} `json:"gas_prices"`
	}
	if err := p.getJSON(ctx, "eth blockscout", "/api/v2/stats", &payload); err != nil {
		return nil, err
	}

	m, err := requireAll("eth blockscout",
		namedNumber{"transactions_today", payload.TransactionsToday},
		namedNumber{"network_utilization_percentage", payload.NetworkUtilizationPercentage},
		namedNumber{"gas_price_average", payload.GasPrices.Average},
	)
	if err != nil {
		return nil, err
	}
	txNorm := clamp((m["transactions_today"]-1_500_000.0)/1_500_000.0, -1, 1)
	utilNorm := clamp((m["network_utilization_percentage"]-45.0)/55.0, -1, 1)
	gasPenalty := clamp((m["gas_price_average"]-25.0)/120.0, -1, 1)

	return activity("eth_blockscout", "ETH", (0.45*txNorm)+(0.35*utilNorm)-(0.20*gasPenalty), m), nil
}

// ADAKoiosProvider combines Koios totals and the current epoch's tx pace.
type ADAKoiosProvider struct{ chainClient }

func NewADAKoiosProvider(client Doer, tracer trace.Tracer, baseURL string) *ADAKoiosProvider {
	return &ADAKoiosProvider{newChainClient(client, tracer, baseURL, "https://api.koios.rest")}
}

func (p *ADAKoiosProvider) Symbol() string { return "ADA" }

func (p *ADAKoiosProvider) FetchActivity(ctx context.Context) (*NetworkActivity, error) {
	ctx, span := p.tracer.Start(ctx, "onchain.ada-koios.fetch")
	defer span.End()

	var totals []struct {
		EpochNo int    `json:"epoch_no"`
		Fees    number `json:"fees"`
	}
	if err := p.getJSON(ctx, "koios totals", "/api/v1/totals", &totals); err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, fmt.Errorf("koios totals payload has no rows")
	}
	epoch := totals[0].EpochNo
	if epoch <= 0 {
		return nil, fmt.Errorf("koios totals epoch_no: %w", ErrMissingValue)
	}

	query := url.Values{}
	query.Set("_epoch_no", fmt.Sprintf("%d", epoch))
	var epochs []struct {
		TxCount   number `json:"tx_count"`
		StartTime int64  `json:"start_time"`
		EndTime   int64  `json:"end_time"`
	}
	if err := p.getJSON(ctx, "koios epoch_info", "/api/v1/epoch_info?"+query.Encode(), &epochs); err != nil {
		return nil, err
	}
	if len(epochs) == 0 {
		return nil, fmt.Errorf("koios epoch_info payload has no rows")
	}

	m, err := requireAll("koios",
		namedNumber{"tx_count", epochs[0].TxCount},
		namedNumber{"fees", totals[0].Fees},
	)
	if err != nil {
		return nil, err
	}
	hours := 1.0
	if epochs[0].EndTime > epochs[0].StartTime {
		hours = float64(epochs[0].EndTime-epochs[0].StartTime) / 3600.0
	}
	m["epoch"] = float64(epoch)
	m["tx_pace_per_hour"] = m["tx_count"] / hours

	txNorm := clamp((m["tx_count"]-120000.0)/180000.0, -1, 1)
	feeNorm := clamp((m["fees"]-45_000_000_000.0)/120_000_000_000.0, -1, 1)
	paceNorm := clamp((m["tx_pace_per_hour"]-300.0)/800.0, -1, 1)

	return activity("ada_koios", "ADA", (0.5*txNorm)+(0.25*feeNorm)+(0.25*paceNorm), m), nil
}

// XRPScanProvider scores ledger load from XRPScan fee and server info.
type XRPScanProvider struct{ chainClient }

func NewXRPScanProvider(client Doer, tracer trace.Tracer, baseURL string) *XRPScanProvider {
	return &XRPScanProvider{newChainClient(client, tracer, baseURL, "https://api.xrpscan.com")}
}

func (p *XRPScanProvider) Symbol() string { return "XRP" }

func (p *XRPScanProvider) FetchActivity(ctx context.Context) (*NetworkActivity, error) {
	ctx, span := p.tracer.Start(ctx, "onchain.xrp-xrpscan.fetch")
	defer span.End()

	var fee struct {
		CurrentQueueSize   number `json:"current_queue_size"`
		ExpectedLedgerSize number `json:"expected_ledger_size"`
		Drops              struct {
			MedianFee number `json:"median_fee"`
		} `json:"drops"`
	}
	if err := p.getJSON(ctx, "xrpscan fee", "/api/v1/network/fee", &fee); err != nil {
		return nil, err
	}
	var info struct {
		Info struct {
			LoadFactor number `json:"load_factor"`
		} `json:"info"`
	}
	if err := p.getJSON(ctx, "xrpscan server_info", "/api/v1/network/server_info", &info); err != nil {
		return nil, err
	}

	m, err := requireAll("xrpscan",
		namedNumber{"current_queue_size", fee.CurrentQueueSize},
		namedNumber{"expected_ledger_size", fee.ExpectedLedgerSize},
		namedNumber{"median_fee", fee.Drops.MedianFee},
		namedNumber{"load_factor", info.Info.LoadFactor},
	)
	if err != nil {
		return nil, err
	}
	if m["expected_ledger_size"] <= 0 {
		m["expected_ledger_size"] = 1
	}
	if m["load_factor"] <= 0 {
		m["load_factor"] = 1
	}

	queueNorm := clamp((m["current_queue_size"]/m["expected_ledger_size"])-0.35, -1, 1)
	feeNorm := clamp((m["median_fee"]-128000.0)/300000.0, -1, 1)
	loadNorm := clamp((m["load_factor"]-1.0)/5.0, -1, 1)

	return activity("xrp_xrpscan", "XRP", (0.40*loadNorm)-(0.40*queueNorm)-(0.20*feeNorm), m), nil
}
