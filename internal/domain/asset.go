package domain

import "strings"

// Asset identifies one tracked coin across upstream providers.
type Asset struct {
	ID            string `json:"id"` // CoinGecko id, e.g. "bitcoin"
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	BinanceSymbol string `json:"binance_symbol,omitempty"`
}

// SupportedAssets lists all tracked assets in default ingestion order.
var SupportedAssets = []Asset{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", BinanceSymbol: "BTCUSDT"},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", BinanceSymbol: "ETHUSDT"},
	{ID: "solana", Symbol: "SOL", Name: "Solana", BinanceSymbol: "SOLUSDT"},
	{ID: "ripple", Symbol: "XRP", Name: "XRP", BinanceSymbol: "XRPUSDT"},
	{ID: "cardano", Symbol: "ADA", Name: "Cardano", BinanceSymbol: "ADAUSDT"},
	{ID: "dogecoin", Symbol: "DOGE", Name: "Dogecoin", BinanceSymbol: "DOGEUSDT"},
	{ID: "polkadot", Symbol: "DOT", Name: "Polkadot", BinanceSymbol: "DOTUSDT"},
	{ID: "avalanche-2", Symbol: "AVAX", Name: "Avalanche", BinanceSymbol: "AVAXUSDT"},
	{ID: "chainlink", Symbol: "LINK", Name: "Chainlink", BinanceSymbol: "LINKUSDT"},
	{ID: "matic-network", Symbol: "MATIC", Name: "Polygon"},
}

// SupportedSymbols lists all tracked crypto symbols.
var SupportedSymbols []string

var (
	assetByID     map[string]Asset
	assetBySymbol map[string]Asset
)

func init() {
	assetByID = make(map[string]Asset, len(SupportedAssets))
	assetBySymbol = make(map[string]Asset, len(SupportedAssets))
	SupportedSymbols = make([]string, 0, len(SupportedAssets))
	for _, a := range SupportedAssets {
		assetByID[a.ID] = a
		assetBySymbol[a.Symbol] = a
		SupportedSymbols = append(SupportedSymbols, a.Symbol)
	}
}

// LookupAsset resolves either a CoinGecko id ("bitcoin") or a symbol ("btc").
func LookupAsset(idOrSymbol string) (Asset, bool) {
	key := strings.TrimSpace(idOrSymbol)
	if key == "" {
		return Asset{}, false
	}
	if a, ok := assetByID[strings.ToLower(key)]; ok {
		return a, true
	}
	a, ok := assetBySymbol[strings.ToUpper(key)]
	return a, ok
}

// AssetBySymbol returns the asset for an upper-case symbol.
func AssetBySymbol(symbol string) (Asset, bool) {
	a, ok := assetBySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return a, ok
}
