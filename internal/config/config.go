package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/marketintel"
	"market-pulse/internal/scoring"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultIngestCron = "0 */4 * * *"
	DefaultHTTPAddr   = ":8080"
	DefaultRedisURL   = "localhost:6379"
)

type Config struct {
	HTTPAddr         string
	APIKey           string
	APIRatePerSec    float64
	APIRateBurst     int
	ShutdownTimeout  time.Duration
	RunTimeout       time.Duration
	LogLevel         string
	LogFormat        string
	TracingEnabled   bool
	DatabaseURL      string
	DatabaseMaxConns int32
	RedisURL         string

	IngestEnabled     bool
	IngestCron        string
	IngestCoins       []string
	AssetDelay        time.Duration
	StoreTrainingData bool
	BackfillPollSecs  int
	BackfillLimit     int
	NeutralBand       float64

	CoinGeckoAPIKey    string
	CryptoQuantAPIKey  string
	CryptoQuantBaseURL string
	FREDAPIKey         string
	CoinglassAPIKey    string
	CoinglassURL       string
	OpenAIAPIKey       string
	OpenAIModel        string

	NewsFeeds          []string
	RedditSubs         []string
	SentimentBatchSize int

	Weights    scoring.Weights
	Thresholds scoring.Thresholds
}

// Load reads the process environment. Invalid values fall back to their
// defaults with a warning; Load never fails.
func Load() *Config {
	cfg := &Config{
		HTTPAddr:           envString("HTTP_ADDR", DefaultHTTPAddr),
		APIKey:             strings.TrimSpace(os.Getenv("API_KEY")),
		APIRatePerSec:      envFloat("API_RATE_PER_SEC", 5, positive),
		APIRateBurst:       envInt("API_RATE_BURST", 10, positiveInt),
		ShutdownTimeout:    time.Duration(envInt("SHUTDOWN_TIMEOUT_SECS", 5, positiveInt)) * time.Second,
		RunTimeout:         time.Duration(envInt("INGEST_RUN_TIMEOUT_MINS", 30, positiveInt)) * time.Minute,
		LogLevel:           envString("LOG_LEVEL", "info"),
		LogFormat:          envString("LOG_FORMAT", "json"),
		TracingEnabled:     envBool("TRACING_ENABLED", true),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseMaxConns:   int32(envInt("DATABASE_MAX_CONNS", 10, positiveInt)),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		IngestEnabled:      envBool("INGEST_ENABLED", true),
		IngestCron:         envString("INGEST_CRON", DefaultIngestCron),
		IngestCoins:        envList("INGEST_COINS"),
		AssetDelay:         time.Duration(envInt("INGEST_ASSET_DELAY_MS", 200, nonNegativeInt)) * time.Millisecond,
		StoreTrainingData:  envBool("STORE_TRAINING_DATA", true),
		BackfillPollSecs:   envInt("BACKFILL_POLL_SECS", 3600, positiveInt),
		BackfillLimit:      envInt("BACKFILL_LIMIT", 500, positiveInt),
		NeutralBand:        envFloat("NEUTRAL_BAND_PCT", 2.0, positive),
		CoinGeckoAPIKey:    strings.TrimSpace(os.Getenv("COINGECKO_API_KEY")),
		CryptoQuantAPIKey:  strings.TrimSpace(os.Getenv("CRYPTOQUANT_API_KEY")),
		CryptoQuantBaseURL: strings.TrimSpace(os.Getenv("CRYPTOQUANT_BASE_URL")),
		FREDAPIKey:         strings.TrimSpace(os.Getenv("FRED_API_KEY")),
		CoinglassAPIKey:    strings.TrimSpace(os.Getenv("COINGLASS_API_KEY")),
		CoinglassURL:       strings.TrimSpace(os.Getenv("COINGLASS_URL")),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:        envString("OPENAI_MODEL", "gpt-4o-mini"),
		NewsFeeds:          envList("NEWS_FEEDS"),
		RedditSubs:         envList("REDDIT_SUBS"),
		SentimentBatchSize: envInt("SENTIMENT_BATCH_SIZE", 20, positiveInt),
		Weights:            loadWeights(),
		Thresholds:         loadThresholds(),
	}

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Warn().Str("default", DefaultRedisURL).Msg("REDIS_URL not set, using default")
		cfg.RedisURL = DefaultRedisURL
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set, API authentication is disabled")
	}
	if _, err := cron.ParseStandard(cfg.IngestCron); err != nil {
		log.Warn().Err(err).Str("value", cfg.IngestCron).Str("default", DefaultIngestCron).Msg("invalid INGEST_CRON")
		cfg.IngestCron = DefaultIngestCron
	}
	if len(cfg.NewsFeeds) == 0 {
		cfg.NewsFeeds = marketintel.DefaultNewsFeeds
	}
	if len(cfg.RedditSubs) == 0 {
		cfg.RedditSubs = marketintel.DefaultRedditSubs
	}
	cfg.IngestCoins = knownCoins(cfg.IngestCoins)
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, sentiment uses the keyword heuristic")
	}
	for name, key := range map[string]string{
		"CRYPTOQUANT_API_KEY": cfg.CryptoQuantAPIKey,
		"FRED_API_KEY":        cfg.FREDAPIKey,
		"COINGLASS_API_KEY":   cfg.CoinglassAPIKey,
	} {
		if key == "" {
			log.Info().Str("key", name).Msg("optional provider disabled")
		}
	}
	return cfg
}

func knownCoins(coins []string) []string {
	out := make([]string, 0, len(coins))
	for _, c := range coins {
		if _, ok := domain.LookupAsset(c); !ok {
			log.Warn().Str("coin", c).Msg("INGEST_COINS entry is not a supported asset, skipping")
			continue
		}
		out = append(out, c)
	}
	return out
}

func loadWeights() scoring.Weights {
	w := scoring.DefaultWeights()
	for name, field := range map[string]*int{
		"RSI":              &w.RSI,
		"MACD":             &w.MACD,
		"MA200":            &w.MA200,
		"MA50":             &w.MA50,
		"BOLLINGER":        &w.Bollinger,
		"FEAR_GREED":       &w.FearGreed,
		"SOCIAL":           &w.Social,
		"NEWS":             &w.News,
		"POLICY_RISK":      &w.PolicyRisk,
		"EXCHANGE_FLOW":    &w.ExchangeFlow,
		"WHALE":            &w.Whale,
		"SMART_MONEY":      &w.SmartMoney,
		"VIX":              &w.VIX,
		"RISK_ENVIRONMENT": &w.RiskEnvironment,
		"FUNDING":          &w.Funding,
	} {
		*field = envInt("SCORING_WEIGHT_"+name, *field, nonNegativeInt)
	}
	return w
}

func loadThresholds() scoring.Thresholds {
	th := scoring.DefaultThresholds()
	for name, field := range map[string]*float64{
		"RSI_OVERSOLD":     &th.RSIOversold,
		"RSI_OVERBOUGHT":   &th.RSIOverbought,
		"SOCIAL_SENTIMENT": &th.SocialSentiment,
		"NEWS_SENTIMENT":   &th.NewsSentiment,
		"POLICY_RISK":      &th.PolicyRisk,
		"VIX_ELEVATED":     &th.VIXElevated,
		"FUNDING_LOW":      &th.FundingLow,
		"FUNDING_HIGH":     &th.FundingHigh,
		"RISK_EXTREME_VIX": &th.RiskExtremeVIX,
		"RISK_HIGH_VIX":    &th.RiskHighVIX,
		"RISK_LOW_VIX":     &th.RiskLowVIX,
	} {
		*field = envFloat("SCORING_THRESHOLD_"+name, *field, anyFloat)
	}
	for name, field := range map[string]*int{
		"EXTREME_FEAR":  &th.ExtremeFear,
		"EXTREME_GREED": &th.ExtremeGreed,
		"DIRECTION":     &th.Direction,
	} {
		*field = envInt("SCORING_THRESHOLD_"+name, *field, nonNegativeInt)
	}
	if th.RSIOversold >= th.RSIOverbought {
		log.Warn().Msg("RSI thresholds overlap, using defaults")
		def := scoring.DefaultThresholds()
		th.RSIOversold, th.RSIOverbought = def.RSIOversold, def.RSIOverbought
	}
	return th
}

func positive(v float64) bool   { return v > 0 }
func anyFloat(float64) bool     { return true }
func positiveInt(n int) bool    { return n > 0 }
func nonNegativeInt(n int) bool { return n >= 0 }

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, valid func(int) bool) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || !valid(n) {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid integer setting")
		return def
	}
	return n
}

func envFloat(key string, def float64, valid func(float64) bool) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !valid(f) {
		log.Warn().Str("key", key).Str("value", v).Float64("default", def).Msg("invalid number setting")
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Bool("default", def).Msg("invalid boolean setting")
		return def
	}
	return b
}

// envList splits a comma separated value, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
