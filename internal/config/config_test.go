package config

import (
	"testing"
	"time"

	"market-pulse/internal/marketintel"
	"market-pulse/internal/scoring"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "API_KEY", "DATABASE_URL", "REDIS_URL", "INGEST_CRON", "INGEST_COINS",
		"INGEST_ASSET_DELAY_MS", "STORE_TRAINING_DATA", "NEUTRAL_BAND_PCT", "NEWS_FEEDS",
		"REDDIT_SUBS", "OPENAI_API_KEY", "SCORING_WEIGHT_RSI", "SCORING_THRESHOLD_RSI_OVERSOLD",
		"SCORING_THRESHOLD_RSI_OVERBOUGHT", "SCORING_THRESHOLD_DIRECTION", "API_RATE_PER_SEC",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.RedisURL != DefaultRedisURL {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.HTTPAddr != ":8080" || cfg.IngestCron != DefaultIngestCron {
		t.Fatalf("unexpected defaults: addr=%s cron=%s", cfg.HTTPAddr, cfg.IngestCron)
	}
	if cfg.AssetDelay != 200*time.Millisecond {
		t.Fatalf("expected 200ms asset delay, got %s", cfg.AssetDelay)
	}
	if !cfg.StoreTrainingData || cfg.NeutralBand != 2.0 {
		t.Fatalf("unexpected ingestion defaults: %+v", cfg)
	}
	if len(cfg.IngestCoins) != 0 {
		t.Fatalf("expected empty coin list to mean all assets, got %v", cfg.IngestCoins)
	}
	if len(cfg.NewsFeeds) != len(marketintel.DefaultNewsFeeds) || len(cfg.RedditSubs) != len(marketintel.DefaultRedditSubs) {
		t.Fatalf("expected default feeds and subs")
	}
	if cfg.Weights != scoring.DefaultWeights() || cfg.Thresholds != scoring.DefaultThresholds() {
		t.Fatalf("expected default scoring parameters")
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "secret")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("INGEST_CRON", "*/15 * * * *")
	t.Setenv("INGEST_COINS", "bitcoin, ETH ,,doge-not-real")
	t.Setenv("INGEST_ASSET_DELAY_MS", "0")
	t.Setenv("STORE_TRAINING_DATA", "false")
	t.Setenv("REDDIT_SUBS", "Bitcoin")
	t.Setenv("SCORING_WEIGHT_RSI", "20")
	t.Setenv("SCORING_THRESHOLD_DIRECTION", "15")

	cfg := Load()
	if cfg.APIKey != "secret" || cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.IngestCron != "*/15 * * * *" {
		t.Fatalf("unexpected cron: %s", cfg.IngestCron)
	}
	if len(cfg.IngestCoins) != 2 || cfg.IngestCoins[0] != "bitcoin" || cfg.IngestCoins[1] != "ETH" {
		t.Fatalf("expected unknown coin dropped, got %v", cfg.IngestCoins)
	}
	if cfg.AssetDelay != 0 || cfg.StoreTrainingData {
		t.Fatalf("unexpected ingestion settings: delay=%s training=%v", cfg.AssetDelay, cfg.StoreTrainingData)
	}
	if len(cfg.RedditSubs) != 1 || cfg.RedditSubs[0] != "Bitcoin" {
		t.Fatalf("unexpected subs: %v", cfg.RedditSubs)
	}
	if cfg.Weights.RSI != 20 || cfg.Thresholds.Direction != 15 {
		t.Fatalf("expected scoring overrides, got rsi=%d direction=%d", cfg.Weights.RSI, cfg.Thresholds.Direction)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("INGEST_CRON", "every tuesday")
	t.Setenv("INGEST_ASSET_DELAY_MS", "-5")
	t.Setenv("NEUTRAL_BAND_PCT", "wide")
	t.Setenv("STORE_TRAINING_DATA", "maybe")
	t.Setenv("API_RATE_PER_SEC", "0")
	t.Setenv("SCORING_WEIGHT_RSI", "-1")
	t.Setenv("SCORING_THRESHOLD_RSI_OVERSOLD", "80")
	t.Setenv("SCORING_THRESHOLD_RSI_OVERBOUGHT", "60")

	cfg := Load()
	if cfg.IngestCron != DefaultIngestCron {
		t.Fatalf("expected default cron, got %s", cfg.IngestCron)
	}
	if cfg.AssetDelay != 200*time.Millisecond || cfg.NeutralBand != 2.0 || !cfg.StoreTrainingData {
		t.Fatalf("expected defaults for invalid values: %+v", cfg)
	}
	if cfg.APIRatePerSec != 5 {
		t.Fatalf("expected default api rate, got %v", cfg.APIRatePerSec)
	}
	if cfg.Weights.RSI != 15 {
		t.Fatalf("expected default RSI weight, got %d", cfg.Weights.RSI)
	}
	if cfg.Thresholds.RSIOversold != 30 || cfg.Thresholds.RSIOverbought != 70 {
		t.Fatalf("expected overlapping RSI thresholds reset, got %v/%v", cfg.Thresholds.RSIOversold, cfg.Thresholds.RSIOverbought)
	}
}
