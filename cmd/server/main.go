package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "market-pulse/docs"
	"market-pulse/internal/cache"
	"market-pulse/internal/collector"
	"market-pulse/internal/config"
	"market-pulse/internal/db"
	"market-pulse/internal/domain"
	"market-pulse/internal/handler"
	"market-pulse/internal/ingest"
	"market-pulse/internal/job"
	"market-pulse/internal/logger"
	"market-pulse/internal/marketintel"
	"market-pulse/internal/metrics"
	"market-pulse/internal/provider"
	"market-pulse/internal/repository"
	"market-pulse/internal/scoring"
	"market-pulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "market-pulse"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	loadEnvFunc     = godotenv.Load
	loadConfigFunc  = config.Load
	initLoggerFunc  = logger.Init
	initTracerFunc  = tracing.InitTracer
	connectPostgres = db.Connect
	connectRedis    = cache.Connect
	metricsRegistry = func() (prometheus.Registerer, prometheus.Gatherer) {
		return prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}
	newRouterFunc          = gin.New
	startJobsFunc          = startJobs
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

type app struct {
	orchestrator *ingest.Orchestrator
	backfiller   *ingest.Backfiller
	snapshots    *repository.SnapshotRepository
	latest       *cache.LatestSnapshots
	news         *marketintel.Repository
	limiter      *provider.HostRateLimiter
}

// @title           Market Pulse API
// @version         1.0
// @description     Crypto market snapshots, signal scores and ingestion triggers.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	initLoggerFunc(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Options{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName: serviceName,
		Version:     version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	pool, err := connectPostgres(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if pool != nil {
		defer pool.Close()
	}

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	reg, gatherer := metricsRegistry()
	rec := metrics.New(reg)

	a := build(cfg, tracer, pool, rdb, rec)
	metrics.RegisterQueueDepth(reg, a.limiter, limiterBuckets())

	if cfg.IngestEnabled {
		startJobsFunc(ctx, cfg, tracer, a, rec)
	} else {
		log.Info().Msg("scheduled ingestion disabled")
	}

	h := handler.New(tracer, handler.Deps{
		Runner:     a.orchestrator,
		Backfiller: a.backfiller,
		Snapshots:  a.snapshots,
		Latest:     a.latest,
		News:       a.news,
		Checks: map[string]func(context.Context) error{
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Metrics:     promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		RunDefaults: runDefaults(cfg),
	})

	r := newRouterFunc()
	r.Use(gin.Recovery(), otelgin.Middleware(serviceName), rec.GinMiddleware())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	h.RegisterRoutes(r,
		handler.APIKeyAuth(cfg.APIKey),
		handler.RateLimit(cfg.APIRatePerSec, cfg.APIRateBurst),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exiting")
}

// build wires providers, collectors, persistence and the orchestrator. All
// outbound HTTP goes through one rate limiter.
func build(cfg *config.Config, tracer trace.Tracer, pool *pgxpool.Pool, rdb *redis.Client, rec *metrics.Recorder) *app {
	limiter := provider.NewHostRateLimiter(nil, provider.WithObserver(rec))

	coingecko := provider.NewCoinGeckoProvider(limiter, tracer, cfg.CoinGeckoAPIKey)
	fearGreed := collector.NewCachedFearGreed(provider.NewFearGreedProvider(limiter, tracer), rdb, collector.FearGreedCacheTTL)
	macro := provider.NewMacroProvider(limiter, tracer, cfg.FREDAPIKey)
	flows := provider.NewExchangeFlowProvider(limiter, tracer, cfg.CryptoQuantBaseURL, cfg.CryptoQuantAPIKey)
	derivatives := provider.NewDerivativesProvider(limiter, tracer, cfg.CoinglassURL, cfg.CoinglassAPIKey)
	activity := []provider.NetworkActivitySource{
		provider.NewBTCMempoolProvider(limiter, tracer, ""),
		provider.NewETHBlockscoutProvider(limiter, tracer, ""),
		provider.NewADAKoiosProvider(limiter, tracer, ""),
		provider.NewXRPScanProvider(limiter, tracer, ""),
	}

	assembler := collector.NewAssembler(tracer,
		collector.NewMarketCollector(coingecko, tracer),
		collector.NewTechnicalCollector(coingecko, tracer),
		collector.NewSentimentCollector(fearGreed, tracer),
		collector.NewNewsCollector(tracer),
		collector.NewOnChainCollector(flows, activity, tracer),
		collector.NewMacroCollector(macro, rdb, collector.MacroCacheTTL, tracer),
		collector.NewDerivativesCollector(derivatives, tracer),
	)

	var llm marketintel.BatchLLMScorer
	if o := marketintel.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel); o != nil {
		llm = o
	}
	news := marketintel.NewRepository(pool, tracer)
	intel := marketintel.NewService(tracer, news,
		marketintel.NewScorer(llm, cfg.SentimentBatchSize),
		fearGreed,
		provider.NewRedditProvider(limiter, tracer),
		provider.NewRSSProvider(limiter, tracer),
		marketintel.Config{
			NewsFeeds:        cfg.NewsFeeds,
			RedditSubs:       cfg.RedditSubs,
			ScoringBatchSize: cfg.SentimentBatchSize,
		},
	)

	snapshots := repository.NewSnapshotRepository(pool, tracer)
	latest := cache.NewLatestSnapshots(rdb, cache.LatestSnapshotTTL)
	backfiller := ingest.NewBackfiller(tracer, snapshots, coingecko, cfg.NeutralBand, cfg.BackfillLimit)

	orchestrator := ingest.NewOrchestrator(tracer,
		intel,
		assembler,
		scoring.NewEngine(cfg.Weights, cfg.Thresholds),
		snapshots,
		latest,
		backfiller,
		rec,
		ingest.Options{AssetDelay: cfg.AssetDelay},
	)

	return &app{
		orchestrator: orchestrator,
		backfiller:   backfiller,
		snapshots:    snapshots,
		latest:       latest,
		news:         news,
		limiter:      limiter,
	}
}

func startJobs(ctx context.Context, cfg *config.Config, tracer trace.Tracer, a *app, rec *metrics.Recorder) {
	ingestion := job.NewIngestionJob(tracer, a.orchestrator, cfg.IngestCron, runDefaults(cfg), cfg.RunTimeout)
	go func() {
		if err := ingestion.Start(ctx); err != nil {
			log.Error().Err(err).Msg("ingestion job stopped")
		}
	}()

	backfill := job.NewBackfillJob(tracer, a.backfiller, rec, time.Duration(cfg.BackfillPollSecs)*time.Second)
	go backfill.Start(ctx)
}

func runDefaults(cfg *config.Config) domain.RunOptions {
	return domain.RunOptions{
		Type:              domain.RunFull,
		Coins:             cfg.IngestCoins,
		StoreTrainingData: cfg.StoreTrainingData,
	}
}

func limiterBuckets() []string {
	names := make([]string, 0, len(provider.DefaultHostPolicies)+1)
	for _, p := range provider.DefaultHostPolicies {
		names = append(names, p.Name)
	}
	return append(names, provider.DefaultFallbackPolicy.Name)
}
