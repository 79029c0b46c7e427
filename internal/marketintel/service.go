package marketintel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/provider"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type FearGreedSource interface {
	FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error)
}

type RedditReader interface {
	FetchHot(ctx context.Context, subreddit string, limit int) ([]provider.ContentItem, error)
}

type RSSReader interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]provider.ContentItem, error)
}

type NewsStore interface {
	InsertNewsEvents(ctx context.Context, events []domain.NewsEvent) (int, error)
	ListNewsEventsSince(ctx context.Context, since time.Time) ([]domain.NewsEvent, error)
}

type Config struct {
	NewsFeeds         []string
	RedditSubs        []string
	RedditPostLimit   int
	NewsFeedItemLimit int
	ScoringBatchSize  int
	PolicyWindow      time.Duration
}

var DefaultNewsFeeds = []string{
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://cointelegraph.com/rss",
	"https://decrypt.co/feed",
}

var DefaultRedditSubs = []string{"CryptoCurrency", "Bitcoin", "ethereum", "solana"}

// Service runs the auxiliary phase of an ingestion run: the data shared by
// every asset.
type Service struct {
	tracer trace.Tracer
	store  NewsStore
	scorer *Scorer

	fearGreed FearGreedSource
	reddit    RedditReader
	rss       RSSReader

	cfg Config
}

func NewService(
	tracer trace.Tracer,
	store NewsStore,
	scorer *Scorer,
	fearGreed FearGreedSource,
	reddit RedditReader,
	rss RSSReader,
	cfg Config,
) *Service {
	if cfg.NewsFeeds == nil {
		cfg.NewsFeeds = DefaultNewsFeeds
	}
	if cfg.RedditSubs == nil {
		cfg.RedditSubs = DefaultRedditSubs
	}
	if cfg.RedditPostLimit <= 0 {
		cfg.RedditPostLimit = 40
	}
	if cfg.NewsFeedItemLimit <= 0 {
		cfg.NewsFeedItemLimit = 40
	}
	if cfg.ScoringBatchSize <= 0 {
		cfg.ScoringBatchSize = 24
	}
	if cfg.PolicyWindow <= 0 {
		cfg.PolicyWindow = PolicyWindow
	}
	if scorer == nil {
		scorer = NewScorer(nil, cfg.ScoringBatchSize)
	}
	return &Service{
		tracer:    tracer,
		store:     store,
		scorer:    scorer,
		fearGreed: fearGreed,
		reddit:    reddit,
		rss:       rss,
		cfg:       cfg,
	}
}

// CollectAuxiliary gathers fear & greed, scores and classifies fresh news and
// social items, and computes trailing policy risk. Source failures become
// warnings; only context cancellation is returned as an error.
func (s *Service) CollectAuxiliary(ctx context.Context, now time.Time) (*domain.Auxiliary, error) {
	ctx, span := s.tracer.Start(ctx, "market-intel.collect-auxiliary")
	defer span.End()

	now = now.UTC()
	aux := &domain.Auxiliary{CollectedAt: now}

	if s.fearGreed != nil {
		if fg, err := s.fearGreed.FetchLatest(ctx); err != nil {
			aux.Warnings = append(aux.Warnings, "fear_greed: "+err.Error())
		} else if fg != nil {
			aux.FearGreed = &domain.FearGreed{Value: fg.Value, Label: fg.Classification, Time: fg.Timestamp}
		}
	}

	content := s.fetchContent(ctx, aux)
	if err := ctx.Err(); err != nil {
		return aux, err
	}

	scores, err := s.scorer.Score(ctx, contentToItems(content))
	if err != nil {
		aux.Warnings = append(aux.Warnings, "score: "+err.Error())
	}
	byKey := make(map[string]SentimentScore, len(scores))
	for _, sc := range scores {
		byKey[sc.Key] = sc
	}

	fresh := make([]domain.NewsEvent, 0, len(content))
	for _, row := range content {
		sc := byKey[contentKey(row)]
		symbols := ExtractSymbols(row.Source, row.Title, row.Excerpt, row.Metadata)
		aux.Items = append(aux.Items, domain.ScoredItem{
			Source:      row.Source,
			Kind:        itemKind(row.Source),
			Title:       row.Title,
			Symbols:     symbols,
			Score:       sc.Score,
			Confidence:  sc.Confidence,
			PublishedAt: row.PublishedAt,
		})
		if ev, ok := ClassifyItem(row, sc.Score, symbols); ok {
			fresh = append(fresh, ev)
		}
	}

	aux.Events = s.mergeStoredEvents(ctx, aux, fresh, now)
	aux.PolicyRisk = PolicyRiskByRegion(aux.Events, now, s.cfg.PolicyWindow)

	span.SetAttributes(
		attribute.Int("items", len(aux.Items)),
		attribute.Int("events", len(aux.Events)),
		attribute.Int("warnings", len(aux.Warnings)),
	)
	log.Info().
		Int("items", len(aux.Items)).
		Int("fresh_events", len(fresh)).
		Int("window_events", len(aux.Events)).
		Int("warnings", len(aux.Warnings)).
		Msg("auxiliary signals collected")
	return aux, ctx.Err()
}

func (s *Service) fetchContent(ctx context.Context, aux *domain.Auxiliary) []provider.ContentItem {
	seen := make(map[string]struct{}, 256)
	out := make([]provider.ContentItem, 0, 256)
	add := func(rows []provider.ContentItem) {
		for _, row := range rows {
			key := contentKey(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, row)
		}
	}

	if s.rss != nil {
		for _, feed := range s.cfg.NewsFeeds {
			rows, err := s.rss.FetchFeed(ctx, feed, s.cfg.NewsFeedItemLimit)
			if err != nil {
				aux.Warnings = append(aux.Warnings, "rss:"+feed+": "+err.Error())
				continue
			}
			add(rows)
		}
	}
	if s.reddit != nil {
		for _, sub := range s.cfg.RedditSubs {
			rows, err := s.reddit.FetchHot(ctx, sub, s.cfg.RedditPostLimit)
			if err != nil {
				aux.Warnings = append(aux.Warnings, "reddit:"+sub+": "+err.Error())
				continue
			}
			add(rows)
		}
	}
	return out
}

// mergeStoredEvents persists fresh events and returns the trailing window,
// preferring the stored copy of any event classified on an earlier run.
func (s *Service) mergeStoredEvents(ctx context.Context, aux *domain.Auxiliary, fresh []domain.NewsEvent, now time.Time) []domain.NewsEvent {
	since := now.Add(-s.cfg.PolicyWindow)
	var stored []domain.NewsEvent
	if s.store != nil {
		if _, err := s.store.InsertNewsEvents(ctx, fresh); err != nil {
			aux.Warnings = append(aux.Warnings, "news_store: "+err.Error())
		}
		rows, err := s.store.ListNewsEventsSince(ctx, since)
		if err != nil {
			aux.Warnings = append(aux.Warnings, "news_window: "+err.Error())
		}
		stored = rows
	}

	seen := make(map[string]struct{}, len(stored)+len(fresh))
	out := make([]domain.NewsEvent, 0, len(stored)+len(fresh))
	for _, ev := range append(stored, fresh...) {
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		if ev.Timestamp.Before(since) || ev.Timestamp.After(now) {
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func contentKey(row provider.ContentItem) string {
	return fmt.Sprintf("%s|%s", row.Source, row.SourceItemID)
}

func contentToItems(rows []provider.ContentItem) []Item {
	out := make([]Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, Item{Key: contentKey(row), Title: row.Title, Excerpt: row.Excerpt})
	}
	return out
}

func itemKind(source string) string {
	if strings.EqualFold(source, "reddit") {
		return domain.ItemKindSocial
	}
	return domain.ItemKindNews
}
