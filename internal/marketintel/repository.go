package marketintel

import (
	"context"
	"fmt"
	"time"

	"market-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository stores classified news events. Events are immutable once
// written; a second insert of the same id is ignored.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

const newsEventColumns = `id, ts, title, url, source, event_type, source_type, region,
    impact_level, sentiment_impact, affected_coins, affected_sectors`

// InsertNewsEvents writes events and returns how many were new.
func (r *Repository) InsertNewsEvents(ctx context.Context, events []domain.NewsEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	ctx, span := r.tracer.Start(ctx, "news-repo.insert-events")
	defer span.End()
	span.SetAttributes(attribute.Int("events", len(events)))

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
INSERT INTO news_events (`+newsEventColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`,
			ev.ID,
			ev.Timestamp.UTC(),
			ev.Title,
			ev.URL,
			ev.Source,
			string(ev.EventType),
			string(ev.SourceType),
			string(ev.Region),
			string(ev.ImpactLevel),
			ev.SentimentImpact,
			nonNilStrings(ev.AffectedCoins),
			nonNilStrings(ev.AffectedSectors),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for _, ev := range events {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert news event %s: %w: %w", ev.ID, domain.ErrPersistence, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListNewsEventsSince returns events at or after since, newest first.
func (r *Repository) ListNewsEventsSince(ctx context.Context, since time.Time) ([]domain.NewsEvent, error) {
	ctx, span := r.tracer.Start(ctx, "news-repo.list-since")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT `+newsEventColumns+`
FROM news_events
WHERE ts >= $1
ORDER BY ts DESC, id`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list news events: %w: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	out := make([]domain.NewsEvent, 0, 64)
	for rows.Next() {
		ev, err := scanNewsEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanNewsEvent(s interface{ Scan(dest ...any) error }) (domain.NewsEvent, error) {
	var ev domain.NewsEvent
	var url pgtype.Text
	var eventType, sourceType, region, impact string
	if err := s.Scan(
		&ev.ID,
		&ev.Timestamp,
		&ev.Title,
		&url,
		&ev.Source,
		&eventType,
		&sourceType,
		&region,
		&impact,
		&ev.SentimentImpact,
		&ev.AffectedCoins,
		&ev.AffectedSectors,
	); err != nil {
		return domain.NewsEvent{}, fmt.Errorf("scan news event: %w", err)
	}
	ev.Timestamp = ev.Timestamp.UTC()
	if url.Valid {
		ev.URL = url.String
	}
	ev.EventType = domain.EventType(eventType)
	ev.SourceType = domain.SourceType(sourceType)
	ev.Region = domain.Region(region)
	ev.ImpactLevel = domain.ImpactLevel(impact)
	ev.AffectedCoins = normalizeSymbolList(ev.AffectedCoins)
	return ev, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
