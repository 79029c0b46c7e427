package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"market-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// column binds one snapshots column to its Snapshot field in both directions.
type column struct {
	name string
	arg  func(s *domain.Snapshot) any
	dest func(s *domain.Snapshot) any
}

func floatCol(name string, field func(s *domain.Snapshot) **float64) column {
	return column{
		name: name,
		arg:  func(s *domain.Snapshot) any { return *field(s) },
		dest: func(s *domain.Snapshot) any { return field(s) },
	}
}

func intCol(name string, field func(s *domain.Snapshot) **int) column {
	return column{
		name: name,
		arg:  func(s *domain.Snapshot) any { return *field(s) },
		dest: func(s *domain.Snapshot) any { return field(s) },
	}
}

func labelCol[T ~string](name string, field func(s *domain.Snapshot) **T) column {
	return column{
		name: name,
		arg:  func(s *domain.Snapshot) any { return labelArg(*field(s)) },
		dest: func(s *domain.Snapshot) any { return &labelScanner[T]{dst: field(s)} },
	}
}

func labelArg[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// labelScanner scans a nullable text column into a pointer to a string enum.
type labelScanner[T ~string] struct {
	dst **T
}

func (l *labelScanner[T]) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l.dst = nil
	case string:
		t := T(v)
		*l.dst = &t
	case []byte:
		t := T(string(v))
		*l.dst = &t
	default:
		return fmt.Errorf("cannot scan %T into label", src)
	}
	return nil
}

var snapshotColumns = []column{
	{name: "id", arg: func(s *domain.Snapshot) any { return s.ID }, dest: func(s *domain.Snapshot) any { return &s.ID }},
	{name: "run_id", arg: func(s *domain.Snapshot) any { return s.RunID }, dest: func(s *domain.Snapshot) any { return &s.RunID }},
	{name: "ts", arg: func(s *domain.Snapshot) any { return s.Timestamp.UTC() }, dest: func(s *domain.Snapshot) any { return &s.Timestamp }},
	{name: "asset_id", arg: func(s *domain.Snapshot) any { return s.AssetID }, dest: func(s *domain.Snapshot) any { return &s.AssetID }},
	{name: "symbol", arg: func(s *domain.Snapshot) any { return s.Symbol }, dest: func(s *domain.Snapshot) any { return &s.Symbol }},

	floatCol("price", func(s *domain.Snapshot) **float64 { return &s.Price }),
	floatCol("change_24h_pct", func(s *domain.Snapshot) **float64 { return &s.Change24hPct }),
	floatCol("change_7d_pct", func(s *domain.Snapshot) **float64 { return &s.Change7dPct }),
	floatCol("volume_24h", func(s *domain.Snapshot) **float64 { return &s.Volume24h }),
	floatCol("market_cap", func(s *domain.Snapshot) **float64 { return &s.MarketCap }),

	floatCol("rsi_14", func(s *domain.Snapshot) **float64 { return &s.RSI14 }),
	labelCol("macd_cross", func(s *domain.Snapshot) **domain.MACDCross { return &s.MACDCross }),
	floatCol("macd_histogram", func(s *domain.Snapshot) **float64 { return &s.MACDHistogram }),
	floatCol("ma_50", func(s *domain.Snapshot) **float64 { return &s.MA50 }),
	floatCol("ma_200", func(s *domain.Snapshot) **float64 { return &s.MA200 }),
	labelCol("ma_50_position", func(s *domain.Snapshot) **domain.MAPosition { return &s.MA50Position }),
	labelCol("ma_200_position", func(s *domain.Snapshot) **domain.MAPosition { return &s.MA200Position }),
	labelCol("bollinger_position", func(s *domain.Snapshot) **domain.BandPosition { return &s.BollingerPosition }),
	floatCol("price_volume_correlation", func(s *domain.Snapshot) **float64 { return &s.PriceVolumeCorrelation }),

	intCol("fear_greed_index", func(s *domain.Snapshot) **int { return &s.FearGreedIndex }),
	labelCol("fear_greed_label", func(s *domain.Snapshot) **string { return &s.FearGreedLabel }),
	floatCol("sentiment_social_score", func(s *domain.Snapshot) **float64 { return &s.SentimentSocialScore }),
	floatCol("sentiment_news_score", func(s *domain.Snapshot) **float64 { return &s.SentimentNewsScore }),
	intCol("sentiment_sample_size", func(s *domain.Snapshot) **int { return &s.SentimentSampleSize }),

	intCol("news_event_count_24h", func(s *domain.Snapshot) **int { return &s.NewsEventCount24h }),
	floatCol("news_sentiment", func(s *domain.Snapshot) **float64 { return &s.NewsSentiment }),
	labelCol("dominant_event_type", func(s *domain.Snapshot) **domain.EventType { return &s.DominantEventType }),
	intCol("critical_event_count", func(s *domain.Snapshot) **int { return &s.CriticalEventCount }),
	floatCol("adoption_score", func(s *domain.Snapshot) **float64 { return &s.AdoptionScore }),
	floatCol("policy_risk_score", func(s *domain.Snapshot) **float64 { return &s.PolicyRiskScore }),

	floatCol("exchange_net_flow", func(s *domain.Snapshot) **float64 { return &s.ExchangeNetFlow }),
	labelCol("exchange_flow", func(s *domain.Snapshot) **domain.ExchangeFlow { return &s.ExchangeFlow }),
	labelCol("whale_activity", func(s *domain.Snapshot) **domain.WhaleActivity { return &s.WhaleActivity }),
	labelCol("smart_money_trend", func(s *domain.Snapshot) **domain.SmartMoneyTrend { return &s.SmartMoneyTrend }),
	floatCol("network_activity_score", func(s *domain.Snapshot) **float64 { return &s.NetworkActivityScore }),

	floatCol("vix", func(s *domain.Snapshot) **float64 { return &s.VIX }),
	floatCol("dxy", func(s *domain.Snapshot) **float64 { return &s.DXY }),
	floatCol("policy_rate", func(s *domain.Snapshot) **float64 { return &s.PolicyRate }),
	labelCol("risk_environment", func(s *domain.Snapshot) **domain.RiskEnvironment { return &s.RiskEnvironment }),

	floatCol("funding_rate", func(s *domain.Snapshot) **float64 { return &s.FundingRate }),
	floatCol("open_interest_change_24h", func(s *domain.Snapshot) **float64 { return &s.OpenInterestChange24h }),
	floatCol("liquidations_24h", func(s *domain.Snapshot) **float64 { return &s.Liquidations24h }),

	labelCol("prediction", func(s *domain.Snapshot) **domain.Direction { return &s.Prediction }),
	intCol("confidence", func(s *domain.Snapshot) **int { return &s.Confidence }),
	labelCol("risk_level", func(s *domain.Snapshot) **domain.RiskLevel { return &s.RiskLevel }),
	{name: "reasons", arg: func(s *domain.Snapshot) any { return nonNilStrings(s.Reasons) }, dest: func(s *domain.Snapshot) any { return &s.Reasons }},
	intCol("bullish_score", func(s *domain.Snapshot) **int { return &s.BullishScore }),
	intCol("bearish_score", func(s *domain.Snapshot) **int { return &s.BearishScore }),

	floatCol("price_after_24h", func(s *domain.Snapshot) **float64 { return &s.PriceAfter24h }),
	floatCol("price_after_7d", func(s *domain.Snapshot) **float64 { return &s.PriceAfter7d }),
	floatCol("actual_impact", func(s *domain.Snapshot) **float64 { return &s.ActualImpact }),
	intCol("accuracy", func(s *domain.Snapshot) **int { return &s.Accuracy }),
	floatCol("actual_impact_7d", func(s *domain.Snapshot) **float64 { return &s.ActualImpact7d }),
	intCol("accuracy_7d", func(s *domain.Snapshot) **int { return &s.Accuracy7d }),
}

var (
	selectColumns = columnList(snapshotColumns)
	insertSQL     = buildInsert(snapshotColumns)
)

func columnList(cols []column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

func buildInsert(cols []column) string {
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO snapshots (" + columnList(cols) + ")\nVALUES (" + strings.Join(marks, ", ") + ")"
}

func snapshotArgs(s *domain.Snapshot) []any {
	args := make([]any, len(snapshotColumns))
	for i, c := range snapshotColumns {
		args[i] = c.arg(s)
	}
	return args
}

func scanSnapshot(row pgx.Row) (*domain.Snapshot, error) {
	s := &domain.Snapshot{}
	dest := make([]any, len(snapshotColumns))
	for i, c := range snapshotColumns {
		dest[i] = c.dest(s)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.Timestamp = s.Timestamp.UTC()
	if len(s.Reasons) == 0 {
		s.Reasons = nil
	}
	return s, nil
}

// SnapshotRepository persists snapshots and training records. Rows are
// write-once except for the realized-outcome columns.
type SnapshotRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSnapshotRepository(pool PgxPool, tracer trace.Tracer) *SnapshotRepository {
	return &SnapshotRepository{pool: pool, tracer: tracer}
}

func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, s *domain.Snapshot) error {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.save")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", s.Symbol))

	if _, err := r.pool.Exec(ctx, insertSQL, snapshotArgs(s)...); err != nil {
		return fmt.Errorf("save snapshot %s: %w: %w", s.ID, domain.ErrPersistence, err)
	}
	return nil
}

func (r *SnapshotRepository) SaveTrainingRecord(ctx context.Context, rec domain.TrainingRecord) error {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.save-training-record")
	defer span.End()

	features := rec.Features
	if features == nil {
		features = map[string]float64{}
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO training_records (snapshot_id, asset_id, features, price_at_snapshot, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (snapshot_id) DO NOTHING`,
		rec.SnapshotID, rec.AssetID, features, rec.PriceAtSnapshot, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save training record %s: %w: %w", rec.SnapshotID, domain.ErrPersistence, err)
	}
	return nil
}

// GetLatestSnapshot returns domain.ErrNotFound when the asset has no rows.
func (r *SnapshotRepository) GetLatestSnapshot(ctx context.Context, assetID string) (*domain.Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.get-latest")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
SELECT `+selectColumns+`
FROM snapshots
WHERE asset_id = $1
ORDER BY ts DESC
LIMIT 1`, assetID)
	s, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("latest snapshot for %s: %w", assetID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for %s: %w: %w", assetID, domain.ErrPersistence, err)
	}
	return s, nil
}

// ListSnapshots returns snapshots taken at or after since, newest first.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, assetID string, since time.Time, limit int) ([]*domain.Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT `+selectColumns+`
FROM snapshots
WHERE asset_id = $1 AND ts >= $2
ORDER BY ts DESC
LIMIT $3`, assetID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w: %w", domain.ErrPersistence, err)
	}
	return collectSnapshots(rows)
}

func (r *SnapshotRepository) ListBackfillCandidates(ctx context.Context, horizon domain.Horizon, cutoff time.Time, limit int) ([]*domain.Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.list-backfill-candidates")
	defer span.End()
	span.SetAttributes(attribute.String("horizon", string(horizon)))

	cols, err := outcomeColumns(horizon)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+selectColumns+`
FROM snapshots
WHERE ts <= $1 AND `+cols.price+` IS NULL AND prediction IS NOT NULL AND price IS NOT NULL
ORDER BY ts
LIMIT $2`, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list backfill candidates: %w: %w", domain.ErrPersistence, err)
	}
	return collectSnapshots(rows)
}

// AttachRealizedOutcome writes the outcome columns for one horizon. A row
// whose outcome is already set is left alone and reported as not found.
func (r *SnapshotRepository) AttachRealizedOutcome(ctx context.Context, o domain.RealizedOutcome) error {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.attach-outcome")
	defer span.End()

	cols, err := outcomeColumns(o.Horizon)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE snapshots
SET `+cols.price+` = $2, `+cols.impact+` = $3, `+cols.accuracy+` = $4
WHERE id = $1 AND `+cols.price+` IS NULL`,
		o.SnapshotID, o.PriceAfter, o.ActualImpact, o.Accuracy,
	)
	if err != nil {
		return fmt.Errorf("attach %s outcome to %s: %w: %w", o.Horizon, o.SnapshotID, domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attach %s outcome to %s: %w", o.Horizon, o.SnapshotID, domain.ErrNotFound)
	}
	return nil
}

type horizonColumns struct {
	price, impact, accuracy string
}

func outcomeColumns(h domain.Horizon) (horizonColumns, error) {
	switch h {
	case domain.Horizon24h:
		return horizonColumns{price: "price_after_24h", impact: "actual_impact", accuracy: "accuracy"}, nil
	case domain.Horizon7d:
		return horizonColumns{price: "price_after_7d", impact: "actual_impact_7d", accuracy: "accuracy_7d"}, nil
	}
	return horizonColumns{}, fmt.Errorf("unknown horizon %q", h)
}

func collectSnapshots(rows pgx.Rows) ([]*domain.Snapshot, error) {
	defer rows.Close()
	var out []*domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
