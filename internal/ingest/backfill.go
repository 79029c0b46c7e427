package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"market-pulse/internal/domain"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultNeutralBand is the absolute move in percent a NEUTRAL call tolerates.
	DefaultNeutralBand   = 2.0
	defaultBackfillLimit = 500
)

type PriceSource interface {
	FetchPrices(ctx context.Context, ids []string) (map[string]*domain.PriceSnapshot, error)
}

// Backfiller attaches realized price moves to matured snapshots.
type Backfiller struct {
	store       OutcomeStore
	prices      PriceSource
	tracer      trace.Tracer
	neutralBand float64
	limit       int
}

func NewBackfiller(tracer trace.Tracer, store OutcomeStore, prices PriceSource, neutralBand float64, limit int) *Backfiller {
	if neutralBand <= 0 {
		neutralBand = DefaultNeutralBand
	}
	if limit <= 0 {
		limit = defaultBackfillLimit
	}
	return &Backfiller{store: store, prices: prices, tracer: tracer, neutralBand: neutralBand, limit: limit}
}

type candidate struct {
	horizon domain.Horizon
	snap    *domain.Snapshot
}

// BackfillRealizedOutcomes fills the 24h and 7d outcome columns of every
// matured snapshot using one batched price call.
func (b *Backfiller) BackfillRealizedOutcomes(ctx context.Context, now time.Time) (domain.BackfillResult, error) {
	ctx, span := b.tracer.Start(ctx, "ingest.backfill")
	defer span.End()

	var res domain.BackfillResult
	var pending []candidate
	idSet := map[string]struct{}{}
	for _, h := range []domain.Horizon{domain.Horizon24h, domain.Horizon7d} {
		rows, err := b.store.ListBackfillCandidates(ctx, h, now.Add(-h.Duration()), b.limit)
		if err != nil {
			return res, fmt.Errorf("list %s backfill candidates: %w", h, err)
		}
		for _, s := range rows {
			pending = append(pending, candidate{horizon: h, snap: s})
			idSet[s.AssetID] = struct{}{}
		}
	}
	span.SetAttributes(attribute.Int("candidates", len(pending)))
	if len(pending) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	prices, err := b.prices.FetchPrices(ctx, ids)
	if err != nil {
		res.Errors = len(pending)
		return res, fmt.Errorf("fetch backfill prices: %w", err)
	}

	for _, c := range pending {
		outcome, err := b.outcome(c, prices)
		if err != nil {
			res.Errors++
			log.Warn().Err(err).Str("snapshot_id", c.snap.ID).Str("horizon", string(c.horizon)).Msg("backfill skipped")
			continue
		}
		if err := b.store.AttachRealizedOutcome(ctx, outcome); err != nil {
			res.Errors++
			log.Warn().Err(err).Str("snapshot_id", c.snap.ID).Msg("attach realized outcome failed")
			continue
		}
		res.Updated++
	}
	span.SetAttributes(attribute.Int("updated", res.Updated), attribute.Int("errors", res.Errors))
	return res, nil
}

func (b *Backfiller) outcome(c candidate, prices map[string]*domain.PriceSnapshot) (domain.RealizedOutcome, error) {
	s := c.snap
	if s.Price == nil || *s.Price <= 0 {
		return domain.RealizedOutcome{}, fmt.Errorf("snapshot %s has no entry price", s.ID)
	}
	if s.Prediction == nil {
		return domain.RealizedOutcome{}, fmt.Errorf("snapshot %s has no prediction", s.ID)
	}
	p, ok := prices[s.AssetID]
	if !ok || p == nil || p.PriceUSD <= 0 {
		return domain.RealizedOutcome{}, fmt.Errorf("no current price for %s: %w", s.AssetID, domain.ErrNotFound)
	}
	impact := ActualImpact(*s.Price, p.PriceUSD)
	return domain.RealizedOutcome{
		SnapshotID:   s.ID,
		Horizon:      c.horizon,
		PriceAfter:   p.PriceUSD,
		ActualImpact: impact,
		Accuracy:     Accuracy(*s.Prediction, impact, b.neutralBand),
	}, nil
}

// ActualImpact is the percent move from before to after, rounded to 0.01.
func ActualImpact(before, after float64) float64 {
	return math.Round((after-before)/before*10000) / 100
}

// Accuracy is 100 when the realized move agrees with the prediction and 0
// otherwise. NEUTRAL agrees with any move inside the band.
func Accuracy(prediction domain.Direction, impact, neutralBand float64) int {
	var hit bool
	switch prediction {
	case domain.DirectionBullish:
		hit = impact > 0
	case domain.DirectionBearish:
		hit = impact < 0
	default:
		hit = math.Abs(impact) <= neutralBand
	}
	if hit {
		return 100
	}
	return 0
}
