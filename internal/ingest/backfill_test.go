package ingest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type outcomeStoreStub struct {
	candidates map[domain.Horizon][]*domain.Snapshot
	cutoffs    map[domain.Horizon]time.Time
	attached   []domain.RealizedOutcome
	attachErr  map[string]error
}

func (s *outcomeStoreStub) ListBackfillCandidates(ctx context.Context, h domain.Horizon, cutoff time.Time, limit int) ([]*domain.Snapshot, error) {
	if s.cutoffs == nil {
		s.cutoffs = map[domain.Horizon]time.Time{}
	}
	s.cutoffs[h] = cutoff
	return s.candidates[h], nil
}

func (s *outcomeStoreStub) AttachRealizedOutcome(ctx context.Context, o domain.RealizedOutcome) error {
	if err := s.attachErr[o.SnapshotID]; err != nil {
		return err
	}
	s.attached = append(s.attached, o)
	return nil
}

type priceStub struct {
	calls  int
	ids    []string
	prices map[string]*domain.PriceSnapshot
	err    error
}

func (s *priceStub) FetchPrices(ctx context.Context, ids []string) (map[string]*domain.PriceSnapshot, error) {
	s.calls++
	s.ids = append([]string(nil), ids...)
	return s.prices, s.err
}

func predicted(id, assetID string, price float64, dir domain.Direction) *domain.Snapshot {
	s := &domain.Snapshot{ID: id, AssetID: assetID}
	s.Price = &price
	s.Prediction = &dir
	return s
}

func TestBackfillComputesAccuracy(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &outcomeStoreStub{candidates: map[domain.Horizon][]*domain.Snapshot{
		domain.Horizon24h: {
			predicted("hit", "bitcoin", 100, domain.DirectionBullish),
			predicted("miss", "ethereum", 100, domain.DirectionBullish),
		},
		domain.Horizon7d: {
			predicted("neutral", "bitcoin", 108, domain.DirectionNeutral),
		},
	}}
	prices := &priceStub{prices: map[string]*domain.PriceSnapshot{
		"bitcoin":  {PriceUSD: 110},
		"ethereum": {PriceUSD: 95},
	}}
	b := NewBackfiller(trace.NewNoopTracerProvider().Tracer("test"), store, prices, 0, 0)

	res, err := b.BackfillRealizedOutcomes(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Updated != 3 || res.Errors != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if prices.calls != 1 {
		t.Fatalf("expected one batched price call, got %d", prices.calls)
	}
	sort.Strings(prices.ids)
	if len(prices.ids) != 2 || prices.ids[0] != "bitcoin" || prices.ids[1] != "ethereum" {
		t.Fatalf("expected distinct asset ids, got %v", prices.ids)
	}
	if !store.cutoffs[domain.Horizon24h].Equal(now.Add(-24*time.Hour)) || !store.cutoffs[domain.Horizon7d].Equal(now.Add(-7*24*time.Hour)) {
		t.Fatalf("unexpected cutoffs: %v", store.cutoffs)
	}

	byID := map[string]domain.RealizedOutcome{}
	for _, o := range store.attached {
		byID[o.SnapshotID] = o
	}
	if o := byID["hit"]; o.Accuracy != 100 || o.ActualImpact != 10 || o.PriceAfter != 110 || o.Horizon != domain.Horizon24h {
		t.Fatalf("unexpected hit outcome: %+v", o)
	}
	if o := byID["miss"]; o.Accuracy != 0 || o.ActualImpact != -5 {
		t.Fatalf("unexpected miss outcome: %+v", o)
	}
	if o := byID["neutral"]; o.Accuracy != 100 || o.Horizon != domain.Horizon7d {
		t.Fatalf("expected neutral within 2%% band to be accurate: %+v", o)
	}
}

func TestBackfillCountsPerSnapshotFailures(t *testing.T) {
	store := &outcomeStoreStub{
		candidates: map[domain.Horizon][]*domain.Snapshot{
			domain.Horizon24h: {
				predicted("ok", "bitcoin", 100, domain.DirectionBearish),
				predicted("no-price", "dogecoin", 1, domain.DirectionBearish),
				predicted("attach-fails", "bitcoin", 100, domain.DirectionBearish),
			},
		},
		attachErr: map[string]error{"attach-fails": errors.New("db down")},
	}
	prices := &priceStub{prices: map[string]*domain.PriceSnapshot{"bitcoin": {PriceUSD: 90}}}
	b := NewBackfiller(trace.NewNoopTracerProvider().Tracer("test"), store, prices, 0, 0)

	res, err := b.BackfillRealizedOutcomes(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Updated != 1 || res.Errors != 2 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if store.attached[0].Accuracy != 100 {
		t.Fatalf("expected bearish call on a drop to be accurate")
	}
}

func TestBackfillPriceFailure(t *testing.T) {
	store := &outcomeStoreStub{candidates: map[domain.Horizon][]*domain.Snapshot{
		domain.Horizon24h: {predicted("a", "bitcoin", 100, domain.DirectionBullish)},
	}}
	boom := errors.New("429")
	b := NewBackfiller(trace.NewNoopTracerProvider().Tracer("test"), store, &priceStub{err: boom}, 0, 0)

	res, err := b.BackfillRealizedOutcomes(context.Background(), time.Now())
	if !errors.Is(err, boom) || res.Errors != 1 {
		t.Fatalf("expected wrapped price error, got %v %+v", err, res)
	}
}

func TestBackfillNothingToDoSkipsPriceCall(t *testing.T) {
	prices := &priceStub{}
	b := NewBackfiller(trace.NewNoopTracerProvider().Tracer("test"), &outcomeStoreStub{}, prices, 0, 0)
	if _, err := b.BackfillRealizedOutcomes(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prices.calls != 0 {
		t.Fatalf("expected no price call without candidates")
	}
}

func TestAccuracy(t *testing.T) {
	cases := []struct {
		dir    domain.Direction
		impact float64
		want   int
	}{
		{domain.DirectionBullish, 0.5, 100},
		{domain.DirectionBullish, -0.5, 0},
		{domain.DirectionBearish, -3, 100},
		{domain.DirectionBearish, 0, 0},
		{domain.DirectionNeutral, 2, 100},
		{domain.DirectionNeutral, -2.01, 0},
	}
	for _, tc := range cases {
		if got := Accuracy(tc.dir, tc.impact, DefaultNeutralBand); got != tc.want {
			t.Fatalf("%s %v: expected %d, got %d", tc.dir, tc.impact, tc.want, got)
		}
	}
}

func TestTrainingRecordForEncodesLabels(t *testing.T) {
	s := predicted("s", "bitcoin", 50, domain.DirectionBullish)
	flow := domain.FlowInflow
	unknown := domain.MAUnknown
	s.ExchangeFlow = &flow
	s.MA200Position = &unknown

	rec := TrainingRecordFor(s)
	if rec.Features["exchange_flow"] != -1 {
		t.Fatalf("expected inflow encoded -1, got %v", rec.Features["exchange_flow"])
	}
	if _, ok := rec.Features["ma_200_position"]; ok {
		t.Fatalf("expected unknown MA position omitted")
	}
	if _, ok := rec.Features["vix"]; ok {
		t.Fatalf("expected absent VIX omitted")
	}
	if rec.PriceAtSnapshot != 50 || rec.Features["price"] != 50 {
		t.Fatalf("unexpected price features: %+v", rec)
	}
}
