// Package ingest drives ingestion runs: the auxiliary phase, the sequential
// per-asset loop and the realized-outcome backfill.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/scoring"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAssetDelay is the pause between assets on top of rate limiting.
const DefaultAssetDelay = 200 * time.Millisecond

// ErrRunInProgress is reported when a run starts while another is active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

type AuxiliaryCollector interface {
	CollectAuxiliary(ctx context.Context, now time.Time) (*domain.Auxiliary, error)
}

type SnapshotAssembler interface {
	Assemble(ctx context.Context, asset domain.Asset, aux *domain.Auxiliary) (*domain.Snapshot, []error, error)
}

type Scorer interface {
	Score(s *domain.Snapshot) scoring.Result
}

type LatestCache interface {
	Put(ctx context.Context, s *domain.Snapshot) error
}

type OutcomeBackfiller interface {
	BackfillRealizedOutcomes(ctx context.Context, now time.Time) (domain.BackfillResult, error)
}

// RunObserver receives run-level measurements.
type RunObserver interface {
	ObserveRun(result domain.RunResult)
	ObserveSnapshot(symbol string, direction *domain.Direction)
	ObserveAssetError(symbol, kind string)
}

type Options struct {
	AssetDelay time.Duration
}

type Orchestrator struct {
	tracer    trace.Tracer
	aux       AuxiliaryCollector
	assembler SnapshotAssembler
	scorer    Scorer
	store     SnapshotWriter
	latest    LatestCache
	backfill  OutcomeBackfiller
	observer  RunObserver

	assetDelay time.Duration
	running    atomic.Bool
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	newRunID   func() string
}

func NewOrchestrator(
	tracer trace.Tracer,
	aux AuxiliaryCollector,
	assembler SnapshotAssembler,
	scorer Scorer,
	store SnapshotWriter,
	latest LatestCache,
	backfill OutcomeBackfiller,
	observer RunObserver,
	opts Options,
) *Orchestrator {
	if opts.AssetDelay < 0 {
		opts.AssetDelay = 0
	} else if opts.AssetDelay == 0 {
		opts.AssetDelay = DefaultAssetDelay
	}
	return &Orchestrator{
		tracer:     tracer,
		aux:        aux,
		assembler:  assembler,
		scorer:     scorer,
		store:      store,
		latest:     latest,
		backfill:   backfill,
		observer:   observer,
		assetDelay: opts.AssetDelay,
		now:        time.Now,
		sleep:      sleepCtx,
		newRunID:   uuid.NewString,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Running reports whether a run is active.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// RunFullIngestion never returns an error; failures are collected into the
// result. A run that starts while another is active returns immediately in
// the idle state.
func (o *Orchestrator) RunFullIngestion(ctx context.Context, opts domain.RunOptions) domain.RunResult {
	if !o.running.CompareAndSwap(false, true) {
		return domain.RunResult{State: domain.StateIdle, Errors: []string{ErrRunInProgress.Error()}}
	}
	defer o.running.Store(false)

	started := o.now()
	res := domain.RunResult{RunID: o.newRunID(), State: domain.StateIdle, Errors: []string{}}

	ctx, span := o.tracer.Start(ctx, "ingest.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", res.RunID), attribute.String("type", string(runType(opts))))

	logger := log.With().Str("run_id", res.RunID).Logger()
	transition := func(state domain.RunState) {
		logger.Info().Str("from", string(res.State)).Str("to", string(state)).Msg("ingestion state")
		res.State = state
	}

	assets, unknown := resolveAssets(opts.Coins)
	for _, coin := range unknown {
		res.Errors = append(res.Errors, fmt.Sprintf("asset:%s: unknown asset", coin))
	}

	var aux *domain.Auxiliary
	if runType(opts) == domain.RunFull && o.aux != nil {
		transition(domain.StateCollectingAuxiliary)
		collected, err := o.aux.CollectAuxiliary(ctx, started)
		if err != nil {
			res.Warnings = append(res.Warnings, "auxiliary: "+err.Error())
		}
		if collected != nil {
			aux = collected
			res.Warnings = append(res.Warnings, collected.Warnings...)
		}
	}

	transition(domain.StatePerAssetLoop)
	for i, asset := range assets {
		if i > 0 {
			if err := o.sleep(ctx, o.assetDelay); err != nil {
				res.Errors = append(res.Errors, "run: "+err.Error())
				break
			}
		}
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, "run: "+err.Error())
			break
		}
		o.runAsset(ctx, asset, aux, opts, &res)
	}

	transition(domain.StatePersisting)
	if o.backfill != nil {
		bf, err := o.backfill.BackfillRealizedOutcomes(ctx, o.now())
		res.Backfill = bf
		if err != nil {
			res.Warnings = append(res.Warnings, "backfill: "+err.Error())
		}
	}

	res.Success = len(res.Errors) == 0
	if res.Success {
		transition(domain.StateDone)
	} else {
		transition(domain.StatePartialFailure)
	}
	res.DurationMs = o.now().Sub(started).Milliseconds()

	span.SetAttributes(
		attribute.Int("snapshots", res.SnapshotsCreated),
		attribute.Int("errors", len(res.Errors)),
		attribute.Bool("success", res.Success),
	)
	if o.observer != nil {
		o.observer.ObserveRun(res)
	}
	logger.Info().
		Bool("success", res.Success).
		Int("snapshots", res.SnapshotsCreated).
		Int("training_records", res.TrainingRecords).
		Int("errors", len(res.Errors)).
		Int("warnings", len(res.Warnings)).
		Int64("duration_ms", res.DurationMs).
		Msg("ingestion run finished")
	return res
}

func (o *Orchestrator) runAsset(ctx context.Context, asset domain.Asset, aux *domain.Auxiliary, opts domain.RunOptions, res *domain.RunResult) {
	ctx, span := o.tracer.Start(ctx, "ingest.asset")
	defer span.End()
	span.SetAttributes(attribute.String("asset", asset.ID))

	fail := func(kind string, err error) {
		res.Errors = append(res.Errors, fmt.Sprintf("asset:%s: %v", asset.Symbol, err))
		if o.observer != nil {
			o.observer.ObserveAssetError(asset.Symbol, kind)
		}
		log.Warn().Err(err).Str("asset", asset.Symbol).Str("kind", kind).Msg("asset ingestion failed")
	}

	snap, warnings, err := o.assembler.Assemble(ctx, asset, aux)
	for _, w := range warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}
	if err != nil {
		fail("assemble", err)
		return
	}
	snap.RunID = res.RunID

	if !opts.SkipPrediction && o.scorer != nil {
		o.scorer.Score(snap).ApplyTo(snap)
	}

	if err := o.store.SaveSnapshot(ctx, snap); err != nil {
		fail("persist", fmt.Errorf("save snapshot: %w", err))
		return
	}
	res.SnapshotsCreated++
	if o.observer != nil {
		o.observer.ObserveSnapshot(asset.Symbol, snap.Prediction)
	}

	if o.latest != nil {
		if err := o.latest.Put(ctx, snap); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("cache:%s: %v", asset.Symbol, err))
		}
	}

	if opts.StoreTrainingData {
		if err := o.store.SaveTrainingRecord(ctx, TrainingRecordFor(snap)); err != nil {
			fail("persist", fmt.Errorf("save training record: %w", err))
			return
		}
		res.TrainingRecords++
	}
}

func runType(opts domain.RunOptions) domain.RunType {
	if opts.Type == domain.RunQuick {
		return domain.RunQuick
	}
	return domain.RunFull
}

// resolveAssets maps requested ids or symbols to assets, keeping request
// order and dropping duplicates. No coins means every supported asset.
func resolveAssets(coins []string) ([]domain.Asset, []string) {
	if len(coins) == 0 {
		return append([]domain.Asset(nil), domain.SupportedAssets...), nil
	}
	seen := make(map[string]struct{}, len(coins))
	var assets []domain.Asset
	var unknown []string
	for _, c := range coins {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		a, ok := domain.LookupAsset(c)
		if !ok {
			unknown = append(unknown, c)
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		assets = append(assets, a)
	}
	return assets, unknown
}
