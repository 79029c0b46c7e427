package job

import (
	"context"
	"time"

	"market-pulse/internal/domain"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type OutcomeBackfiller interface {
	BackfillRealizedOutcomes(ctx context.Context, now time.Time) (domain.BackfillResult, error)
}

type BackfillObserver interface {
	ObserveBackfill(res domain.BackfillResult)
}

// BackfillJob attaches realized outcomes between ingestion runs so matured
// snapshots do not wait for the next cron tick.
type BackfillJob struct {
	tracer       trace.Tracer
	backfiller   OutcomeBackfiller
	observer     BackfillObserver
	pollInterval time.Duration
	now          func() time.Time
}

func NewBackfillJob(tracer trace.Tracer, backfiller OutcomeBackfiller, observer BackfillObserver, pollInterval time.Duration) *BackfillJob {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	return &BackfillJob{
		tracer:       tracer,
		backfiller:   backfiller,
		observer:     observer,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

func (j *BackfillJob) Start(ctx context.Context) {
	if j.backfiller == nil {
		log.Warn().Msg("backfill job disabled: no backfiller")
		<-ctx.Done()
		return
	}
	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *BackfillJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "backfill-job.run-once")
	defer span.End()

	res, err := j.backfiller.BackfillRealizedOutcomes(ctx, j.now().UTC())
	if j.observer != nil {
		j.observer.ObserveBackfill(res)
	}
	if err != nil {
		log.Error().Err(err).Int("errors", res.Errors).Msg("backfill failed")
		return
	}
	if res.Updated > 0 || res.Errors > 0 {
		log.Info().Int("updated", res.Updated).Int("errors", res.Errors).Msg("backfill complete")
	}
}
