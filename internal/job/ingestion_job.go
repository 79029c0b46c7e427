package job

import (
	"context"
	"fmt"
	"time"

	"market-pulse/internal/domain"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type IngestionRunner interface {
	RunFullIngestion(ctx context.Context, opts domain.RunOptions) domain.RunResult
}

// IngestionJob triggers a full ingestion run on a standard five-field cron
// schedule evaluated in UTC.
type IngestionJob struct {
	tracer     trace.Tracer
	runner     IngestionRunner
	schedule   string
	opts       domain.RunOptions
	runTimeout time.Duration
	cron       *cron.Cron
}

func NewIngestionJob(tracer trace.Tracer, runner IngestionRunner, schedule string, opts domain.RunOptions, runTimeout time.Duration) *IngestionJob {
	if runTimeout <= 0 {
		runTimeout = 30 * time.Minute
	}
	if opts.Type == "" {
		opts.Type = domain.RunFull
	}
	return &IngestionJob{
		tracer:     tracer,
		runner:     runner,
		schedule:   schedule,
		opts:       opts,
		runTimeout: runTimeout,
		cron:       cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers the schedule and blocks until ctx is cancelled. A run in
// progress is allowed to finish before Start returns.
func (j *IngestionJob) Start(ctx context.Context) error {
	if j.runner == nil {
		log.Warn().Msg("ingestion job disabled: no runner")
		<-ctx.Done()
		return nil
	}

	if _, err := j.cron.AddFunc(j.schedule, func() { j.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule ingestion %q: %w", j.schedule, err)
	}
	j.cron.Start()
	log.Info().Str("schedule", j.schedule).Msg("ingestion scheduler started")

	<-ctx.Done()
	<-j.cron.Stop().Done()
	log.Info().Msg("ingestion scheduler stopped")
	return nil
}

// Next reports when the schedule fires next, or the zero time before Start.
func (j *IngestionJob) Next() time.Time {
	for _, e := range j.cron.Entries() {
		return e.Next
	}
	return time.Time{}
}

func (j *IngestionJob) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, j.runTimeout)
	defer cancel()

	ctx, span := j.tracer.Start(ctx, "ingestion-job.run-once")
	defer span.End()

	res := j.runner.RunFullIngestion(ctx, j.opts)
	span.SetAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("state", string(res.State)),
		attribute.Int("snapshots", res.SnapshotsCreated),
	)
	ev := log.Info()
	if !res.Success {
		ev = log.Warn()
	}
	ev.Str("run_id", res.RunID).
		Str("state", string(res.State)).
		Int("snapshots", res.SnapshotsCreated).
		Int("training_records", res.TrainingRecords).
		Int("errors", len(res.Errors)).
		Int("warnings", len(res.Warnings)).
		Int64("duration_ms", res.DurationMs).
		Msg("scheduled ingestion finished")
}
