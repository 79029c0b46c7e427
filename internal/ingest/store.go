package ingest

import (
	"context"
	"time"

	"market-pulse/internal/domain"
)

// SnapshotWriter persists the outputs of one asset iteration.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, s *domain.Snapshot) error
	SaveTrainingRecord(ctx context.Context, r domain.TrainingRecord) error
}

// OutcomeStore serves the realized-outcome backfill.
type OutcomeStore interface {
	// ListBackfillCandidates returns predicted snapshots taken at or before
	// cutoff whose outcome for horizon is still empty.
	ListBackfillCandidates(ctx context.Context, horizon domain.Horizon, cutoff time.Time, limit int) ([]*domain.Snapshot, error)
	AttachRealizedOutcome(ctx context.Context, o domain.RealizedOutcome) error
}

// SnapshotStore is the full persistence collaborator.
type SnapshotStore interface {
	SnapshotWriter
	OutcomeStore
	GetLatestSnapshot(ctx context.Context, assetID string) (*domain.Snapshot, error)
	ListSnapshots(ctx context.Context, assetID string, since time.Time, limit int) ([]*domain.Snapshot, error)
}
