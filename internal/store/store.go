// Package store persists run metadata: one record per pipeline run and one
// per stage, for observability and the status/serve surfaces.
package store

import (
	"context"

	"github.com/sells-group/newslake/internal/model"
)

// Store defines the run-metadata persistence interface.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, runDate string, mode model.RunMode) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Stages
	RecordStage(ctx context.Context, rec model.StageRecord) error
	ListStages(ctx context.Context, runID string) ([]model.StageRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
