// Package store persists simulation runs and their per-job results.
package store

import (
	"context"

	"github.com/me/schedsim/pkg/model"
)

// Store defines the persistence layer for simulation runs.
type Store interface {
	// Run CRUD
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRun(ctx context.Context, run *model.Run) error

	// Job results
	InsertJobRecords(ctx context.Context, runID string, records []*model.JobRecord) error
	ListJobRecords(ctx context.Context, runID string) ([]*model.JobRecord, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
