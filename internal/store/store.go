// Package store persists assessment runs and their reports behind a
// driver-agnostic interface with SQLite and Postgres implementations.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/civicworks/ada-audit/internal/db"
	"github.com/civicworks/ada-audit/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Label  string          `json:"label,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for assessment runs.
type Store interface {
	CreateRun(ctx context.Context, label string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, report *model.ComplianceReport) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// SaveViolations bulk-inserts the violation rows for a completed run.
	SaveViolations(ctx context.Context, runID string, violations []model.Violation) error
	// UpsertRollups refreshes the per-asset rollup table with the latest
	// assessment outcome for each asset.
	UpsertRollups(ctx context.Context, rollups []model.AssetRollup) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the Postgres store uses. Satisfied
// by pgxmock.PgxPoolIface in tests.
type Pool interface {
	db.Pool
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}
