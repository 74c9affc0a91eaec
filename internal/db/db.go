// Package db provides shared PostgreSQL helpers for bulk copy and upsert
// operations used by the run store.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Pool is the subset of pgxpool.Pool the bulk helpers need.
type Pool interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}
