package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civicworks/ada-audit/internal/db"
	"github.com/civicworks/ada-audit/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	label      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	report     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);

CREATE TABLE IF NOT EXISTS run_violations (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	asset_id         TEXT NOT NULL,
	rule_id          TEXT NOT NULL,
	rule_set_version TEXT NOT NULL,
	severity         TEXT NOT NULL,
	detected         DOUBLE PRECISION NOT NULL,
	threshold        DOUBLE PRECISION NOT NULL,
	deviation_ratio  DOUBLE PRECISION NOT NULL,
	unit             TEXT NOT NULL,
	cost_final       DOUBLE PRECISION,
	labor_hours      DOUBLE PRECISION,
	priority         INTEGER NOT NULL DEFAULT 0,
	phase            TEXT NOT NULL DEFAULT '',
	latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, asset_id, rule_id)
);

CREATE INDEX IF NOT EXISTS idx_run_violations_rule ON run_violations(rule_id);
CREATE INDEX IF NOT EXISTS idx_run_violations_severity ON run_violations(severity);

CREATE TABLE IF NOT EXISTS asset_rollups (
	asset_id        TEXT PRIMARY KEY,
	class           TEXT NOT NULL,
	status          TEXT NOT NULL,
	violation_count INTEGER NOT NULL DEFAULT 0,
	worst_severity  TEXT NOT NULL DEFAULT '',
	total_cost      DOUBLE PRECISION NOT NULL DEFAULT 0,
	latitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude       DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_asset_rollups_status ON asset_rollups(status);
`

var runViolationColumns = []string{
	"run_id", "asset_id", "rule_id", "rule_set_version", "severity",
	"detected", "threshold", "deviation_ratio", "unit",
	"cost_final", "labor_hours", "priority", "phase", "latitude", "longitude",
}

var assetRollupColumns = []string{
	"asset_id", "class", "status", "violation_count", "worst_severity",
	"total_cost", "latitude", "longitude", "updated_at",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) CreateRun(ctx context.Context, label string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, label, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, label, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Label:     label,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, report *model.ComplianceReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET report = $1, status = $2, updated_at = $3 WHERE id = $4`,
		reportJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), runErr.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) SaveViolations(ctx context.Context, runID string, violations []model.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(violations))
	for _, v := range violations {
		var costFinal, laborHours any
		if v.Cost != nil {
			costFinal = v.Cost.Final
			laborHours = v.Cost.LaborHours
		}
		rows = append(rows, []any{
			runID, v.AssetID, v.RuleID, v.RuleSetVersion, string(v.Severity),
			v.Detected, v.Threshold, v.DeviationRatio, v.Unit,
			costFinal, laborHours, v.Priority, v.Phase, v.Latitude, v.Longitude,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "run_violations", runViolationColumns, rows)
	return eris.Wrapf(err, "postgres: save violations for run %s", runID)
}

func (s *PostgresStore) UpsertRollups(ctx context.Context, rollups []model.AssetRollup) error {
	if len(rollups) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(rollups))
	for _, r := range rollups {
		rows = append(rows, []any{
			r.AssetID, string(r.Class), string(r.Status), r.ViolationCount,
			string(r.WorstSeverity), r.TotalCost, r.Latitude, r.Longitude, now,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "asset_rollups",
		Columns:      assetRollupColumns,
		ConflictKeys: []string{"asset_id"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert rollups")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var reportJSON []byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, label, status, report, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Label, &r.Status, &reportJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if len(reportJSON) > 0 {
		r.Report = &model.ComplianceReport{}
		if err := json.Unmarshal(reportJSON, r.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, label, status, report, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Label != "" {
		query += fmt.Sprintf(` AND label = $%d`, argIdx)
		args = append(args, filter.Label)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var reportJSON []byte
		var errMsg *string
		if err := rows.Scan(&r.ID, &r.Label, &r.Status, &reportJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(reportJSON) > 0 {
			r.Report = &model.ComplianceReport{}
			if err := json.Unmarshal(reportJSON, r.Report); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal report")
			}
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
