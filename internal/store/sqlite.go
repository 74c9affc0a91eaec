package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civicworks/ada-audit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	report     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);

CREATE TABLE IF NOT EXISTS run_violations (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	asset_id         TEXT NOT NULL,
	rule_id          TEXT NOT NULL,
	rule_set_version TEXT NOT NULL,
	severity         TEXT NOT NULL,
	detected         REAL NOT NULL,
	threshold        REAL NOT NULL,
	deviation_ratio  REAL NOT NULL,
	unit             TEXT NOT NULL,
	cost_final       REAL,
	labor_hours      REAL,
	priority         INTEGER NOT NULL DEFAULT 0,
	phase            TEXT NOT NULL DEFAULT '',
	latitude         REAL NOT NULL DEFAULT 0,
	longitude        REAL NOT NULL DEFAULT 0,
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
	total_cost      REAL NOT NULL DEFAULT 0,
	latitude        REAL NOT NULL DEFAULT 0,
	longitude       REAL NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_asset_rollups_status ON asset_rollups(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, label string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, label, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, label, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Label:     label,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, report *model.ComplianceReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET report = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(reportJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), runErr.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) SaveViolations(ctx context.Context, runID string, violations []model.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO run_violations
		(run_id, asset_id, rule_id, rule_set_version, severity, detected, threshold,
		 deviation_ratio, unit, cost_final, labor_hours, priority, phase, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare violation insert")
	}
	defer stmt.Close()

	for _, v := range violations {
		var costFinal, laborHours any
		if v.Cost != nil {
			costFinal = v.Cost.Final
			laborHours = v.Cost.LaborHours
		}
		if _, err := stmt.ExecContext(ctx,
			runID, v.AssetID, v.RuleID, v.RuleSetVersion, string(v.Severity),
			v.Detected, v.Threshold, v.DeviationRatio, v.Unit,
			costFinal, laborHours, v.Priority, v.Phase, v.Latitude, v.Longitude,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert violation %s", v.Key())
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit violations")
}

func (s *SQLiteStore) UpsertRollups(ctx context.Context, rollups []model.AssetRollup) error {
	if len(rollups) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO asset_rollups
		(asset_id, class, status, violation_count, worst_severity, total_cost, latitude, longitude, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (asset_id) DO UPDATE SET
			class = excluded.class,
			status = excluded.status,
			violation_count = excluded.violation_count,
			worst_severity = excluded.worst_severity,
			total_cost = excluded.total_cost,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare rollup upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range rollups {
		if _, err := stmt.ExecContext(ctx,
			r.AssetID, string(r.Class), string(r.Status), r.ViolationCount,
			string(r.WorstSeverity), r.TotalCost, r.Latitude, r.Longitude, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert rollup %s", r.AssetID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit rollups")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, status, report, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var reportJSON, errMsg sql.NullString
	err := row.Scan(&r.ID, &r.Label, &r.Status, &reportJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	if reportJSON.Valid {
		r.Report = &model.ComplianceReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	r.Error = errMsg.String
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, label, status, report, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Label != "" {
		query += ` AND label = ?`
		args = append(args, filter.Label)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var reportJSON, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.Label, &r.Status, &reportJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if reportJSON.Valid {
			r.Report = &model.ComplianceReport{}
			if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal report")
			}
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}
