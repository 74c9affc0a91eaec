package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/ada-audit/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "downtown-2026", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "downtown-2026")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, label, status, report, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_WithReport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	reportJSON := []byte(`{"compliance_score": 80, "rule_set_version": "ada-2010"}`)
	mock.ExpectQuery(`SELECT id, label, status, report, error, created_at, updated_at FROM runs`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "label", "status", "report", "error", "created_at", "updated_at"}).
			AddRow("run-1", "batch", "complete", reportJSON, (*string)(nil), now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run.Report)
	assert.Equal(t, 80.0, run.Report.ComplianceScore)
	assert.Equal(t, "ada-2010", run.Report.RuleSetVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("measuring", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusMeasuring)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET report`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.ComplianceReport{ComplianceScore: 90})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", eris.New("boom"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, label, status, report, error, created_at, updated_at FROM runs WHERE true AND status = \$1`).
		WithArgs("complete", 100).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "label", "status", "report", "error", "created_at", "updated_at"}).
			AddRow("run-1", "batch", "complete", []byte(nil), (*string)(nil), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveViolations(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"run_violations"}, runViolationColumns).WillReturnResult(2)

	violations := []model.Violation{
		{
			AssetID:        "ramp-1",
			RuleID:         "ADAAG-406.2-running-slope",
			RuleSetVersion: "ada-2010",
			Severity:       model.SeverityHigh,
			Cost:           &model.CostEstimate{Final: 2800, LaborHours: 24},
		},
		{
			AssetID:        "walk-3",
			RuleID:         "ADAAG-403.5.1-clear-width",
			RuleSetVersion: "ada-2010",
			Severity:       model.SeverityMedium,
		},
	}
	err := st.SaveViolations(context.Background(), "run-1", violations)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveViolationsEmpty(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	assert.NoError(t, st.SaveViolations(context.Background(), "run-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRollups(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_asset_rollups"}, assetRollupColumns).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rollups := []model.AssetRollup{
		{AssetID: "ramp-1", Class: model.ClassCurbRamp, Status: model.AssetNonCompliant, ViolationCount: 1, WorstSeverity: model.SeverityHigh, TotalCost: 2800},
	}
	err := st.UpsertRollups(context.Background(), rollups)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
