package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/ada-audit/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "downtown-2026")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "downtown-2026", got.Label)
	assert.Nil(t, got.Report)
	assert.Empty(t, got.Error)
}

func TestSQLite_StatusTransitions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "batch")
	require.NoError(t, err)

	for _, status := range []model.RunStatus{
		model.RunStatusMeasuring,
		model.RunStatusEvaluating,
		model.RunStatusCosting,
		model.RunStatusScheduling,
	} {
		require.NoError(t, st.UpdateRunStatus(ctx, run.ID, status))
		got, err := st.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}
}

func TestSQLite_CompleteRunStoresReport(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "batch")
	require.NoError(t, err)

	report := &model.ComplianceReport{
		RuleSetVersion:  "ada-2010",
		ComplianceScore: 75.0,
		Violations: []model.Violation{
			{AssetID: "ramp-1", RuleID: "r1", Severity: model.SeverityHigh},
		},
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, report))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, 75.0, got.Report.ComplianceScore)
	require.Len(t, got.Report.Violations, 1)
	assert.Equal(t, "ramp-1", got.Report.Violations[0].AssetID)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "batch")
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, eris.New("rule table unreadable")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "rule table unreadable")
}

func TestSQLite_UpdateMissingRun(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "no-such-run", model.RunStatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "batch-a")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "batch-b")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, &model.ComplianceReport{}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)

	byLabel, err := st.ListRuns(ctx, RunFilter{Label: "batch-b"})
	require.NoError(t, err)
	require.Len(t, byLabel, 1)
	assert.Equal(t, "batch-b", byLabel[0].Label)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_SaveViolationsAndQueryBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "batch")
	require.NoError(t, err)

	violations := []model.Violation{
		{
			AssetID:        "ramp-1",
			RuleID:         "ADAAG-406.2-running-slope",
			RuleSetVersion: "ada-2010",
			Severity:       model.SeverityHigh,
			Detected:       14.74,
			Threshold:      8.33,
			DeviationRatio: 0.77,
			Unit:           "percent",
			Cost:           &model.CostEstimate{Final: 2800, LaborHours: 24},
			Priority:       1,
			Phase:          "FY27",
		},
		{
			AssetID:        "walk-3",
			RuleID:         "ADAAG-403.5.1-clear-width",
			RuleSetVersion: "ada-2010",
			Severity:       model.SeverityMedium,
			Detected:       32,
			Threshold:      36,
			DeviationRatio: 0.111,
			Unit:           "inches",
			PricingError:   "no cost entry",
		},
	}
	require.NoError(t, st.SaveViolations(ctx, run.ID, violations))

	var count int
	var priced sql.NullFloat64
	row := st.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(cost_final) FROM run_violations WHERE run_id = ?`, run.ID)
	require.NoError(t, row.Scan(&count, &priced))
	assert.Equal(t, 2, count)
	require.True(t, priced.Valid)
	assert.InDelta(t, 2800, priced.Float64, 1e-9)

	// Re-saving the same run replaces rather than duplicates.
	require.NoError(t, st.SaveViolations(ctx, run.ID, violations))
	row = st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM run_violations WHERE run_id = ?`, run.ID)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSQLite_SaveViolationsEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.SaveViolations(context.Background(), "no-run", nil))
}

func TestSQLite_UpsertRollupsReplacesStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := []model.AssetRollup{
		{AssetID: "ramp-1", Class: model.ClassCurbRamp, Status: model.AssetNonCompliant, ViolationCount: 2, WorstSeverity: model.SeverityHigh, TotalCost: 5600},
		{AssetID: "walk-1", Class: model.ClassSidewalkSegment, Status: model.AssetCompliant},
	}
	require.NoError(t, st.UpsertRollups(ctx, first))

	// A later run finds the ramp remediated.
	second := []model.AssetRollup{
		{AssetID: "ramp-1", Class: model.ClassCurbRamp, Status: model.AssetCompliant},
	}
	require.NoError(t, st.UpsertRollups(ctx, second))

	var total int
	var status string
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM asset_rollups`).Scan(&total))
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT status FROM asset_rollups WHERE asset_id = ?`, "ramp-1").Scan(&status))
	assert.Equal(t, 2, total)
	assert.Equal(t, string(model.AssetCompliant), status)
}
