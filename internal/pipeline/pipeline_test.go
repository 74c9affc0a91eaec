package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/cost"
	"github.com/civicworks/ada-audit/internal/measure"
	"github.com/civicworks/ada-audit/internal/model"
	"github.com/civicworks/ada-audit/internal/plan"
	"github.com/civicworks/ada-audit/internal/rules"
	"github.com/civicworks/ada-audit/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	prio, err := plan.NewPrioritizer(1.0, plan.TieBreakCostDesc)
	require.NoError(t, err)

	rs := rules.Default()
	return New(
		measure.NewExtractor(calibrate.NewResolver(0), 4),
		rules.NewEngine(rs, 0.5),
		rs.Version,
		cost.NewEstimator(cost.Default()),
		plan.NewScheduler(prio),
		st,
	), st
}

// steepRamp is a curb ramp quad rising 20 inches over a 120 inch run,
// twice the allowed 1:12 grade.
func steepRamp(assetID, imageID string) model.Detection {
	return model.Detection{
		AssetID:    assetID,
		Class:      model.ClassCurbRamp,
		ImageID:    imageID,
		Confidence: 0.95,
		Latitude:   40.44,
		Longitude:  -79.99,
		Polygon: []model.Point{
			{X: 0, Y: 0}, {X: 120, Y: 20}, {X: 120, Y: 50}, {X: 0, Y: 30},
		},
	}
}

func calibratedBatch(label string, dets ...model.Detection) model.Batch {
	cals := make(map[string]model.CalibrationContext)
	for _, d := range dets {
		cals[d.ImageID] = model.CalibrationContext{
			ImageID:      d.ImageID,
			Reference:    model.RefObject,
			ObjectSpanIn: 36,
			ObjectSpanPx: 36,
			Certainty:    0.95,
		}
	}
	return model.Batch{Label: label, Detections: dets, Calibrations: cals}
}

func TestRun_EndToEnd(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	batch := calibratedBatch("downtown", steepRamp("ramp-1", "img-1"))
	rep, err := p.Run(ctx, batch, []model.PhaseBudget{{Label: "FY27", Cap: 100000}})
	require.NoError(t, err)

	require.NotEmpty(t, rep.Violations)
	var slope *model.Violation
	for i := range rep.Violations {
		if rep.Violations[i].RuleID == "ADAAG-406.2-running-slope" {
			slope = &rep.Violations[i]
		}
	}
	require.NotNil(t, slope, "steep ramp must fail the running slope rule")
	assert.InDelta(t, 16.67, slope.Detected, 0.1)
	assert.InDelta(t, 1.0, slope.DeviationRatio, 0.01)
	require.NotNil(t, slope.Cost)
	assert.Greater(t, slope.Cost.Final, 0.0)
	assert.Equal(t, "FY27", slope.Phase)
	assert.Equal(t, 1, slope.Priority)

	assert.Equal(t, "ada-2010", rep.RuleSetVersion)
	assert.Equal(t, "unit-costs-2026", rep.CostModelVersion)
	assert.Greater(t, rep.TotalCost, 0.0)

	// Run record persisted with the report attached.
	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "downtown", runs[0].Label)
	require.NotNil(t, runs[0].Report)
	assert.Equal(t, len(rep.Violations), len(runs[0].Report.Violations))
}

func TestRun_IdempotentAcrossInputOrder(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	a := steepRamp("ramp-a", "img-a")
	b := steepRamp("ramp-b", "img-b")

	first, err := p.Run(ctx, calibratedBatch("batch", a, b), nil)
	require.NoError(t, err)
	second, err := p.Run(ctx, calibratedBatch("batch", b, a), nil)
	require.NoError(t, err)

	require.Equal(t, len(first.Violations), len(second.Violations))
	for i := range first.Violations {
		assert.Equal(t, first.Violations[i].Key(), second.Violations[i].Key())
		assert.Equal(t, first.Violations[i].Cost.Final, second.Violations[i].Cost.Final)
	}
}

func TestRun_UnknownClassIsolated(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	bad := model.Detection{AssetID: "mystery-1", Class: "fire_hydrant", ImageID: "img-x", Confidence: 0.9}
	batch := calibratedBatch("batch", steepRamp("ramp-1", "img-1"), bad)

	rep, err := p.Run(ctx, batch, nil)
	require.NoError(t, err, "a bad asset must not abort the batch")

	require.Len(t, rep.AssetErrors, 1)
	assert.Equal(t, "mystery-1", rep.AssetErrors[0].AssetID)
	assert.Equal(t, "measure", rep.AssetErrors[0].Stage)
	assert.NotEmpty(t, rep.Violations, "the good asset is still assessed")
}

func TestRun_NoBudgetsEverythingBacklogged(t *testing.T) {
	p, _ := newTestPipeline(t)

	rep, err := p.Run(context.Background(), calibratedBatch("batch", steepRamp("ramp-1", "img-1")), nil)
	require.NoError(t, err)

	assert.Empty(t, rep.Plan.Phases)
	assert.NotEmpty(t, rep.Plan.Backlog)
	for _, v := range rep.Plan.Backlog {
		assert.Equal(t, model.PhaseBacklog, v.Phase)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	p, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, calibratedBatch("batch", steepRamp("ramp-1", "img-1")), nil)
	require.Error(t, err)
}

func TestExecute_PreCreatedRunCompletes(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "async-batch")
	require.NoError(t, err)

	batch := calibratedBatch("async-batch", steepRamp("ramp-1", "img-1"))
	rep, err := p.Execute(ctx, run.ID, batch, nil)
	require.NoError(t, err)
	require.NotEmpty(t, rep.Violations)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Report)
	assert.Len(t, got.Report.Violations, len(rep.Violations))
}
