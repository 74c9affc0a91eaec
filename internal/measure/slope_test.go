package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/model"
)

// rampQuad is a ramp boundary rising 10px over a 120px run on each edge.
// The least-squares fit over its vertices has slope 1/12 (8.33%).
func rampQuad() []model.Point {
	return []model.Point{
		{X: 0, Y: 0}, {X: 120, Y: 10}, {X: 120, Y: 40}, {X: 0, Y: 30},
	}
}

func TestRunningSlope_RampQuad(t *testing.T) {
	d := model.Detection{AssetID: "ramp-1", Polygon: rampQuad()}
	scale := calibrate.Scale{InchesPerPx: 0.1, Certainty: 1}

	m := runningSlope(d, scale)
	assert.False(t, m.Indeterminate)
	assert.InDelta(t, 8.33, m.Value, 0.01)
	assert.Equal(t, model.KindRunningSlope, m.Kind)
	assert.Equal(t, "percent", m.Unit)
	assert.Equal(t, model.MethodGeometricFit, m.Method)
}

func TestRunningSlope_NearZeroRun(t *testing.T) {
	d := model.Detection{AssetID: "ramp-1", Polygon: rampQuad()}
	// 120px run at 0.01 in/px is 1.2 inches, under the 6 inch floor.
	scale := calibrate.Scale{InchesPerPx: 0.01, Certainty: 1}

	m := runningSlope(d, scale)
	assert.True(t, m.Indeterminate)
	assert.Zero(t, m.Value)
}

func TestRunningSlope_TooFewPoints(t *testing.T) {
	d := model.Detection{Polygon: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 1}}}
	m := runningSlope(d, calibrate.Scale{InchesPerPx: 1, Certainty: 1})
	assert.True(t, m.Indeterminate)
}

func TestRunningSlope_SteeperThan45Degrees(t *testing.T) {
	// Vertical-ish boundary: rise 120 over run 10.
	d := model.Detection{Polygon: []model.Point{
		{X: 0, Y: 0}, {X: 10, Y: 120}, {X: 40, Y: 120}, {X: 30, Y: 0},
	}}
	m := runningSlope(d, calibrate.Scale{InchesPerPx: 1, Certainty: 1})
	assert.True(t, m.Indeterminate)
}

func TestCrossSlope_ElongatedQuad(t *testing.T) {
	// The ramp quad rotated so travel runs along the image vertical.
	d := model.Detection{AssetID: "sw-1", Polygon: []model.Point{
		{X: 0, Y: 0}, {X: 10, Y: 120}, {X: 40, Y: 120}, {X: 30, Y: 0},
	}}
	scale := calibrate.Scale{InchesPerPx: 0.1, Certainty: 1}

	m := crossSlope(d, scale)
	assert.False(t, m.Indeterminate)
	assert.InDelta(t, 8.33, m.Value, 0.01)
}

func TestCrossSlope_FlatIsZero(t *testing.T) {
	d := model.Detection{Polygon: []model.Point{
		{X: 0, Y: 0}, {X: 0, Y: 200}, {X: 40, Y: 200}, {X: 40, Y: 0},
	}}
	m := crossSlope(d, calibrate.Scale{InchesPerPx: 1, Certainty: 1})
	assert.False(t, m.Indeterminate)
	assert.InDelta(t, 0.0, m.Value, 1e-9)
}

func TestSlopeDegrees(t *testing.T) {
	assert.InDelta(t, 4.76, slopeDegrees(8.33), 0.01) // 1:12 grade
	assert.InDelta(t, 45.0, slopeDegrees(100), 1e-9)
}
