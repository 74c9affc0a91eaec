package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/model"
)

func TestSurfaceGap_TwoContours(t *testing.T) {
	d := model.Detection{Contours: []model.Contour{
		{AreaPx: 60, Points: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}},
		{AreaPx: 80, Points: []model.Point{{X: 15, Y: 0}, {X: 25, Y: 0}}},
	}}
	scale := calibrate.Scale{InchesPerPx: 0.1, Certainty: 1}

	m := surfaceGap(d, scale)
	assert.InDelta(t, 0.5, m.Value, 1e-9) // 5px opening at 0.1 in/px
	assert.Equal(t, model.MethodStatisticalAggregate, m.Method)
}

func TestSurfaceGap_NoiseContourExcluded(t *testing.T) {
	d := model.Detection{Contours: []model.Contour{
		{AreaPx: 60, Points: []model.Point{{X: 0, Y: 0}}},
		{AreaPx: 5, Points: []model.Point{{X: 100, Y: 0}}}, // under the area floor
	}}
	m := surfaceGap(d, calibrate.Scale{InchesPerPx: 1, Certainty: 1})
	assert.Zero(t, m.Value)
}

func TestSurfaceGap_WidestPairGoverns(t *testing.T) {
	d := model.Detection{Contours: []model.Contour{
		{AreaPx: 60, Points: []model.Point{{X: 0, Y: 0}}},
		{AreaPx: 60, Points: []model.Point{{X: 3, Y: 0}}},
		{AreaPx: 60, Points: []model.Point{{X: 11, Y: 0}}},
	}}
	m := surfaceGap(d, calibrate.Scale{InchesPerPx: 1, Certainty: 1})
	assert.InDelta(t, 11.0, m.Value, 1e-9)
}

func TestSurfaceQuality_CleanSurface(t *testing.T) {
	d := model.Detection{Polygon: []model.Point{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
	}}
	m := surfaceQuality(d)
	assert.InDelta(t, 1.0, m.Value, 1e-9)
	assert.Equal(t, "index", m.Unit)
}

func TestSurfaceQuality_IrregularFraction(t *testing.T) {
	d := model.Detection{
		Polygon: []model.Point{
			{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
		},
		Contours: []model.Contour{
			{AreaPx: 1500, Irregular: true},
			{AreaPx: 1000, Irregular: true},
			{AreaPx: 9999, Irregular: false}, // intact surface, not counted
		},
	}
	m := surfaceQuality(d)
	assert.InDelta(t, 0.75, m.Value, 1e-9)
}

func TestSurfaceQuality_ClampedAtZero(t *testing.T) {
	d := model.Detection{
		Polygon:  []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		Contours: []model.Contour{{AreaPx: 5000, Irregular: true}},
	}
	m := surfaceQuality(d)
	assert.Zero(t, m.Value)
}

func TestSurfaceQuality_DegeneratePolygon(t *testing.T) {
	m := surfaceQuality(model.Detection{Polygon: []model.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}})
	assert.True(t, m.Indeterminate)
}

func TestShoelaceArea(t *testing.T) {
	square := []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	assert.InDelta(t, 100.0, shoelaceArea(square), 1e-9)
	assert.Zero(t, shoelaceArea(square[:2]))
}
