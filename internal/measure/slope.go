package measure

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/model"
)

// minRunInches is the smallest physical run over which a slope fit is
// considered meaningful. Below it the fit is reported indeterminate
// instead of amplifying pixel noise into a division-by-near-zero ratio.
const minRunInches = 6.0

// runningSlope fits a line to the detection boundary and reports the grade
// along the direction of travel as a percentage. The image vertical axis
// approximates elevation under the oblique ground-level capture assumption.
func runningSlope(d model.Detection, scale calibrate.Scale) model.Measurement {
	m := model.Measurement{
		AssetID: d.AssetID,
		Kind:    model.KindRunningSlope,
		Unit:    "percent",
		Method:  model.MethodGeometricFit,
	}

	xs, ys := boundaryCoords(d.Polygon)
	ratio, ok := fitSlopeRatio(xs, ys, scale)
	if !ok {
		m.Indeterminate = true
		return m
	}

	m.Value = ratio * 100
	return m
}

// crossSlope reports the grade perpendicular to the direction of travel,
// from the same least-squares machinery with the axes swapped.
func crossSlope(d model.Detection, scale calibrate.Scale) model.Measurement {
	m := model.Measurement{
		AssetID: d.AssetID,
		Kind:    model.KindCrossSlope,
		Unit:    "percent",
		Method:  model.MethodGeometricFit,
	}

	xs, ys := boundaryCoords(d.Polygon)
	ratio, ok := fitSlopeRatio(ys, xs, scale)
	if !ok {
		m.Indeterminate = true
		return m
	}

	m.Value = ratio * 100
	return m
}

// fitSlopeRatio least-squares fits elevation over run and returns the
// absolute rise/run ratio. Returns false for degenerate geometry: too few
// samples, a physical run under minRunInches, or a near-vertical fit.
func fitSlopeRatio(run, elev []float64, scale calibrate.Scale) (float64, bool) {
	if len(run) < 3 {
		return 0, false
	}

	minR, maxR := run[0], run[0]
	for _, v := range run[1:] {
		minR = math.Min(minR, v)
		maxR = math.Max(maxR, v)
	}
	if scale.ToInches(maxR-minR) < minRunInches {
		return 0, false
	}

	_, beta := stat.LinearRegression(run, elev, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, false
	}

	ratio := math.Abs(beta)
	// A fit steeper than 45 degrees is not a walking surface; the boundary
	// geometry is degenerate for slope purposes.
	if ratio > 1 {
		return 0, false
	}
	return ratio, true
}

// boundaryCoords splits polygon vertices into parallel coordinate slices
// for regression.
func boundaryCoords(poly []model.Point) (xs, ys []float64) {
	xs = make([]float64, len(poly))
	ys = make([]float64, len(poly))
	for i, p := range poly {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}

// slopeDegrees converts a slope percentage to degrees.
func slopeDegrees(percent float64) float64 {
	return math.Atan(percent/100) * 180 / math.Pi
}
