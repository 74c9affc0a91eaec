package measure

import (
	"math"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/model"
)

// contourAreaFloorPx excludes detection noise: contours below this pixel
// area never count as surface edges for gap measurement.
const contourAreaFloorPx = 50.0

// surfaceGap measures the widest opening between disjoint surface-edge
// contours, in inches. With fewer than two qualifying contours the surface
// has no measurable gap and the value is zero.
func surfaceGap(d model.Detection, scale calibrate.Scale) model.Measurement {
	m := model.Measurement{
		AssetID: d.AssetID,
		Kind:    model.KindSurfaceGap,
		Unit:    "inches",
		Method:  model.MethodStatisticalAggregate,
	}

	var qualifying []model.Contour
	for _, c := range d.Contours {
		if c.AreaPx >= contourAreaFloorPx && len(c.Points) > 0 {
			qualifying = append(qualifying, c)
		}
	}
	if len(qualifying) < 2 {
		return m
	}

	var maxGapPx float64
	for i := 0; i < len(qualifying); i++ {
		for j := i + 1; j < len(qualifying); j++ {
			gap := minPointDistance(qualifying[i].Points, qualifying[j].Points)
			if !math.IsInf(gap, 1) && gap > maxGapPx {
				maxGapPx = gap
			}
		}
	}

	m.Value = scale.ToInches(maxGapPx)
	return m
}

// surfaceQuality aggregates irregular-surface density into a bounded [0,1]
// index, 1.0 being a clean surface. Dimensionless, so the calibration
// scale does not enter.
func surfaceQuality(d model.Detection) model.Measurement {
	m := model.Measurement{
		AssetID: d.AssetID,
		Kind:    model.KindSurfaceQuality,
		Unit:    "index",
		Method:  model.MethodStatisticalAggregate,
	}

	area := shoelaceArea(d.Polygon)
	if area <= 0 {
		m.Indeterminate = true
		return m
	}

	var irregular float64
	for _, c := range d.Contours {
		if c.Irregular {
			irregular += c.AreaPx
		}
	}

	fraction := irregular / area
	if fraction > 1 {
		fraction = 1
	}
	m.Value = 1 - fraction
	return m
}
