package measure

import (
	"math"

	"github.com/civicworks/ada-audit/internal/calibrate"
	"github.com/civicworks/ada-audit/internal/model"
)

const (
	// widthStations is the number of sample points checked along the
	// length of a segment. Compliance is governed by the narrowest point,
	// so more stations only tighten the estimate.
	widthStations = 9

	// parallelTolerance is the maximum angular difference (radians)
	// between two edges still treated as the opposing sides of a path.
	parallelTolerance = 15 * math.Pi / 180
)

// clearWidth measures the minimum orthogonal distance between the two
// longest near-parallel boundary edges, sampled at stations along the
// longer edge. Reports the minimum width found, in inches.
func clearWidth(d model.Detection, scale calibrate.Scale) model.Measurement {
	m := model.Measurement{
		AssetID: d.AssetID,
		Kind:    model.KindWidth,
		Unit:    "inches",
		Method:  model.MethodGeometricFit,
	}

	long, opposite, ok := opposingEdges(d.Polygon)
	if !ok {
		m.Indeterminate = true
		return m
	}

	minPx := math.Inf(1)
	for i := 0; i < widthStations; i++ {
		t := float64(i) / float64(widthStations-1)
		station := model.Point{
			X: long.a.X + t*(long.b.X-long.a.X),
			Y: long.a.Y + t*(long.b.Y-long.a.Y),
		}
		if dist := pointLineDistance(station, opposite); dist < minPx {
			minPx = dist
		}
	}

	if math.IsInf(minPx, 1) {
		m.Indeterminate = true
		return m
	}

	m.Value = scale.ToInches(minPx)
	return m
}

// opposingEdges finds the longest edge and the longest other edge within
// parallelTolerance of its direction. Returns false when the polygon has
// no near-parallel opposing pair.
func opposingEdges(poly []model.Point) (long, opposite edge, ok bool) {
	edges := longestEdges(poly)
	if len(edges) < 2 {
		return edge{}, edge{}, false
	}

	long = edges[0]
	for _, e := range edges[1:] {
		if angleBetween(long, e) <= parallelTolerance {
			return long, e, true
		}
	}
	return edge{}, edge{}, false
}
