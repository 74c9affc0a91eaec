package measure

import (
	"math"
	"sort"

	"github.com/civicworks/ada-audit/internal/model"
)

// edge is one polygon boundary segment.
type edge struct {
	a, b   model.Point
	length float64
	angle  float64 // radians in [0, pi), direction modulo orientation
}

// polygonEdges returns the boundary segments of a polygon, implicitly
// closing the ring.
func polygonEdges(poly []model.Point) []edge {
	if len(poly) < 2 {
		return nil
	}
	edges := make([]edge, 0, len(poly))
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		angle := math.Atan2(dy, dx)
		if angle < 0 {
			angle += math.Pi
		}
		edges = append(edges, edge{a: a, b: b, length: length, angle: angle})
	}
	return edges
}

// longestEdges returns polygon edges sorted by descending length.
func longestEdges(poly []model.Point) []edge {
	edges := polygonEdges(poly)
	sort.Slice(edges, func(i, j int) bool { return edges[i].length > edges[j].length })
	return edges
}

// angleBetween returns the acute angle between two edge directions, in
// radians within [0, pi/2].
func angleBetween(a, b edge) float64 {
	d := math.Abs(a.angle - b.angle)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}

// pointLineDistance returns the orthogonal distance from p to the infinite
// line through the edge e.
func pointLineDistance(p model.Point, e edge) float64 {
	dx, dy := e.b.X-e.a.X, e.b.Y-e.a.Y
	num := math.Abs(dy*(p.X-e.a.X) - dx*(p.Y-e.a.Y))
	return num / math.Hypot(dx, dy)
}

// shoelaceArea returns the absolute area of a polygon ring in square pixels.
func shoelaceArea(poly []model.Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	var sum float64
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// minPointDistance returns the smallest pairwise distance between two point
// sets. Returns +Inf when either set is empty.
func minPointDistance(a, b []model.Point) float64 {
	minD := math.Inf(1)
	for _, p := range a {
		for _, q := range b {
			if d := math.Hypot(p.X-q.X, p.Y-q.Y); d < minD {
				minD = d
			}
		}
	}
	return minD
}
