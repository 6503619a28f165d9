package hrbf

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Decimate selects a subset of at most max samples in which no two points
// are closer than minDist. Points are visited in order and kept when no
// kept point lies within minDist, so coincident samples, which make the
// fit singular, are always merged. If more than max points survive, the
// distance is grown until they fit. It returns the indices of the kept
// samples. max <= 0 means no limit.
func Decimate(points []r3.Vec, max int, minDist float64) []int {
	if minDist <= 0 {
		minDist = 1e-9
	}
	for {
		kept := decimate(points, minDist)
		if max <= 0 || len(kept) <= max {
			return kept
		}
		// Kept count scales roughly with 1/d^2 on a surface.
		minDist *= math.Max(1.1, math.Sqrt(float64(len(kept))/float64(max)))
	}
}

func decimate(points []r3.Vec, minDist float64) []int {
	tree := kdtree.New(kdtree.Points(nil), false)
	// kdtree.Point distances are squared.
	d2 := minDist * minDist
	var kept []int
	for i, p := range points {
		q := kdtree.Point{p.X, p.Y, p.Z}
		if _, dist := tree.Nearest(q); dist < d2 {
			continue
		}
		tree.Insert(q, false)
		kept = append(kept, i)
	}
	return kept
}

// Select returns the elements of s at the given indices.
func Select[T any](s []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = s[j]
	}
	return out
}
