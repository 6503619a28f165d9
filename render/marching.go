package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

const marchingCubesMaxTriangles = 5

// mcPairTable lists the corners joined by each cube edge.
var mcPairTable = [12][2]uint8{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// mcToTriangles writes the triangles of the cube with corners p and field
// values v crossing iso into dst and returns how many were written. dst
// must have room for marchingCubesMaxTriangles triangles. Zero area
// triangles are not written.
func mcToTriangles(dst []Triangle3, p [8]r3.Vec, v [8]float64, iso float64) int {
	// which of the 0..255 patterns do we have?
	index := 0
	for i := 0; i < 8; i++ {
		if v[i] < iso {
			index |= 1 << uint(i)
		}
	}
	// do we have any triangles to create?
	if mcEdgeTable[index] == 0 {
		return 0
	}
	// work out the interpolated points on the edges
	var points [12]r3.Vec
	for i := 0; i < 12; i++ {
		bit := uint16(1) << uint(i)
		if mcEdgeTable[index]&bit != 0 {
			a := mcPairTable[i][0]
			b := mcPairTable[i][1]
			points[i] = VertexInterp(iso, p[a], p[b], v[a], v[b])
		}
	}
	table := mcTriangleTable[index]
	n := 0
	for i := 0; i < len(table); i += 3 {
		t := Triangle3{points[table[i]], points[table[i+1]], points[table[i+2]]}
		if degenerate(t) {
			continue
		}
		dst[n] = t
		n++
	}
	return n
}

// VertexInterp returns the point on the segment p1-p2 where the field,
// linearly interpolated between v1 at p1 and v2 at p2, equals iso. Equal
// endpoint values return p1.
func VertexInterp(iso float64, p1, p2 r3.Vec, v1, v2 float64) r3.Vec {
	if v1 == v2 {
		return p1
	}
	t := (iso - v1) / (v2 - v1)
	return r3.Add(p1, r3.Scale(t, r3.Sub(p2, p1)))
}

// degenerate reports whether the triangle has (numerically) zero area.
func degenerate(t Triangle3) bool {
	if t[0] == t[1] || t[1] == t[2] || t[2] == t[0] {
		return true
	}
	return r3.Norm2(t.Normal()) == 0
}
