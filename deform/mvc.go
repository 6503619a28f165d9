package deform

import (
	"math"

	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// meanValueWeights returns the normalized mean value coordinates of vertex
// i with respect to its ordered closed ring, with the ring projected onto
// the plane through the vertex with normal n. Angles are signed about n so
// the weights reproduce the vertex exactly: sum_j w_j*(q_j - v) = 0 in
// the plane. It returns nil if the ring is degenerate in that plane.
func meanValueWeights(verts []r3.Vec, i int, ring []int, n r3.Vec) []float64 {
	k := len(ring)
	if k < 3 || n == (r3.Vec{}) {
		return nil
	}
	v := verts[i]
	d := make([]r3.Vec, k)
	l := make([]float64, k)
	for j, nb := range ring {
		d[j] = d3.Reject(r3.Sub(verts[nb], v), n)
		l[j] = r3.Norm(d[j])
		if l[j] < 1e-12 {
			return nil
		}
	}
	// tanHalf[j] is tan of half the signed angle between d[j] and d[j+1].
	tanHalf := make([]float64, k)
	for j := range d {
		a, b := d[j], d[(j+1)%k]
		den := l[j]*l[(j+1)%k] + r3.Dot(a, b)
		if den < 1e-12*l[j]*l[(j+1)%k] {
			// Consecutive neighbours point in opposite directions.
			return nil
		}
		tanHalf[j] = r3.Dot(r3.Cross(a, b), n) / den
	}
	w := make([]float64, k)
	var sum float64
	for j := range w {
		w[j] = (tanHalf[(j+k-1)%k] + tanHalf[j]) / l[j]
		sum += w[j]
	}
	if math.Abs(sum) < 1e-12 || math.IsNaN(sum) {
		return nil
	}
	for j := range w {
		w[j] /= sum
	}
	return w
}
