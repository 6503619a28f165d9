package mesh

import (
	"math"

	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Weld merges the vertices of a triangle soup, three consecutive vertices
// per triangle, that fall in the same cell of a grid of size tol. It returns
// the unique vertices and the indexed triangles. Triangles that collapse
// after merging are dropped. If tol is zero a tolerance is derived from the
// shortest edge.
func Weld(soup []r3.Vec, tol float64) (verts []r3.Vec, tris [][3]int) {
	if len(soup)%3 != 0 {
		panic("triangle soup length must be a multiple of 3")
	}
	if len(soup) == 0 {
		return nil, nil
	}
	if tol <= 0 {
		minDist2 := math.MaxFloat64
		for i := 0; i < len(soup); i += 3 {
			for j := 0; j < 3; j++ {
				d2 := r3.Norm2(r3.Sub(soup[i+j], soup[i+(j+1)%3]))
				if d2 > 0 {
					minDist2 = math.Min(minDist2, d2)
				}
			}
		}
		tol = math.Sqrt(minDist2) / 256
	}
	// Cell origin keeps quantized coordinates small.
	origin := d3.Set(soup).Min()
	ri := 1 / tol
	cache := make(map[[3]int64]int)
	for i := 0; i < len(soup); i += 3 {
		var tri [3]int
		for j := 0; j < 3; j++ {
			vert := soup[i+j]
			v := r3.Scale(ri, r3.Sub(vert, origin))
			vi := [3]int64{int64(math.Round(v.X)), int64(math.Round(v.Y)), int64(math.Round(v.Z))}
			idx, ok := cache[vi]
			if !ok {
				idx = len(verts)
				cache[vi] = idx
				verts = append(verts, vert)
			}
			tri[j] = idx
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[2] == tri[0] {
			continue
		}
		tris = append(tris, tri)
	}
	return verts, tris
}
