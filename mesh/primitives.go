package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Grid returns a flat nx by ny quad grid in the XY plane split into
// triangles facing +Z. Vertex (i,j) has index i + (nx+1)*j.
func Grid(nx, ny int, spacing float64) *Mesh {
	if nx < 1 || ny < 1 || spacing <= 0 {
		panic("bad grid parameters")
	}
	m := &Mesh{}
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.Verts = append(m.Verts, r3.Vec{X: float64(i) * spacing, Y: float64(j) * spacing})
		}
	}
	idx := func(i, j int) int { return i + (nx+1)*j }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a, b, c, d := idx(i, j), idx(i+1, j), idx(i+1, j+1), idx(i, j+1)
			m.Tris = append(m.Tris, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	m.ComputeNormals()
	return m
}

// Cube returns a closed cube surface centered at the origin with each face
// subdivided n times along each side. Triangles wind counter-clockwise seen
// from outside.
func Cube(size float64, n int) *Mesh {
	if n < 1 || size <= 0 {
		panic("bad cube parameters")
	}
	h := size / 2
	x, y, z := r3.Vec{X: size}, r3.Vec{Y: size}, r3.Vec{Z: size}
	faces := []struct{ corner, u, v r3.Vec }{
		{r3.Vec{X: h, Y: -h, Z: -h}, y, z},
		{r3.Vec{X: -h, Y: -h, Z: -h}, z, y},
		{r3.Vec{X: -h, Y: h, Z: -h}, z, x},
		{r3.Vec{X: -h, Y: -h, Z: -h}, x, z},
		{r3.Vec{X: -h, Y: -h, Z: h}, x, y},
		{r3.Vec{X: -h, Y: -h, Z: -h}, y, x},
	}
	var soup []r3.Vec
	k := 1 / float64(n)
	at := func(c, u, v r3.Vec, i, j int) r3.Vec {
		return r3.Add(c, r3.Add(r3.Scale(float64(i)*k, u), r3.Scale(float64(j)*k, v)))
	}
	for _, f := range faces {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				p00 := at(f.corner, f.u, f.v, i, j)
				p10 := at(f.corner, f.u, f.v, i+1, j)
				p11 := at(f.corner, f.u, f.v, i+1, j+1)
				p01 := at(f.corner, f.u, f.v, i, j+1)
				soup = append(soup, p00, p10, p11, p00, p11, p01)
			}
		}
	}
	verts, tris := Weld(soup, size*k/4)
	m := &Mesh{Verts: verts, Tris: tris}
	m.ComputeNormals()
	return m
}

// Cylinder returns a capped cylinder of the given radius along +Y starting
// at the origin. The tube is split into rings sections along its length and
// segments around it. Ring vertex (k,s) has index k*segments + s; the two
// cap centers are the last two vertices, bottom first.
func Cylinder(radius, length float64, rings, segments int) *Mesh {
	if rings < 1 || segments < 3 || radius <= 0 || length <= 0 {
		panic("bad cylinder parameters")
	}
	m := &Mesh{}
	for k := 0; k <= rings; k++ {
		y := length * float64(k) / float64(rings)
		for s := 0; s < segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			m.Verts = append(m.Verts, r3.Vec{X: radius * math.Cos(theta), Y: y, Z: radius * math.Sin(theta)})
		}
	}
	idx := func(k, s int) int { return k*segments + s%segments }
	for k := 0; k < rings; k++ {
		for s := 0; s < segments; s++ {
			a, b, c, d := idx(k, s), idx(k+1, s), idx(k+1, s+1), idx(k, s+1)
			m.Tris = append(m.Tris, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	bottom := len(m.Verts)
	top := bottom + 1
	m.Verts = append(m.Verts, r3.Vec{}, r3.Vec{Y: length})
	for s := 0; s < segments; s++ {
		m.Tris = append(m.Tris,
			[3]int{bottom, idx(0, s), idx(0, s+1)},
			[3]int{top, idx(rings, s+1), idx(rings, s)},
		)
	}
	m.ComputeNormals()
	return m
}
