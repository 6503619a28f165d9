package render

import (
	"io"
	"math"
	"sync"

	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// octree renders the zero iso surface of a field with marching cubes,
// subdividing only cubes the surface may cross.
type octree struct {
	dc        dc3
	todo      []cube
	unwritten triangle3Buffer
}

type v3i [3]int

func (a v3i) add(b v3i) v3i       { return v3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a v3i) addScalar(s int) v3i { return v3i{a[0] + s, a[1] + s, a[2] + s} }
func (a v3i) vec() r3.Vec         { return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])} }

type cube struct {
	v3i      // origin of cube as integers
	n   uint // level of cube, size = 1 << n
}

// NewOctreeRenderer returns a marching cubes Renderer for the zero iso
// surface of s within bb, sampling the longest axis of bb with meshCells
// cells. Cubes whose center value exceeds their half diagonal are culled,
// so s should not grow faster than distance away from its surface.
// s must be safe for concurrent use.
func NewOctreeRenderer(s isoskin.Scalar, bb r3.Box, meshCells int) Renderer {
	if meshCells < 2 {
		panic("meshCells must be 2 or larger")
	}
	// Scale the bounding box about the center to make sure the boundaries
	// aren't on the object surface.
	box := d3.Box(bb).ScaleAboutCenter(1.01)
	longAxis := d3.Max(box.Size())
	// We want to test the smallest cube (side == resolution) for emptiness
	// so the level = 0 cube is at half resolution.
	resolution := 0.5 * longAxis / float64(meshCells)

	// how many cube levels for the octree?
	levels := uint(math.Ceil(math.Log2(longAxis/resolution))) + 1
	return &octree{
		dc:        *newDc3(s, box.Min, resolution, levels),
		unwritten: triangle3Buffer{buf: make([]Triangle3, 0, 1024)},
		todo:      []cube{{v3i{}, levels - 1}}, // process the octree, start at the top level
	}
}

// ReadTriangles writes triangles rendered from the field into dst.
// It returns io.EOF once the octree is exhausted.
func (oc *octree) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		return 0, io.ErrShortBuffer
	}
	for n < len(dst) {
		if oc.unwritten.Len() > 0 {
			n += oc.unwritten.Read(dst[n:])
			continue
		}
		if len(oc.todo) == 0 {
			// Done rendering model.
			return n, io.EOF
		}
		oc.processTodo()
	}
	return n, nil
}

// processTodo processes the pending cubes breadth first, buffering
// triangles of base level cubes and queueing non-empty sub cubes.
func (oc *octree) processTodo() {
	var next []cube
	var tmp [marchingCubesMaxTriangles]Triangle3
	for _, c := range oc.todo {
		nt, cubes := oc.processCube(tmp[:], c)
		oc.unwritten.buf = append(oc.unwritten.buf, tmp[:nt]...)
		next = append(next, cubes...)
	}
	oc.todo = next
}

// Process a cube. Generate triangles, or more cubes.
func (oc *octree) processCube(dst []Triangle3, c cube) (writtenTriangles int, newCubes []cube) {
	if c.n == 1 {
		// this cube is at the required resolution
		var corners [8]r3.Vec
		var values [8]float64
		for i, off := range [8]v3i{{0, 0, 0}, {2, 0, 0}, {2, 2, 0}, {0, 2, 0}, {0, 0, 2}, {2, 0, 2}, {2, 2, 2}, {0, 2, 2}} {
			corners[i], values[i] = oc.dc.Evaluate(c.add(off))
		}
		// output the triangle(s) for this cube
		return mcToTriangles(dst, corners, values, 0), nil
	}
	// process the sub cubes
	n := c.n - 1
	s := 1 << n
	for _, off := range [8]v3i{{0, 0, 0}, {s, 0, 0}, {s, s, 0}, {0, s, 0}, {0, 0, s}, {s, 0, s}, {s, s, s}, {0, s, s}} {
		candidate := cube{c.add(off), n}
		// Eliminate empty cubes.
		if !oc.dc.IsEmpty(&candidate) {
			newCubes = append(newCubes, candidate)
		}
	}
	return 0, newCubes
}

// dc3 is a distance cache that avoids evaluating the field more than once
// at shared cube corners.
type dc3 struct {
	mu         sync.Mutex      // lock the the cache during reads/writes
	cache      map[v3i]float64 // cache of field values
	origin     r3.Vec          // origin of the overall bounding cube
	resolution float64         // size of smallest octree cube
	hdiag      []float64       // lookup table of cube half diagonals
	s          isoskin.Scalar
}

// Evaluate returns the position of lattice point vi and the field value there.
func (dc *dc3) Evaluate(vi v3i) (r3.Vec, float64) {
	v := r3.Add(dc.origin, r3.Scale(dc.resolution, vi.vec()))
	if dist, found := dc.read(vi); found {
		return v, dist
	}
	dist := dc.s.Evaluate(v)
	dc.write(vi, dist)
	return v, dist
}

// IsEmpty returns true if the cube contains no surface.
func (dc *dc3) IsEmpty(c *cube) bool {
	// evaluate the field at the center of the cube
	s := 1 << (c.n - 1) // half side
	_, d := dc.Evaluate(c.addScalar(s))
	// compare to the center/corner distance
	return math.Abs(d) >= dc.hdiag[c.n]
}

func newDc3(s isoskin.Scalar, origin r3.Vec, resolution float64, n uint) *dc3 {
	if n >= 64 {
		panic("size of n must be less than size of word for hdiag generation")
	}
	dc := dc3{
		origin:     origin,
		resolution: resolution,
		hdiag:      make([]float64, n),
		s:          s,
		cache:      make(map[v3i]float64),
	}
	// build a lut for cube half diagonal lengths
	for i := range dc.hdiag {
		si := 1 << uint(i)
		s := float64(si) * dc.resolution
		dc.hdiag[i] = 0.5 * math.Sqrt(3.0*s*s)
	}
	return &dc
}

func (dc *dc3) read(vi v3i) (float64, bool) {
	dc.mu.Lock()
	dist, found := dc.cache[vi]
	dc.mu.Unlock()
	return dist, found
}

func (dc *dc3) write(vi v3i, dist float64) {
	dc.mu.Lock()
	dc.cache[vi] = dist
	dc.mu.Unlock()
}
