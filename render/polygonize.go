package render

import (
	"io"
	"runtime"

	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/internal/d3"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Polygonize extracts the iso surface of vol at level iso and appends it to
// verts and norms, three consecutive entries per triangle. Every vertex of
// a triangle carries the triangle's unit normal, which points toward
// larger field values. Vertices are not shared between triangles.
// Pass nil slices to start a new mesh.
func Polygonize(verts, norms []r3.Vec, vol *Volume, iso float64) ([]r3.Vec, []r3.Vec) {
	if vol.W < 2 || vol.H < 2 || vol.D < 2 {
		return verts, norms
	}
	// Cell layers are independent; results are concatenated in z order so
	// the output does not depend on scheduling.
	layers := make([][]Triangle3, vol.D-1)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for z := range layers {
		z := z
		g.Go(func() error {
			layers[z] = polygonizeLayer(nil, vol, z, iso)
			return nil
		})
	}
	g.Wait()
	for _, layer := range layers {
		for _, t := range layer {
			n := d3.Unit(t.Normal())
			verts = append(verts, t[0], t[1], t[2])
			norms = append(norms, n, n, n)
		}
	}
	return verts, norms
}

// polygonizeLayer appends the triangles of the cells between sample
// layers z and z+1 to dst.
func polygonizeLayer(dst []Triangle3, vol *Volume, z int, iso float64) []Triangle3 {
	var buf [marchingCubesMaxTriangles]Triangle3
	for y := 0; y < vol.H-1; y++ {
		for x := 0; x < vol.W-1; x++ {
			p, v := vol.cell(x, y, z)
			n := mcToTriangles(buf[:], p, v, iso)
			dst = append(dst, buf[:n]...)
		}
	}
	return dst
}

// cell returns the corners and values of the cell with minimum corner
// (x,y,z) in marching cubes corner order.
func (vol *Volume) cell(x, y, z int) (p [8]r3.Vec, v [8]float64) {
	offsets := [8][3]int{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	for i, o := range offsets {
		p[i] = vol.Point(x+o[0], y+o[1], z+o[2])
		v[i] = float64(vol.At(x+o[0], y+o[1], z+o[2]))
	}
	return p, v
}

// PolygonizeFile loads a w*h*d volume file placed at origin with the given
// sample spacing and polygonizes it, see Polygonize and LoadVolume.
func PolygonizeFile(verts, norms []r3.Vec, path string, w, h, d int, origin, spacing r3.Vec, iso float64) ([]r3.Vec, []r3.Vec, error) {
	vol, err := LoadVolume(path, w, h, d)
	if err != nil {
		return verts, norms, err
	}
	vol.Origin = origin
	if spacing != (r3.Vec{}) {
		vol.Spacing = spacing
	}
	verts, norms = Polygonize(verts, norms, vol, iso)
	return verts, norms, nil
}

// PolygonizeField samples s on a w*h*d grid and polygonizes the samples.
// The output is identical to polygonizing an equivalent volume.
func PolygonizeField(verts, norms []r3.Vec, s isoskin.Scalar, w, h, d int, origin, spacing r3.Vec, iso float64) ([]r3.Vec, []r3.Vec, error) {
	vol, err := SampleVolume(s, w, h, d, origin, spacing, 0)
	if err != nil {
		return verts, norms, err
	}
	verts, norms = Polygonize(verts, norms, vol, iso)
	return verts, norms, nil
}

// GridRenderer streams the iso surface of a volume as triangles through the
// Renderer interface, one cell layer at a time.
type GridRenderer struct {
	vol       *Volume
	iso       float64
	z         int
	unwritten triangle3Buffer
}

var _ Renderer = (*GridRenderer)(nil)

// NewGridRenderer returns a Renderer for the iso surface of vol at iso.
func NewGridRenderer(vol *Volume, iso float64) *GridRenderer {
	return &GridRenderer{vol: vol, iso: iso}
}

// ReadTriangles writes triangles rendered from the volume into dst and
// returns the number written. It returns io.EOF once all cells are read.
func (gr *GridRenderer) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		return 0, io.ErrShortBuffer
	}
	for n < len(dst) {
		if gr.unwritten.Len() == 0 {
			if gr.z >= gr.vol.D-1 {
				return n, io.EOF
			}
			gr.unwritten.buf = polygonizeLayer(gr.unwritten.buf[:0], gr.vol, gr.z, gr.iso)
			gr.z++
			continue
		}
		n += gr.unwritten.Read(dst[n:])
	}
	return n, nil
}

// Triangles groups a triangle soup, three consecutive vertices per
// triangle, into triangles.
func Triangles(verts []r3.Vec) []Triangle3 {
	if len(verts)%3 != 0 {
		panic("triangle soup length must be a multiple of 3")
	}
	tris := make([]Triangle3, len(verts)/3)
	for i := range tris {
		tris[i] = Triangle3{verts[3*i], verts[3*i+1], verts[3*i+2]}
	}
	return tris
}
