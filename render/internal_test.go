package render

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMarchingCubes(t *testing.T) {
	max := 0
	for _, tri := range mcTriangleTable {
		if len(tri)%3 != 0 {
			t.Fatalf("triangle table entry of length %d", len(tri))
		}
		if len(tri) > max {
			max = len(tri)
		}
	}
	got := max / 3
	if got != marchingCubesMaxTriangles {
		t.Errorf("mismatch marching cubes max triangles. got %d. want %d", got, marchingCubesMaxTriangles)
	}
	// Every edge used by a case's triangles must be flagged in the edge table.
	for index, tri := range mcTriangleTable {
		for _, e := range tri {
			if mcEdgeTable[index]&(1<<e) == 0 {
				t.Fatalf("case %d uses edge %d not in edge table", index, e)
			}
		}
	}
}

func TestSTLWriteReadback(t *testing.T) {
	const tol = 1e-5
	vol := sphereVolume(t, 24, 0.8)
	verts, norms := Polygonize(nil, nil, vol, 0)
	var b bytes.Buffer
	if err := WriteSTL(&b, verts, norms); err != nil {
		t.Fatal(err)
	}
	gotTris, gotNorms := readSTL(t, b.Bytes())
	want := Triangles(verts)
	if len(gotTris) != len(want) {
		t.Fatalf("read %d triangles, wrote %d", len(gotTris), len(want))
	}
	mismatches := 0
	for i, expect := range want {
		for j := range expect {
			if !d3.EqualWithin(gotTris[i][j], expect[j], tol) {
				mismatches++
				t.Errorf("%dth triangle equality out of tolerance. got vertex %0.5g, want %0.5g", i, gotTris[i][j], expect[j])
			}
		}
		if !d3.EqualWithin(gotNorms[i], norms[3*i], tol) {
			mismatches++
			t.Errorf("%dth triangle normal: got %v, want %v", i, gotNorms[i], norms[3*i])
		}
		if mismatches > 10 {
			t.Fatal("too many mismatches")
		}
	}
}

func TestWriteSTLBadSoup(t *testing.T) {
	tri := []r3.Vec{{}, {X: 1}, {Y: 1}}
	for _, tc := range []struct {
		name         string
		verts, norms []r3.Vec
	}{
		{name: "empty"},
		{name: "partial triangle", verts: tri[:2]},
		{name: "normal count", verts: tri, norms: tri[:1]},
	} {
		if err := WriteSTL(io.Discard, tc.verts, tc.norms); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	if err := WriteSTL(io.Discard, tri, nil); err != nil {
		t.Error(err)
	}
}

// readSTL decodes a binary STL file into triangles and facet normals.
func readSTL(t *testing.T, b []byte) ([]Triangle3, []r3.Vec) {
	t.Helper()
	if len(b) < stlHeaderSize {
		t.Fatalf("STL of %d bytes is shorter than its header", len(b))
	}
	count := int(binary.LittleEndian.Uint32(b[80:]))
	if want := stlHeaderSize + count*stlRecordSize; len(b) != want {
		t.Fatalf("STL of %d bytes, header of %d triangles needs %d", len(b), count, want)
	}
	vec := func(b []byte) r3.Vec {
		return r3.Vec{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
		}
	}
	tris := make([]Triangle3, count)
	norms := make([]r3.Vec, count)
	for i := range tris {
		rec := b[stlHeaderSize+i*stlRecordSize:]
		norms[i] = vec(rec)
		tris[i] = Triangle3{vec(rec[12:]), vec(rec[24:]), vec(rec[36:])}
	}
	return tris, norms
}

func TestGridRendererMatchesPolygonize(t *testing.T) {
	vol := sphereVolume(t, 16, 0.6)
	verts, _ := Polygonize(nil, nil, vol, 0)
	want := Triangles(verts)
	// Small buffer forces triangles to be held over between reads.
	r := NewGridRenderer(vol, 0)
	var got []Triangle3
	buf := make([]Triangle3, 7)
	for {
		n, err := r.ReadTriangles(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			break
		}
	}
	if len(got) != len(want) {
		t.Fatalf("renderer gave %d triangles, polygonize %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("triangle %d differs", i)
		}
	}
}

func TestVertexInterp(t *testing.T) {
	p1, p2 := r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 3, Y: 2, Z: -1}
	got := VertexInterp(0.5, p1, p2, 0, 1)
	if want := r3.Scale(0.5, r3.Add(p1, p2)); got != want {
		t.Errorf("midpoint: got %v, want %v", got, want)
	}
	if got := VertexInterp(0.5, p1, p2, 0.25, 0.25); got != p1 {
		t.Errorf("equal values: got %v, want p1 %v", got, p1)
	}
	if got := VertexInterp(2, p1, p2, 2, 5); got != p1 {
		t.Errorf("iso at first endpoint: got %v", got)
	}
}

func TestDegenerateSkipped(t *testing.T) {
	var p [8]r3.Vec
	offsets := [8]r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}, {Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {Y: 1, Z: 1}}
	copy(p[:], offsets[:])
	// Corner 0 exactly on the isolevel and all others above: every
	// crossing collapses onto corner 0.
	v := [8]float64{-0, 1, 1, 1, 1, 1, 1, 1}
	v[0] = -1e-300
	var dst [marchingCubesMaxTriangles]Triangle3
	n := mcToTriangles(dst[:], p, v, 0)
	for _, tri := range dst[:n] {
		if r3.Norm2(tri.Normal()) == 0 {
			t.Errorf("degenerate triangle emitted: %v", tri)
		}
	}
}

func sphereVolume(t testing.TB, n int, radius float64) *Volume {
	t.Helper()
	h := 2.0 / float64(n-1)
	vol, err := SampleVolume(isoskin.Sphere(r3.Vec{}, radius), n, n, n, r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: h, Y: h, Z: h}, 2)
	if err != nil {
		t.Fatal(err)
	}
	return vol
}
