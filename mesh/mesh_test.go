package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestValidate(t *testing.T) {
	m := Grid(2, 2, 1)
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := m.Clone()
	bad.Tris = append(bad.Tris, [3]int{0, 1, len(bad.Verts)})
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("out of range index: got %v, want ErrInvalidMesh", err)
	}
	bad = m.Clone()
	bad.BoneWeights = make([]VertexBoneData, len(bad.Verts)-1)
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("short bone weights: got %v, want ErrInvalidMesh", err)
	}
}

func TestVertexBoneData(t *testing.T) {
	var b VertexBoneData
	b.Add(3, 0.5)
	b.Add(1, 1.5)
	if id, ok := b.Dominant(); !ok || id != 1 {
		t.Errorf("dominant: got %d,%v, want 1,true", id, ok)
	}
	b.Normalize()
	if math.Abs(float64(b.Weight[0]+b.Weight[1])-1) > 1e-6 {
		t.Errorf("weights not normalized: %v", b.Weight)
	}
	// Fill all slots and check the smallest is evicted.
	b = VertexBoneData{}
	for i, w := range []float32{0.4, 0.1, 0.3, 0.2} {
		b.Add(uint32(i), w)
	}
	b.Add(9, 0.25)
	for i, id := range b.BoneID {
		if id == 1 && b.Weight[i] != 0 {
			t.Errorf("bone 1 with smallest weight should have been evicted: %+v", b)
		}
	}
	var empty VertexBoneData
	if _, ok := empty.Dominant(); ok {
		t.Error("empty record reported a dominant bone")
	}
}

func TestComputeNormalsCube(t *testing.T) {
	m := Cube(2, 3)
	for i, v := range m.Verts {
		n := m.Norms[i]
		if math.Abs(r3.Norm(n)-1) > 1e-12 {
			t.Fatalf("normal %d not unit: %v", i, n)
		}
		if r3.Dot(n, v) <= 0 {
			t.Errorf("normal %v at %v points inward", n, v)
		}
	}
}

func TestOneRingGrid(t *testing.T) {
	const nx = 4
	m := Grid(nx, nx, 1)
	rings := OneRing(m)
	// Interior vertex of a regular split grid has valence 6.
	center := 2 + (nx+1)*2
	if len(rings[center]) != 6 {
		t.Errorf("interior valence %d, want 6", len(rings[center]))
	}
	corner := 0
	if len(rings[corner]) != 3 {
		t.Errorf("corner valence %d, want 3", len(rings[corner]))
	}
}

func TestOrderedOneRing(t *testing.T) {
	const nx = 4
	m := Grid(nx, nx, 1)
	rings := OrderedOneRing(m)
	center := 2 + (nx+1)*2
	r := rings[center]
	if !r.Closed {
		t.Fatal("interior ring should be closed")
	}
	// Consecutive neighbours wind counter-clockwise about +Z.
	c := m.Verts[center]
	for j := range r.Neighbours {
		a := r3.Sub(m.Verts[r.Neighbours[j]], c)
		b := r3.Sub(m.Verts[r.Neighbours[(j+1)%len(r.Neighbours)]], c)
		if r3.Cross(a, b).Z <= 0 {
			t.Errorf("ring not counter-clockwise at %d: %v", j, r.Neighbours)
		}
	}
	if rings[0].Closed {
		t.Error("boundary corner ring should be open")
	}
	boundary := BoundaryVertices(rings)
	var nb int
	for _, b := range boundary {
		if b {
			nb++
		}
	}
	if nb != 4*nx {
		t.Errorf("got %d boundary vertices, want %d", nb, 4*nx)
	}
}

func TestCubeClosed(t *testing.T) {
	m := Cube(1, 4)
	// 6 faces of 5x5 vertices sharing edges and corners.
	const want = 6*5*5 - 12*5 + 8
	if len(m.Verts) != want {
		t.Errorf("got %d vertices, want %d", len(m.Verts), want)
	}
	for i, r := range OrderedOneRing(m) {
		if !r.Closed {
			t.Errorf("cube vertex %d has an open ring", i)
		}
	}
}

func TestCylinder(t *testing.T) {
	m := Cylinder(0.5, 2, 4, 8)
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	for i, r := range OrderedOneRing(m) {
		if !r.Closed {
			t.Errorf("cylinder vertex %d has an open ring", i)
		}
	}
	b := d3.Box(m.Bounds())
	if !b.Equals(d3.Box{Min: r3.Vec{X: -0.5, Z: -0.5}, Max: r3.Vec{X: 0.5, Y: 2, Z: 0.5}}, 1e-2) {
		t.Errorf("unexpected bounds %+v", b)
	}
}

func TestWeld(t *testing.T) {
	soup := []r3.Vec{
		{}, {X: 1}, {X: 1, Y: 1},
		{}, {X: 1, Y: 1}, {Y: 1},
		// Degenerate after welding.
		{}, {X: 1e-9}, {X: 1},
	}
	verts, tris := Weld(soup, 1e-4)
	if len(verts) != 4 {
		t.Errorf("got %d unique vertices, want 4", len(verts))
	}
	if len(tris) != 2 {
		t.Errorf("got %d triangles, want 2", len(tris))
	}
}

func TestPartition(t *testing.T) {
	m := Grid(3, 1, 1)
	m.BoneWeights = make([]VertexBoneData, len(m.Verts))
	for i, v := range m.Verts {
		switch {
		case v.X < 1:
			m.BoneWeights[i].Add(0, 1)
		case v.X > 2:
			m.BoneWeights[i].Add(1, 1)
		default:
			m.BoneWeights[i].Add(0, 0.5)
			m.BoneWeights[i].Add(1, 0.5)
		}
	}
	parts := Partition(m, 2, 0.6)
	if len(parts) != 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	if len(parts[0].Verts) != 2 || len(parts[1].Verts) != 2 {
		t.Errorf("joint vertices should be excluded: %d, %d", len(parts[0].Verts), len(parts[1].Verts))
	}
	for _, p := range parts {
		if len(p.Points) != len(p.Verts) || len(p.Normals) != len(p.Verts) {
			t.Error("part sequences not parallel")
		}
	}
}
