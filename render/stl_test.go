package render_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/render"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSTLCreateWriteRead(t *testing.T) {
	const n = 20
	sphere := isoskin.Sphere(r3.Vec{X: 0.1}, 0.7)
	vol, err := render.SampleVolume(sphere, n, n, n, r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "sphere.stl")
	if err := render.CreateSTL(path, render.NewGridRenderer(vol, 0)); err != nil {
		t.Fatal(err)
	}
	bfile, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	verts, norms := render.Polygonize(nil, nil, vol, 0)
	if len(verts) == 0 {
		t.Fatal("no triangles rendered")
	}
	// Winding normals match the renderer output byte for byte.
	var b bytes.Buffer
	if err := render.WriteSTL(&b, verts, nil); err != nil {
		t.Fatal(err)
	}
	if b.Len() != len(bfile) {
		t.Fatalf("WriteSTL and CreateSTL output length mismatch: %d vs %d", b.Len(), len(bfile))
	}
	if b.String() != string(bfile) {
		t.Fatal("WriteSTL and CreateSTL output mismatch")
	}
	// Polygonize normals only change the facet normal fields.
	b.Reset()
	if err := render.WriteSTL(&b, verts, norms); err != nil {
		t.Fatal(err)
	}
	if b.Len() != len(bfile) {
		t.Fatalf("length with normals %d, want %d", b.Len(), len(bfile))
	}
}
