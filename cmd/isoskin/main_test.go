package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/isoskin"
)

func TestBendWritesMeshAndPreview(t *testing.T) {
	orig := isoskin.Logger()
	t.Cleanup(func() { isoskin.SetLogger(orig) })
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "mesh.stl")
	pngPath := filepath.Join(dir, "mesh.png")
	err := runBend([]string{
		"-frames", "2",
		"-angle", "60",
		"-o", filepath.Join(dir, "residual.png"),
		"-mesh", meshPath,
		"-png", pngPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	rig := elbowRig()
	fi, err := os.Stat(meshPath)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(84 + 50*len(rig.Tris)); fi.Size() != want {
		t.Errorf("mesh STL is %d bytes, want %d", fi.Size(), want)
	}
	fp, err := os.Open(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	img, err := png.Decode(fp)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 800 {
		t.Errorf("preview size %v, want 800x800", b)
	}
}
