package hrbf

import (
	"errors"
	"math"
	"testing"

	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// spherePoints returns points on a unit sphere from a latitude/longitude
// grid together with their outward normals.
func spherePoints(nlat, nlon int, radius float64) (pts, nrm []r3.Vec) {
	pts = append(pts, r3.Vec{Z: radius}, r3.Vec{Z: -radius})
	nrm = append(nrm, r3.Vec{Z: 1}, r3.Vec{Z: -1})
	for i := 1; i < nlat; i++ {
		theta := math.Pi * float64(i) / float64(nlat)
		for j := 0; j < nlon; j++ {
			phi := 2 * math.Pi * float64(j) / float64(nlon)
			n := r3.Vec{X: math.Sin(theta) * math.Cos(phi), Y: math.Sin(theta) * math.Sin(phi), Z: math.Cos(theta)}
			nrm = append(nrm, n)
			pts = append(pts, r3.Scale(radius, n))
		}
	}
	return pts, nrm
}

func TestFitInterpolates(t *testing.T) {
	pts, nrm := spherePoints(5, 8, 1)
	f, err := New(pts, nrm)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != len(pts) {
		t.Fatalf("got %d centers, want %d", f.Len(), len(pts))
	}
	for i, p := range pts {
		v, g := f.ValueGradient(p)
		if math.Abs(v) > 1e-7 {
			t.Errorf("sample %d: value %g, want 0", i, v)
		}
		if !d3.EqualWithin(g, nrm[i], 1e-6) {
			t.Errorf("sample %d: gradient %v, want %v", i, g, nrm[i])
		}
	}
	if v := f.Evaluate(r3.Vec{}); v >= 0 {
		t.Errorf("center of sphere should be inside, got %g", v)
	}
	if v := f.Evaluate(r3.Vec{X: 1.3}); v <= 0 {
		t.Errorf("point outside sphere should be positive, got %g", v)
	}
}

func TestFitGradientMatchesNumeric(t *testing.T) {
	pts, nrm := spherePoints(4, 6, 0.5)
	f, err := New(pts, nrm)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []r3.Vec{{X: 0.1, Y: 0.2, Z: 0.05}, {X: 0.6, Y: -0.1, Z: 0.3}, {X: -0.2, Y: 0.4, Z: -0.5}} {
		got := f.Gradient(p)
		want := isoskin.NumericGradient(f, p, 1e-6)
		if !d3.EqualWithin(got, want, 1e-5) {
			t.Errorf("gradient at %v: got %v, want %v", p, got, want)
		}
		if v := f.Evaluate(p); math.Abs(v-mustValue(f, p)) > 1e-12 {
			t.Errorf("Evaluate and ValueGradient disagree at %v", p)
		}
	}
}

func mustValue(f *Fit, p r3.Vec) float64 {
	v, _ := f.ValueGradient(p)
	return v
}

func TestFitValues(t *testing.T) {
	// Samples of the plane field z - 0.25 are reproduced exactly by the
	// polynomial part of the basis.
	var pts, nrm []r3.Vec
	var vals []float64
	for _, p := range []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}} {
		pts = append(pts, p)
		nrm = append(nrm, r3.Vec{Z: 1})
		vals = append(vals, p.Z-0.25)
	}
	f, err := NewValues(pts, nrm, vals)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 2, Y: -1, Z: 0.3}} {
		if v := f.Evaluate(p); math.Abs(v-(p.Z-0.25)) > 1e-8 {
			t.Errorf("value at %v: got %g, want %g", p, v, p.Z-0.25)
		}
	}
}

func TestInsufficientSamples(t *testing.T) {
	pts, nrm := spherePoints(4, 6, 1)
	for _, tc := range []struct {
		name     string
		pts, nrm []r3.Vec
	}{
		{"few", pts[:3], nrm[:3]},
		{"mismatch", pts, nrm[:5]},
		{"duplicate", append(append([]r3.Vec(nil), pts[:4]...), pts[0]), append(append([]r3.Vec(nil), nrm[:4]...), nrm[0])},
	} {
		_, err := New(tc.pts, tc.nrm)
		if !errors.Is(err, ErrInsufficientSamples) {
			t.Errorf("%s: got %v, want ErrInsufficientSamples", tc.name, err)
		}
	}
}

func TestDecimate(t *testing.T) {
	pts, _ := spherePoints(12, 24, 1)
	// Duplicate every point.
	pts = append(pts, pts...)
	kept := Decimate(pts, 0, 1e-6)
	if len(kept) != len(pts)/2 {
		t.Errorf("duplicates not merged: kept %d of %d", len(kept), len(pts))
	}
	kept = Decimate(pts, 40, 0.01)
	if len(kept) > 40 || len(kept) < 4 {
		t.Errorf("kept %d points, want between 4 and 40", len(kept))
	}
	sel := Select(pts, kept)
	for i := range sel {
		for j := i + 1; j < len(sel); j++ {
			if r3.Norm(r3.Sub(sel[i], sel[j])) < 0.01 {
				t.Fatalf("kept points %d and %d too close", i, j)
			}
		}
	}
}

func TestBounded(t *testing.T) {
	pts, nrm := spherePoints(4, 6, 1)
	f, err := New(pts, nrm)
	if err != nil {
		t.Fatal(err)
	}
	b := f.Bounded(0.5)
	for _, p := range pts {
		if d := math.Abs(b.Evaluate(p) - f.Evaluate(p)); d > 1e-12 {
			t.Errorf("bounded field differs at sample by %g", d)
		}
	}
	far := r3.Vec{X: 50, Y: -20, Z: 7}
	if v := b.Evaluate(far); v <= 0 {
		t.Errorf("bounded field negative far away: %g", v)
	}
}
