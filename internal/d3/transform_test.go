package d3

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestFromMat4(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(0.4))
	T := FromMat4(m)
	v := mgl32.Vec3{0.5, -1, 2}
	want := m.Mul4x1(v.Vec4(1)).Vec3()
	got := T.Transform(r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])})
	if !EqualWithin(got, r3.Vec{X: float64(want[0]), Y: float64(want[1]), Z: float64(want[2])}, 1e-5) {
		t.Errorf("transform mismatch: got %v, want %v", got, want)
	}
	if FromMat4(mgl32.Ident4()) != (Transform{}) {
		t.Error("identity matrix is not the zero Transform")
	}
}

func TestInverse(t *testing.T) {
	T := FromMat4(mgl32.Translate3D(-1, 0.5, 2).Mul4(mgl32.HomogRotate3D(1.1, mgl32.Vec3{0, 0.6, 0.8})).Mul4(mgl32.Scale3D(2, 1, 0.5)))
	inv := T.Inv()
	p := r3.Vec{X: 0.3, Y: -2, Z: 1}
	if got := inv.Transform(T.Transform(p)); !EqualWithin(got, p, 1e-6) {
		t.Errorf("got %v, want %v", got, p)
	}
}

// The gradient of f(Inv(T)x) is TransposeDir of Inv(T) applied to the
// gradient of f.
func TestTransposeDirGradient(t *testing.T) {
	T := FromMat4(mgl32.Translate3D(0.2, 0, -1).Mul4(mgl32.HomogRotate3DZ(0.9)).Mul4(mgl32.Scale3D(1, 3, 1)))
	inv := T.Inv()
	// f(q) = q.X^2 + 2 q.Y + q.Z*q.X
	f := func(q r3.Vec) float64 { return q.X*q.X + 2*q.Y + q.Z*q.X }
	grad := func(q r3.Vec) r3.Vec { return r3.Vec{X: 2*q.X + q.Z, Y: 2, Z: q.X} }
	x := r3.Vec{X: 0.7, Y: -0.4, Z: 1.5}
	got := inv.TransposeDir(grad(inv.Transform(x)))
	const h = 1e-6
	var want r3.Vec
	for i, e := range []r3.Vec{{X: h}, {Y: h}, {Z: h}} {
		d := (f(inv.Transform(r3.Add(x, e))) - f(inv.Transform(r3.Sub(x, e)))) / (2 * h)
		switch i {
		case 0:
			want.X = d
		case 1:
			want.Y = d
		case 2:
			want.Z = d
		}
	}
	if !EqualWithin(got, want, 1e-5) {
		t.Errorf("got %v, want %v", got, want)
	}
}
