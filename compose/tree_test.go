package compose

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var testPoints = []r3.Vec{
	{X: 0.3, Y: 0.2, Z: 0.9},
	{X: -1.2, Y: 1, Z: 0.1},
	{X: 2, Y: 0.5, Z: -0.4},
	{X: 0.1, Y: -1.5, Z: 0.2},
}

func TestSingleLeafMatchesField(t *testing.T) {
	f := isoskin.Capsule(r3.Vec{}, r3.Vec{Y: 1}, 0.3)
	tree := NewTree(NewLeaf(0, f))
	pose := IdentityPose(1)
	for _, p := range testPoints {
		v, g := tree.Evaluate(p, pose)
		if v != f.Evaluate(p) || g != f.Gradient(p) {
			t.Errorf("leaf at %v: got (%g,%v), want (%g,%v)", p, v, g, f.Evaluate(p), f.Gradient(p))
		}
	}
	// The identity pose built from matrices must behave the same.
	pose = NewPose([]mgl32.Mat4{mgl32.Ident4()})
	for _, p := range testPoints {
		v, _ := tree.Evaluate(p, pose)
		if math.Abs(v-f.Evaluate(p)) > 1e-12 {
			t.Errorf("Ident4 pose at %v: got %g, want %g", p, v, f.Evaluate(p))
		}
	}
}

func TestUnionDoesNotExceedChildren(t *testing.T) {
	const k = 0.2
	f := isoskin.Sphere(r3.Vec{}, 1)
	tree := NewTree(NewInterior(NewLeaf(0, f), NewLeaf(1, f), Blend{Op: Union, K: k}))
	pose := IdentityPose(2)
	for _, p := range testPoints {
		v, _ := tree.Evaluate(p, pose)
		want := f.Evaluate(p)
		if v > want {
			t.Errorf("union %g exceeds child value %g", v, want)
		}
		if math.Abs(v-(want-k/4)) > 1e-12 {
			t.Errorf("union of equal children: got %g, want %g", v, want-k/4)
		}
	}
	inter := NewTree(NewInterior(NewLeaf(0, f), NewLeaf(1, f), Blend{Op: Intersection, K: k}))
	for _, p := range testPoints {
		if v := inter.Value(p, pose); v < f.Evaluate(p) {
			t.Errorf("intersection %g below child value %g", v, f.Evaluate(p))
		}
	}
}

func TestLeafTransform(t *testing.T) {
	f := isoskin.Sphere(r3.Vec{}, 1)
	tree := NewTree(NewLeaf(0, f))
	pose := NewPose([]mgl32.Mat4{mgl32.Translate3D(2, 0, 0)})
	v, g := tree.Evaluate(r3.Vec{X: 3}, pose)
	if math.Abs(v) > 1e-6 || !d3.EqualWithin(g, r3.Vec{X: 1}, 1e-6) {
		t.Errorf("translated leaf: got (%g,%v)", v, g)
	}
	// Rotating a capsule along +Y a quarter turn about Z points it along -X.
	c := isoskin.Capsule(r3.Vec{}, r3.Vec{Y: 2}, 0.25)
	tree = NewTree(NewLeaf(0, c))
	pose = NewPose([]mgl32.Mat4{mgl32.HomogRotate3DZ(math.Pi / 2)})
	v, g = tree.Evaluate(r3.Vec{X: -1, Y: 0.25}, pose)
	if math.Abs(v) > 1e-6 || !d3.EqualWithin(g, r3.Vec{Y: 1}, 1e-6) {
		t.Errorf("rotated leaf: got (%g,%v), want (0,{0 1 0})", v, g)
	}
}

func TestPoseHiddenBone(t *testing.T) {
	f := isoskin.Sphere(r3.Vec{}, 1)
	tree := NewTree(NewLeaf(0, f))
	// Bone 1 is hidden by a zero scale and has no field in the tree.
	pose := NewPose([]mgl32.Mat4{mgl32.Translate3D(1, 0, 0), mgl32.Scale3D(0, 0, 0)})
	if v := tree.Value(r3.Vec{X: 2}, pose); math.Abs(v) > 1e-6 {
		t.Errorf("got %g, want 0", v)
	}
	defer func() {
		if recover() == nil {
			t.Error("leaf bound to singular bone did not panic")
		}
	}()
	NewTree(NewLeaf(1, f)).Value(r3.Vec{}, pose)
}

func TestPosedGradient(t *testing.T) {
	// Elbow: two capsules blended at the joint with the forearm bent.
	upper := isoskin.Capsule(r3.Vec{}, r3.Vec{Y: 1}, 0.2)
	lower := isoskin.Capsule(r3.Vec{Y: 1}, r3.Vec{Y: 2}, 0.2)
	tree, err := Build([]isoskin.Field{upper, lower}, []int{-1, 0}, Blend{Op: Union, K: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	bend := mgl32.Translate3D(0, 1, 0).Mul4(mgl32.HomogRotate3DZ(0.8)).Mul4(mgl32.Translate3D(0, -1, 0))
	pose := NewPose([]mgl32.Mat4{mgl32.Ident4(), bend})
	field := tree.Posed(pose)
	for _, p := range []r3.Vec{{X: 0.25, Y: 0.9}, {X: -0.2, Y: 1.1, Z: 0.1}, {X: 0.3, Y: 0.5, Z: -0.1}, {X: -0.6, Y: 1.5}} {
		got := field.Gradient(p)
		want := isoskin.NumericGradient(field, p, 1e-6)
		if !d3.EqualWithin(got, want, 1e-4) {
			t.Errorf("posed gradient at %v: got %v, want %v", p, got, want)
		}
	}
}

func TestBuild(t *testing.T) {
	s := isoskin.Sphere(r3.Vec{}, 1)
	// Bone 2 has no field and is transparent; bones 3 and 4 are a second root chain.
	fields := []isoskin.Field{s, s, nil, s, s}
	parents := []int{-1, 0, 1, -1, 3}
	tree, err := Build(fields, parents, Blend{K: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	leaves := tree.Leaves()
	if len(leaves) != 4 {
		t.Fatalf("got leaves %v, want 4", leaves)
	}
	for i, want := range []int{0, 1, 3, 4} {
		if leaves[i] != want {
			t.Errorf("leaf %d: got bone %d, want %d", i, leaves[i], want)
		}
	}
	if tree.Depth() != 3 {
		t.Errorf("depth %d, want 3", tree.Depth())
	}
	if tree.MaxBone() != 4 {
		t.Errorf("max bone %d, want 4", tree.MaxBone())
	}

	_, err = Build([]isoskin.Field{s, s}, []int{1, 0}, Blend{})
	if !errors.Is(err, ErrBadHierarchy) {
		t.Errorf("cycle: got %v, want ErrBadHierarchy", err)
	}
	_, err = Build([]isoskin.Field{s}, []int{3}, Blend{})
	if !errors.Is(err, ErrBadHierarchy) {
		t.Errorf("out of range parent: got %v, want ErrBadHierarchy", err)
	}
	_, err = Build([]isoskin.Field{nil, nil}, []int{-1, 0}, Blend{})
	if !errors.Is(err, ErrEmptyTree) {
		t.Errorf("no fields: got %v, want ErrEmptyTree", err)
	}
}

func TestMissingBonePanics(t *testing.T) {
	tree := NewTree(NewLeaf(3, isoskin.Sphere(r3.Vec{}, 1)))
	defer func() {
		if recover() == nil {
			t.Error("evaluating without bone transform did not panic")
		}
	}()
	tree.Evaluate(r3.Vec{}, IdentityPose(2))
}

func TestNodeAccessors(t *testing.T) {
	l, r := NewLeaf(0, isoskin.Sphere(r3.Vec{}, 1)), NewLeaf(1, isoskin.Sphere(r3.Vec{}, 1))
	n := NewInterior(l, r, Blend{Op: Intersection, K: 0.5})
	if n.IsLeaf() || !l.IsLeaf() {
		t.Error("IsLeaf mismatch")
	}
	if gl, gr := n.Children(); gl != l || gr != r {
		t.Error("Children mismatch")
	}
	if n.Blend().Op.String() != "intersection" {
		t.Errorf("got op %s", n.Blend().Op)
	}
	if r.Bone() != 1 {
		t.Errorf("got bone %d", r.Bone())
	}
}
