package isoskin

import (
	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Scalar is a scalar field over 3D space.
type Scalar interface {
	// Evaluate returns the field value at p. Values are negative inside
	// the surface and positive outside.
	Evaluate(p r3.Vec) float64
}

// Field is a scalar field with an analytic gradient. Implementations must be
// safe for concurrent use once constructed.
type Field interface {
	Scalar
	// Gradient returns the gradient of the field at p.
	Gradient(p r3.Vec) r3.Vec
}

type sphere struct {
	c r3.Vec
	r float64
}

// Sphere returns the signed distance field of a sphere.
func Sphere(center r3.Vec, radius float64) Field {
	if radius <= 0 {
		panic("sphere radius must be positive")
	}
	return sphere{c: center, r: radius}
}

func (s sphere) Evaluate(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.c)) - s.r
}

func (s sphere) Gradient(p r3.Vec) r3.Vec {
	return d3.Unit(r3.Sub(p, s.c))
}

type capsule struct {
	a, ab r3.Vec
	ab2   float64
	r     float64
}

// Capsule returns the signed distance field of a capsule: the set of points
// within radius of the segment ab. A capsule is a reasonable stand-in for a
// limb segment.
func Capsule(a, b r3.Vec, radius float64) Field {
	if radius <= 0 {
		panic("capsule radius must be positive")
	}
	ab := r3.Sub(b, a)
	return capsule{a: a, ab: ab, ab2: r3.Norm2(ab), r: radius}
}

func (c capsule) closest(p r3.Vec) r3.Vec {
	if c.ab2 == 0 {
		return c.a
	}
	t := Clamp(r3.Dot(r3.Sub(p, c.a), c.ab)/c.ab2, 0, 1)
	return r3.Add(c.a, r3.Scale(t, c.ab))
}

func (c capsule) Evaluate(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, c.closest(p))) - c.r
}

func (c capsule) Gradient(p r3.Vec) r3.Vec {
	return d3.Unit(r3.Sub(p, c.closest(p)))
}

type plane struct {
	p, n r3.Vec
}

// Plane returns the signed distance field of the plane through point with
// the given normal. Points on the normal's side are outside.
func Plane(point, normal r3.Vec) Field {
	n := d3.Unit(normal)
	if n == (r3.Vec{}) {
		panic("zero plane normal")
	}
	return plane{p: point, n: n}
}

func (pl plane) Evaluate(p r3.Vec) float64 { return r3.Dot(r3.Sub(p, pl.p), pl.n) }

func (pl plane) Gradient(r3.Vec) r3.Vec { return pl.n }

// NumericGradient returns the gradient of s at p approximated with central
// differences of step eps.
func NumericGradient(s Scalar, p r3.Vec, eps float64) r3.Vec {
	if eps <= 0 {
		eps = 1e-6
	}
	k := 1 / (2 * eps)
	return r3.Vec{
		X: k * (s.Evaluate(r3.Add(p, r3.Vec{X: eps})) - s.Evaluate(r3.Add(p, r3.Vec{X: -eps}))),
		Y: k * (s.Evaluate(r3.Add(p, r3.Vec{Y: eps})) - s.Evaluate(r3.Add(p, r3.Vec{Y: -eps}))),
		Z: k * (s.Evaluate(r3.Add(p, r3.Vec{Z: eps})) - s.Evaluate(r3.Add(p, r3.Vec{Z: -eps}))),
	}
}

// ScalarFunc adapts an ordinary function to the Scalar interface.
type ScalarFunc func(p r3.Vec) float64

// Evaluate calls f(p).
func (f ScalarFunc) Evaluate(p r3.Vec) float64 { return f(p) }
