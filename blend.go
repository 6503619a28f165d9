package isoskin

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// poly is the polynomial smooth minimum of a and b. h is the weight of a in
// the blend and is also the weight of a's gradient in the blended gradient.
func poly(a, b, k float64) (s, h float64) {
	if k <= 0 {
		if a < b {
			return a, 1
		}
		return b, 0
	}
	h = Clamp(0.5+0.5*(b-a)/k, 0.0, 1.0)
	return Mix(b, a, h) - k*h*(1.0-h), h
}

// PolyMin blends the values and gradients of two fields with a polynomial
// smooth minimum of radius k (try k = 0.1, a bigger k gives a bigger
// fillet). The result never exceeds min(a, b) and equals a-k/4 where a == b.
// k <= 0 gives the hard minimum.
func PolyMin(a, b float64, ga, gb r3.Vec, k float64) (float64, r3.Vec) {
	s, h := poly(a, b, k)
	return s, r3.Add(r3.Scale(h, ga), r3.Scale(1-h, gb))
}

// PolyMax is the smooth maximum counterpart of PolyMin. The result is never
// below max(a, b).
func PolyMax(a, b float64, ga, gb r3.Vec, k float64) (float64, r3.Vec) {
	s, h := poly(-a, -b, k)
	return -s, r3.Add(r3.Scale(h, ga), r3.Scale(1-h, gb))
}

type blendField struct {
	a, b Field
	k    float64
	max  bool
}

// Union returns the smooth union of two fields, see PolyMin.
func Union(a, b Field, k float64) Field {
	return blendField{a: a, b: b, k: k}
}

// Intersect returns the smooth intersection of two fields, see PolyMax.
func Intersect(a, b Field, k float64) Field {
	return blendField{a: a, b: b, k: k, max: true}
}

func (f blendField) Evaluate(p r3.Vec) float64 {
	a, b := f.a.Evaluate(p), f.b.Evaluate(p)
	if f.max {
		s, _ := poly(-a, -b, f.k)
		return -s
	}
	s, _ := poly(a, b, f.k)
	return s
}

func (f blendField) Gradient(p r3.Vec) r3.Vec {
	a, b := f.a.Evaluate(p), f.b.Evaluate(p)
	ga, gb := f.a.Gradient(p), f.b.Gradient(p)
	if f.max {
		_, g := PolyMax(a, b, ga, gb, f.k)
		return g
	}
	_, g := PolyMin(a, b, ga, gb, f.k)
	return g
}

// ValueGradient evaluates a field and its gradient in one call. Fields that
// share work between the two implement ValueGradienter.
func ValueGradient(f Field, p r3.Vec) (float64, r3.Vec) {
	if vg, ok := f.(ValueGradienter); ok {
		return vg.ValueGradient(p)
	}
	return f.Evaluate(p), f.Gradient(p)
}

// ValueGradienter is implemented by fields that compute their value and
// gradient together.
type ValueGradienter interface {
	ValueGradient(p r3.Vec) (float64, r3.Vec)
}

// ValueGradient evaluates both blended fields once.
func (f blendField) ValueGradient(p r3.Vec) (float64, r3.Vec) {
	a, ga := ValueGradient(f.a, p)
	b, gb := ValueGradient(f.b, p)
	if f.max {
		return PolyMax(a, b, ga, gb, f.k)
	}
	return PolyMin(a, b, ga, gb, f.k)
}

// Angle returns the angle in radians between a and b. It returns 0 when
// either is the zero vector.
func Angle(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Acos(Clamp(r3.Dot(a, b)/(na*nb), -1, 1))
}
