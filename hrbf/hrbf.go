// Package hrbf fits Hermite radial basis function surfaces to oriented
// point samples. A fitted surface is a smooth scalar field with analytic
// gradient that interpolates the sample values and gradients exactly.
//
// The basis is the triharmonic kernel phi(r) = r^3 augmented with a degree
// one polynomial:
//
//	f(x) = sum_j alpha_j*phi(x-x_j) - beta_j . grad phi(x-x_j) + a . x + b
package hrbf

import (
	"errors"
	"fmt"

	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinSamples is the least number of samples that gives a well posed fit.
const MinSamples = 4

// ErrInsufficientSamples is returned when a fit is attempted with too few
// samples or with samples that do not determine a unique surface.
var ErrInsufficientSamples = errors.New("insufficient samples for hrbf fit")

var (
	_ isoskin.Field           = (*Fit)(nil)
	_ isoskin.ValueGradienter = (*Fit)(nil)
)

// Fit is a fitted HRBF field. It is immutable after construction and safe
// for concurrent use.
type Fit struct {
	centers []r3.Vec
	alpha   []float64
	beta    []r3.Vec
	a       r3.Vec
	b       float64
	bounds  d3.Box
}

// New fits a surface through points with the given outward normals. The
// field is zero on the samples, its gradient equals the unit normals and it
// is negative on the inside.
func New(points, normals []r3.Vec) (*Fit, error) {
	return NewValues(points, normals, nil)
}

// NewValues fits a field taking value values[i] and gradient normals[i] at
// points[i]. A nil values slice means all zero. Normals are used as given.
func NewValues(points, normals []r3.Vec, values []float64) (*Fit, error) {
	n := len(points)
	if len(normals) != n || (values != nil && len(values) != n) {
		return nil, fmt.Errorf("%w: %d points, %d normals, %d values", ErrInsufficientSamples, n, len(normals), len(values))
	}
	if n < MinSamples {
		return nil, fmt.Errorf("%w: got %d, need at least %d", ErrInsufficientSamples, n, MinSamples)
	}
	// Unknowns: per sample alpha_j then beta_j (4 each), then a (3) and b.
	dim := 4*n + 4
	A := mat.NewDense(dim, dim, nil)
	rhs := mat.NewVecDense(dim, nil)
	for i, xi := range points {
		ri := 4 * i
		for j, xj := range points {
			cj := 4 * j
			v := r3.Sub(xi, xj)
			phi, grad, hess := kernel(v)
			// Value row.
			A.Set(ri, cj, phi)
			A.Set(ri, cj+1, -grad.X)
			A.Set(ri, cj+2, -grad.Y)
			A.Set(ri, cj+3, -grad.Z)
			// Gradient rows.
			A.Set(ri+1, cj, grad.X)
			A.Set(ri+2, cj, grad.Y)
			A.Set(ri+3, cj, grad.Z)
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					A.Set(ri+1+r, cj+1+c, -hess[r][c])
				}
			}
		}
		// Polynomial terms.
		pc := 4 * n
		A.Set(ri, pc, xi.X)
		A.Set(ri, pc+1, xi.Y)
		A.Set(ri, pc+2, xi.Z)
		A.Set(ri, pc+3, 1)
		A.Set(ri+1, pc, 1)
		A.Set(ri+2, pc+1, 1)
		A.Set(ri+3, pc+2, 1)
		// Orthogonality conditions, the transpose of the polynomial block.
		A.Set(pc, ri, xi.X)
		A.Set(pc+1, ri, xi.Y)
		A.Set(pc+2, ri, xi.Z)
		A.Set(pc+3, ri, 1)
		A.Set(pc, ri+1, 1)
		A.Set(pc+1, ri+2, 1)
		A.Set(pc+2, ri+3, 1)

		if values != nil {
			rhs.SetVec(ri, values[i])
		}
		nrm := normals[i]
		rhs.SetVec(ri+1, nrm.X)
		rhs.SetVec(ri+2, nrm.Y)
		rhs.SetVec(ri+3, nrm.Z)
	}

	var lu mat.LU
	lu.Factorize(A)
	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientSamples, err)
	}
	f := &Fit{
		centers: append([]r3.Vec(nil), points...),
		alpha:   make([]float64, n),
		beta:    make([]r3.Vec, n),
		a:       r3.Vec{X: x.AtVec(4 * n), Y: x.AtVec(4*n + 1), Z: x.AtVec(4*n + 2)},
		b:       x.AtVec(4*n + 3),
		bounds:  d3.BoxOf(points),
	}
	for j := range points {
		f.alpha[j] = x.AtVec(4 * j)
		f.beta[j] = r3.Vec{X: x.AtVec(4*j + 1), Y: x.AtVec(4*j + 2), Z: x.AtVec(4*j + 3)}
	}
	return f, nil
}

// kernel returns phi(|v|) = |v|^3, its gradient 3|v|v and its Hessian
// 3(|v|I + vv^T/|v|). All vanish at v = 0.
func kernel(v r3.Vec) (phi float64, grad r3.Vec, hess [3][3]float64) {
	r := r3.Norm(v)
	if r == 0 {
		return 0, r3.Vec{}, hess
	}
	phi = r * r * r
	grad = r3.Scale(3*r, v)
	c := [3]float64{v.X, v.Y, v.Z}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hess[i][j] = 3 * c[i] * c[j] / r
		}
		hess[i][i] += 3 * r
	}
	return phi, grad, hess
}

// Evaluate returns the field value at p.
func (f *Fit) Evaluate(p r3.Vec) float64 {
	s := r3.Dot(f.a, p) + f.b
	for j, c := range f.centers {
		v := r3.Sub(p, c)
		r := r3.Norm(v)
		s += f.alpha[j]*r*r*r - 3*r*r3.Dot(f.beta[j], v)
	}
	return s
}

// Gradient returns the field gradient at p.
func (f *Fit) Gradient(p r3.Vec) r3.Vec {
	_, g := f.ValueGradient(p)
	return g
}

// ValueGradient returns the field value and gradient at p.
func (f *Fit) ValueGradient(p r3.Vec) (float64, r3.Vec) {
	s := r3.Dot(f.a, p) + f.b
	g := f.a
	for j, c := range f.centers {
		v := r3.Sub(p, c)
		r := r3.Norm(v)
		if r == 0 {
			continue
		}
		bv := r3.Dot(f.beta[j], v)
		s += f.alpha[j]*r*r*r - 3*r*bv
		// alpha*3r*v - 3(r*beta + v*(v.beta)/r)
		g = r3.Add(g, r3.Scale(3*f.alpha[j]*r-3*bv/r, v))
		g = r3.Sub(g, r3.Scale(3*r, f.beta[j]))
	}
	return s, g
}

// Len returns the number of samples the field was fitted to.
func (f *Fit) Len() int { return len(f.centers) }

// Bounds returns the bounding box of the fit samples.
func (f *Fit) Bounds() r3.Box { return r3.Box(f.bounds) }

// Bounded returns the field smoothly intersected with a sphere enclosing the
// samples with the given margin. Far from its samples an HRBF may turn
// negative again; the bounded field stays positive outside the sphere so
// spurious interior regions cannot capture vertices of other bones.
func (f *Fit) Bounded(margin float64) isoskin.Field {
	if margin <= 0 {
		panic("bounding margin must be positive")
	}
	center := f.bounds.Center()
	radius := r3.Norm(r3.Scale(0.5, f.bounds.Size())) + margin
	return isoskin.Intersect(f, isoskin.Sphere(center, radius), margin/2)
}
