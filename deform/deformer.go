// Package deform implements implicit skinning: meshes skinned with linear
// blend weights are corrected against the implicit surface of a
// composition tree. Each frame runs four stages in a fixed order:
//
//  1. linear blend weight skinning,
//  2. projection of vertices onto their bind iso value of the posed field,
//  3. tangential relaxation with bind-pose mean value weights,
//  4. Laplacian smoothing of the corrected vertices.
//
// Every stage reads all positions written by the previous one, and the
// per-vertex work within a stage runs in parallel.
package deform

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/compose"
	"github.com/soypat/isoskin/internal/d3"
	"github.com/soypat/isoskin/mesh"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrProjectionNonConvergence reports vertices whose projection did not
// reach the tolerance within the step bound. It never aborts a frame.
var ErrProjectionNonConvergence = errors.New("vertex projection did not converge")

// Deformer deforms one mesh instance. It borrows the composition tree for
// read-only evaluation. A Deformer must not be used by more than one
// goroutine at a time.
type Deformer struct {
	cfg  Config
	bind *mesh.Mesh
	tree *compose.Tree
	buf  Buffer
	// bones is the number of transforms a frame must supply.
	bones int

	iso   []float64
	rings []mesh.Ring
	// mvc holds the bind-pose mean value weights of each closed ring, nil
	// for vertices that are not relaxed.
	mvc [][]float64

	pos, next []r3.Vec
	corrected []bool
	status    []projStatus
	pose      *compose.Pose
	stats     FrameStats
}

// FrameStats summarises the projection stage of a frame.
type FrameStats struct {
	// Converged vertices ended within tolerance of their iso value.
	Converged int
	// NonConverged vertices hit the step bound.
	NonConverged int
	// Stopped vertices halted at a gradient discontinuity.
	Stopped int
	// Corrected vertices were moved by the projection.
	Corrected int
	// MaxResidual is the largest |f - iso| after projection.
	MaxResidual float64
}

// Err returns an error wrapping ErrProjectionNonConvergence if any vertex
// did not converge.
func (s FrameStats) Err() error {
	if s.NonConverged == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d vertices, max residual %g", ErrProjectionNonConvergence, s.NonConverged, s.MaxResidual)
}

type projStatus uint8

const (
	statusConverged projStatus = iota
	statusNonConverged
	statusStopped
)

// New prepares a deformer for bind. The bind mesh must carry bone weights
// for every vertex and tree must be the implicit surface of bind at rest.
// Per-vertex iso values and relaxation weights are computed here from the
// bind pose.
func New(bind *mesh.Mesh, tree *compose.Tree, buf Buffer, cfg Config) (*Deformer, error) {
	if tree == nil || buf == nil {
		panic("nil tree or buffer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := bind.Validate(); err != nil {
		return nil, err
	}
	n := len(bind.Verts)
	if len(bind.BoneWeights) != n {
		return nil, fmt.Errorf("%w: %d bone weights for %d vertices", mesh.ErrInvalidMesh, len(bind.BoneWeights), n)
	}
	bones := tree.MaxBone() + 1
	for i, bw := range bind.BoneWeights {
		var total float32
		for slot, w := range bw.Weight {
			if w == 0 {
				continue
			}
			total += w
			if int(bw.BoneID[slot]) >= bones {
				bones = int(bw.BoneID[slot]) + 1
			}
		}
		if total == 0 {
			return nil, fmt.Errorf("%w: vertex %d has no bone influence", mesh.ErrInvalidMesh, i)
		}
	}
	d := &Deformer{
		cfg:       cfg,
		bind:      bind,
		tree:      tree,
		buf:       buf,
		bones:     bones,
		iso:       make([]float64, n),
		rings:     mesh.OrderedOneRing(bind),
		mvc:       make([][]float64, n),
		pos:       append([]r3.Vec(nil), bind.Verts...),
		next:      make([]r3.Vec, n),
		corrected: make([]bool, n),
		status:    make([]projStatus, n),
	}
	rest := compose.IdentityPose(bones)
	normals := make([]r3.Vec, n)
	d.parallel(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f, g := tree.Evaluate(bind.Verts[i], rest)
			d.iso[i] = f
			normals[i] = d3.Unit(g)
		}
	})
	var open int
	for i, ring := range d.rings {
		if !ring.Closed {
			open++
			continue
		}
		d.mvc[i] = meanValueWeights(bind.Verts, i, ring.Neighbours, normals[i])
	}
	isoskin.Logger().Debug("deformer ready", "vertices", n, "bones", bones, "open_rings", open)
	return d, nil
}

// Deform runs the four stages for one frame with the given per-bone
// skinning transforms and writes the result to the buffer. The buffer is
// released before Deform returns. If the buffer cannot be mapped or
// released an error wrapping ErrBufferMapping is returned and the frame
// must be considered not produced. Projection non-convergence does not fail
// the frame: it is reported through the returned stats, and stats.Err()
// returns an error wrapping ErrProjectionNonConvergence for callers that
// want to treat it as one.
func (d *Deformer) Deform(transforms []mgl32.Mat4) (stats FrameStats, err error) {
	out, err := d.buf.Map()
	if err != nil {
		return FrameStats{}, fmt.Errorf("%w: map: %w", ErrBufferMapping, err)
	}
	defer func() {
		if uerr := d.buf.Unmap(); uerr != nil && err == nil {
			err = fmt.Errorf("%w: unmap: %w", ErrBufferMapping, uerr)
		}
	}()
	if len(out) != len(d.pos) {
		return FrameStats{}, fmt.Errorf("%w: buffer holds %d positions, mesh has %d", ErrBufferMapping, len(out), len(d.pos))
	}
	d.PerformLBWSkinning(transforms)
	stats = d.PerformVertexProjection()
	d.PerformTangentialRelaxation()
	d.PerformLaplacianSmoothing()
	for i, p := range d.pos {
		out[i] = mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
	}
	log := isoskin.Logger()
	log.Debug("frame deformed", "converged", stats.Converged, "nonconverged", stats.NonConverged,
		"stopped", stats.Stopped, "corrected", stats.Corrected, "max_residual", stats.MaxResidual)
	if stats.NonConverged > 0 {
		log.Warn("projection did not converge", "vertices", stats.NonConverged, "max_residual", stats.MaxResidual)
	}
	return stats, nil
}

// PerformLBWSkinning sets every vertex to the weighted sum of its bind
// position transformed by each influencing bone. transforms is indexed by
// bone ID and also defines the pose used by the following stages.
func (d *Deformer) PerformLBWSkinning(transforms []mgl32.Mat4) {
	if len(transforms) < d.bones {
		panic(fmt.Sprintf("got %d bone transforms, need %d", len(transforms), d.bones))
	}
	ts := make([]d3.Transform, len(transforms))
	for i, m := range transforms {
		ts[i] = d3.FromMat4(m)
	}
	d.pose = compose.NewPose(transforms)
	d.parallel(len(d.pos), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			bw := d.bind.BoneWeights[i]
			v := d.bind.Verts[i]
			var p r3.Vec
			for slot, w := range bw.Weight {
				if w == 0 {
					continue
				}
				p = r3.Add(p, r3.Scale(float64(w), ts[bw.BoneID[slot]].Transform(v)))
			}
			d.pos[i] = p
			d.corrected[i] = false
		}
	})
}

// PerformVertexProjection moves every vertex along the posed field gradient
// until the field matches the vertex's bind iso value.
func (d *Deformer) PerformVertexProjection() FrameStats {
	if d.pose == nil {
		panic("vertex projection before skinning")
	}
	cfg := d.cfg
	maxAngle := isoskin.DtoR(cfg.MaxGradientAngle)
	residual := make([]float64, len(d.pos))
	d.parallel(len(d.pos), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			start := d.pos[i]
			p, res, st := d.project(start, d.iso[i], maxAngle)
			d.pos[i] = p
			d.corrected[i] = p != start
			d.status[i] = st
			residual[i] = res
		}
	})
	var stats FrameStats
	for i, st := range d.status {
		switch st {
		case statusConverged:
			stats.Converged++
		case statusNonConverged:
			stats.NonConverged++
		case statusStopped:
			stats.Stopped++
		}
		if d.corrected[i] {
			stats.Corrected++
		}
		stats.MaxResidual = math.Max(stats.MaxResidual, residual[i])
	}
	d.stats = stats
	return stats
}

// project returns the projected position of p, its residual and outcome.
func (d *Deformer) project(p r3.Vec, iso, maxAngle float64) (r3.Vec, float64, projStatus) {
	cfg := d.cfg
	f, g := d.tree.Evaluate(p, d.pose)
	for step := 0; ; step++ {
		diff := iso - f
		if math.Abs(diff) <= cfg.ProjectionTolerance {
			return p, math.Abs(diff), statusConverged
		}
		if step == cfg.MaxProjectionSteps {
			return p, math.Abs(diff), statusNonConverged
		}
		n := d3.Unit(g)
		if n == (r3.Vec{}) {
			return p, math.Abs(diff), statusStopped
		}
		q := r3.Add(p, r3.Scale(cfg.StepSize*diff, n))
		fq, gq := d.tree.Evaluate(q, d.pose)
		if isoskin.Angle(g, gq) > maxAngle || math.Abs(iso-fq) > math.Abs(diff) {
			// Contact with another bone's field or overshoot: keep p.
			return p, math.Abs(diff), statusStopped
		}
		p, f, g = q, fq, gq
	}
}

// PerformTangentialRelaxation moves each vertex with a closed one-ring
// toward the point given by its bind-pose mean value weights applied to
// its neighbours, projected onto the tangent plane of the posed field.
// Vertices only move within their tangent plane.
func (d *Deformer) PerformTangentialRelaxation() {
	if d.pose == nil {
		panic("tangential relaxation before skinning")
	}
	k := d.cfg.RelaxFactor
	if k == 0 {
		return
	}
	for it := 0; it < d.cfg.RelaxIterations; it++ {
		d.parallel(len(d.pos), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				p := d.pos[i]
				w := d.mvc[i]
				if w == nil {
					d.next[i] = p
					continue
				}
				_, g := d.tree.Evaluate(p, d.pose)
				n := d3.Unit(g)
				var delta r3.Vec
				for j, nb := range d.rings[i].Neighbours {
					delta = r3.Add(delta, r3.Scale(w[j], d3.Reject(r3.Sub(d.pos[nb], p), n)))
				}
				d.next[i] = r3.Add(p, r3.Scale(k, delta))
			}
		})
		d.pos, d.next = d.next, d.pos
	}
}

// PerformLaplacianSmoothing moves every vertex corrected by the projection
// toward the mean of its one-ring by SmoothFactor.
func (d *Deformer) PerformLaplacianSmoothing() {
	k := d.cfg.SmoothFactor
	if k == 0 {
		return
	}
	for it := 0; it < d.cfg.SmoothIterations; it++ {
		d.parallel(len(d.pos), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				p := d.pos[i]
				ring := d.rings[i].Neighbours
				if !d.corrected[i] || len(ring) == 0 {
					d.next[i] = p
					continue
				}
				var mean r3.Vec
				for _, nb := range ring {
					mean = r3.Add(mean, d.pos[nb])
				}
				mean = r3.Scale(1/float64(len(ring)), mean)
				d.next[i] = r3.Add(p, r3.Scale(k, r3.Sub(mean, p)))
			}
		})
		d.pos, d.next = d.next, d.pos
	}
}

// Positions returns a copy of the current deformed positions.
func (d *Deformer) Positions() []r3.Vec {
	return append([]r3.Vec(nil), d.pos...)
}

// Stats returns the projection statistics of the last frame.
func (d *Deformer) Stats() FrameStats { return d.stats }

// IsoValues returns the per-vertex target field values taken at bind pose.
func (d *Deformer) IsoValues() []float64 {
	return append([]float64(nil), d.iso...)
}

// Tree returns the composition tree the deformer projects onto.
func (d *Deformer) Tree() *compose.Tree { return d.tree }

// Pose returns the pose of the last skinned frame, nil before the first.
func (d *Deformer) Pose() *compose.Pose { return d.pose }

// parallel splits [0,n) into chunks processed by at most cfg.Workers
// goroutines and waits for all of them.
func (d *Deformer) parallel(n int, fn func(lo, hi int)) {
	const minChunk = 64
	workers := d.cfg.workers()
	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	g.Wait()
}
