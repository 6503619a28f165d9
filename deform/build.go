package deform

import (
	"errors"
	"fmt"

	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/compose"
	"github.com/soypat/isoskin/hrbf"
	"github.com/soypat/isoskin/mesh"
)

// FitConfig controls how BuildTree fits per-bone fields.
type FitConfig struct {
	// MaxSamples bounds the HRBF samples per bone.
	MaxSamples int `json:"max_samples"`
	// MinSampleDist is the minimum distance between samples of one bone.
	// Zero uses half the mean edge length of the mesh.
	MinSampleDist float64 `json:"min_sample_dist"`
	// MinWeight excludes vertices near joints whose dominant weight is
	// lower from the fit.
	MinWeight float32 `json:"min_weight"`
	// Margin is the distance beyond a bone's samples after which its field
	// is forced positive. Zero uses four mean edge lengths.
	Margin float64 `json:"margin"`
	// Blend joins bone fields along the skeleton.
	Blend compose.Blend `json:"blend"`
}

// DefaultFitConfig returns the default fit parameters.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		MaxSamples: 64,
		MinWeight:  0.5,
		Blend:      compose.Blend{Op: compose.Union, K: 0.05},
	}
}

// BuildTree fits one HRBF field per bone to the bind mesh segment the bone
// dominates and joins them along the skeleton given by parents, see
// compose.Build. Bones with too few samples are left without a field and
// logged. bind must have bone weights; normals are computed if missing.
func BuildTree(bind *mesh.Mesh, parents []int, cfg FitConfig) (*compose.Tree, error) {
	if len(bind.Norms) != len(bind.Verts) {
		bind = bind.Clone()
		bind.ComputeNormals()
	}
	edge := bind.MeanEdgeLength()
	if cfg.MinSampleDist <= 0 {
		cfg.MinSampleDist = edge / 2
	}
	if cfg.Margin <= 0 {
		cfg.Margin = 4 * edge
	}
	if cfg.Margin <= 0 {
		return nil, fmt.Errorf("%w: mesh has no edges", mesh.ErrInvalidMesh)
	}
	parts := mesh.Partition(bind, len(parents), cfg.MinWeight)
	fields := make([]isoskin.Field, len(parts))
	log := isoskin.Logger()
	for bone, part := range parts {
		idx := hrbf.Decimate(part.Points, cfg.MaxSamples, cfg.MinSampleDist)
		fit, err := hrbf.New(hrbf.Select(part.Points, idx), hrbf.Select(part.Normals, idx))
		if errors.Is(err, hrbf.ErrInsufficientSamples) {
			log.Warn("bone left without field", "bone", bone, "samples", len(idx), "err", err)
			continue
		} else if err != nil {
			return nil, err
		}
		log.Debug("bone field fitted", "bone", bone, "samples", fit.Len())
		fields[bone] = fit.Bounded(cfg.Margin)
	}
	return compose.Build(fields, parents, cfg.Blend)
}
