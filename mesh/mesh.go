package mesh

import (
	"errors"
	"fmt"

	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// MaxBonesPerVertex is the number of bone influences a vertex can hold.
const MaxBonesPerVertex = 4

// ErrInvalidMesh is returned by Validate when the mesh's parallel
// sequences disagree in length or a triangle references a missing vertex.
var ErrInvalidMesh = errors.New("invalid mesh")

// VertexBoneData holds up to MaxBonesPerVertex bone influences of a vertex.
// Unused slots carry weight 0.
type VertexBoneData struct {
	BoneID [MaxBonesPerVertex]uint32
	Weight [MaxBonesPerVertex]float32
}

// Add records an influence of bone id with weight w. If all slots are in use
// the smallest influence is replaced when w is larger than it.
func (b *VertexBoneData) Add(id uint32, w float32) {
	minIdx := 0
	for i := range b.Weight {
		if b.Weight[i] == 0 {
			b.BoneID[i] = id
			b.Weight[i] = w
			return
		}
		if b.Weight[i] < b.Weight[minIdx] {
			minIdx = i
		}
	}
	if w > b.Weight[minIdx] {
		b.BoneID[minIdx] = id
		b.Weight[minIdx] = w
	}
}

// Normalize rescales the weights so they sum to one. A record with no
// influences is left unchanged.
func (b *VertexBoneData) Normalize() {
	var sum float32
	for _, w := range b.Weight {
		sum += w
	}
	if sum == 0 {
		return
	}
	for i := range b.Weight {
		b.Weight[i] /= sum
	}
}

// Dominant returns the bone with the largest weight. ok is false if the
// record holds no influence.
func (b VertexBoneData) Dominant() (id uint32, ok bool) {
	var best float32
	for i, w := range b.Weight {
		if w > best {
			best = w
			id = b.BoneID[i]
			ok = true
		}
	}
	return id, ok
}

// Mesh is an indexed triangle mesh. Norms, BoneWeights, Colours and UVs are
// parallel to Verts when present. Positions are rewritten by the deformer
// each frame; topology does not change after construction.
type Mesh struct {
	Verts       []r3.Vec
	Norms       []r3.Vec
	Tris        [][3]int
	BoneWeights []VertexBoneData
	Colours     []r3.Vec
	UVs         []r2.Vec
	// Colour is the flat colour used when Colours is empty.
	Colour r3.Vec
}

// Validate checks the mesh invariants: every per-vertex sequence present
// has len(Verts) elements and every triangle index is in range.
func (m *Mesh) Validate() error {
	n := len(m.Verts)
	check := func(name string, l int) error {
		if l != 0 && l != n {
			return fmt.Errorf("%w: %d %s for %d vertices", ErrInvalidMesh, l, name, n)
		}
		return nil
	}
	for _, c := range []struct {
		name string
		l    int
	}{
		{"normals", len(m.Norms)},
		{"bone weights", len(m.BoneWeights)},
		{"colours", len(m.Colours)},
		{"uvs", len(m.UVs)},
	} {
		if err := check(c.name, c.l); err != nil {
			return err
		}
	}
	for i, tri := range m.Tris {
		for _, idx := range tri {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidMesh, i, idx, n)
			}
		}
	}
	return nil
}

// ComputeNormals recomputes Norms as area weighted averages of the incident
// triangle normals.
func (m *Mesh) ComputeNormals() {
	if cap(m.Norms) >= len(m.Verts) {
		m.Norms = m.Norms[:len(m.Verts)]
		for i := range m.Norms {
			m.Norms[i] = r3.Vec{}
		}
	} else {
		m.Norms = make([]r3.Vec, len(m.Verts))
	}
	for _, tri := range m.Tris {
		// Unnormalized cross product is twice the area.
		n := r3.Triangle{m.Verts[tri[0]], m.Verts[tri[1]], m.Verts[tri[2]]}.Normal()
		for _, idx := range tri {
			m.Norms[idx] = r3.Add(m.Norms[idx], n)
		}
	}
	for i := range m.Norms {
		m.Norms[i] = d3.Unit(m.Norms[i])
	}
}

// Bounds returns the bounding box of the vertices.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Verts) == 0 {
		return r3.Box{}
	}
	return r3.Box(d3.BoxOf(m.Verts))
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Verts:       append([]r3.Vec(nil), m.Verts...),
		Norms:       append([]r3.Vec(nil), m.Norms...),
		Tris:        append([][3]int(nil), m.Tris...),
		BoneWeights: append([]VertexBoneData(nil), m.BoneWeights...),
		Colours:     append([]r3.Vec(nil), m.Colours...),
		UVs:         append([]r2.Vec(nil), m.UVs...),
		Colour:      m.Colour,
	}
}

// MeanEdgeLength returns the average length of the mesh's triangle edges.
func (m *Mesh) MeanEdgeLength() float64 {
	if len(m.Tris) == 0 {
		return 0
	}
	var sum float64
	for _, tri := range m.Tris {
		for j := range tri {
			sum += r3.Norm(r3.Sub(m.Verts[tri[j]], m.Verts[tri[(j+1)%3]]))
		}
	}
	return sum / float64(3*len(m.Tris))
}
