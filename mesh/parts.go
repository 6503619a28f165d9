package mesh

import "gonum.org/v1/gonum/spatial/r3"

// Part is the bind-pose segment of a mesh driven mainly by one bone.
type Part struct {
	Bone int
	// Indices of the mesh vertices in the part.
	Verts   []int
	Points  []r3.Vec
	Normals []r3.Vec
}

// Partition groups the vertices of m by their dominant bone. Vertices whose
// dominant weight is below minWeight lie close to a joint and are left out,
// as are vertices without influences or driven by a bone >= numBones.
// The returned slice has numBones entries, indexed by bone.
// m must have BoneWeights and Norms.
func Partition(m *Mesh, numBones int, minWeight float32) []Part {
	if len(m.BoneWeights) != len(m.Verts) || len(m.Norms) != len(m.Verts) {
		panic("partition needs bone weights and normals for every vertex")
	}
	parts := make([]Part, numBones)
	for i := range parts {
		parts[i].Bone = i
	}
	for v, bw := range m.BoneWeights {
		id, ok := bw.Dominant()
		if !ok || int(id) >= numBones {
			continue
		}
		var w float32
		for slot := range bw.BoneID {
			if bw.BoneID[slot] == id {
				w += bw.Weight[slot]
			}
		}
		if w < minWeight {
			continue
		}
		p := &parts[id]
		p.Verts = append(p.Verts, v)
		p.Points = append(p.Points, m.Verts[v])
		p.Normals = append(p.Normals, m.Norms[v])
	}
	return parts
}
