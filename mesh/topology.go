package mesh

// OneRing returns, for each vertex, the unique indices of the vertices that
// share an edge with it. Isolated vertices get an empty ring.
func OneRing(m *Mesh) [][]int {
	rings := make([][]int, len(m.Verts))
	for _, tri := range m.Tris {
		for j := range tri {
			v := tri[j]
			rings[v] = appendUnique(rings[v], tri[(j+1)%3])
			rings[v] = appendUnique(rings[v], tri[(j+2)%3])
		}
	}
	return rings
}

func appendUnique(set []int, c int) []int {
	for _, existing := range set {
		if existing == c {
			return set
		}
	}
	return append(set, c)
}

// Ring is the one-ring of a vertex. When Closed is true Neighbours are in
// counter-clockwise order around the vertex (as seen from the side the
// triangle winding faces) and the last neighbour connects back to the first.
// Open rings belong to boundary or non-manifold vertices and keep the
// neighbours in discovery order.
type Ring struct {
	Neighbours []int
	Closed     bool
}

// OrderedOneRing returns the cyclically ordered one-ring of every vertex.
func OrderedOneRing(m *Mesh) []Ring {
	// For vertex v every incident triangle (v,a,b) contributes the
	// directed edge a->b opposite to v.
	type edge struct{ a, b int }
	fans := make([][]edge, len(m.Verts))
	for _, tri := range m.Tris {
		for j := range tri {
			v := tri[j]
			fans[v] = append(fans[v], edge{a: tri[(j+1)%3], b: tri[(j+2)%3]})
		}
	}
	unordered := OneRing(m)
	rings := make([]Ring, len(m.Verts))
	for v, fan := range fans {
		rings[v] = Ring{Neighbours: unordered[v]}
		if len(fan) < 3 || len(fan) != len(unordered[v]) {
			continue
		}
		next := make(map[int]int, len(fan))
		manifold := true
		for _, e := range fan {
			if _, dup := next[e.a]; dup {
				manifold = false
				break
			}
			next[e.a] = e.b
		}
		if !manifold {
			continue
		}
		start := fan[0].a
		ordered := make([]int, 0, len(fan))
		seen := make(map[int]bool, len(fan))
		cur := start
		for range fan {
			if seen[cur] {
				break
			}
			seen[cur] = true
			ordered = append(ordered, cur)
			n, ok := next[cur]
			if !ok {
				break
			}
			cur = n
		}
		if cur == start && len(ordered) == len(fan) {
			rings[v] = Ring{Neighbours: ordered, Closed: true}
		}
	}
	return rings
}

// BoundaryVertices reports which vertices have an open one-ring.
func BoundaryVertices(rings []Ring) []bool {
	b := make([]bool, len(rings))
	for i, r := range rings {
		b[i] = !r.Closed
	}
	return b
}
