package compose

import (
	"fmt"

	"github.com/soypat/isoskin"
)

// Build assembles a tree from a skeleton. fields[i] is bone i's field in
// its bind frame, nil for bones without a field. parents[i] is the parent
// of bone i or -1 for a root. Each bone's subtree is its leaf blended with
// the subtrees of its children, and root subtrees are blended together.
// All interior nodes use blend.
func Build(fields []isoskin.Field, parents []int, blend Blend) (*Tree, error) {
	n := len(fields)
	if len(parents) != n {
		return nil, fmt.Errorf("%w: %d fields, %d parents", ErrBadHierarchy, n, len(parents))
	}
	children := make([][]int, n)
	var roots []int
	for i, p := range parents {
		switch {
		case p == -1:
			roots = append(roots, i)
		case p < 0 || p >= n || p == i:
			return nil, fmt.Errorf("%w: bone %d has parent %d", ErrBadHierarchy, i, p)
		default:
			children[p] = append(children[p], i)
		}
	}
	visited := 0
	var sub func(bone int) *Node
	sub = func(bone int) *Node {
		visited++
		var node *Node
		if fields[bone] != nil {
			node = NewLeaf(bone, fields[bone])
		}
		for _, c := range children[bone] {
			node = join(node, sub(c), blend)
		}
		return node
	}
	var root *Node
	for _, r := range roots {
		root = join(root, sub(r), blend)
	}
	if visited != n {
		return nil, fmt.Errorf("%w: cycle among %d bones", ErrBadHierarchy, n-visited)
	}
	if root == nil {
		return nil, ErrEmptyTree
	}
	return NewTree(root), nil
}

// join blends a and b, passing through either when the other is nil.
func join(a, b *Node, blend Blend) *Node {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return NewInterior(a, b, blend)
}
