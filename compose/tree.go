// Package compose blends per-bone fields into one implicit surface.
//
// A Tree is a binary tree whose leaves hold a bone's field expressed in
// the bone's bind frame and whose interior nodes blend their two children.
// Evaluating the tree at a world point under a Pose maps the point into
// each leaf's frame with the inverse bone transform and maps leaf gradients
// back with the bone's normal matrix.
package compose

import (
	"errors"
	"fmt"

	"github.com/soypat/isoskin"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyTree is returned by Build when no bone has a field.
var ErrEmptyTree = errors.New("composition tree has no leaves")

// ErrBadHierarchy is returned by Build when the parent table does not
// describe a forest.
var ErrBadHierarchy = errors.New("bad bone hierarchy")

// Op is a blend operator of an interior node.
type Op uint8

const (
	// Union blends with a polynomial smooth minimum, see isoskin.PolyMin.
	Union Op = iota
	// Intersection blends with a polynomial smooth maximum, see isoskin.PolyMax.
	Intersection
)

func (op Op) String() string {
	switch op {
	case Union:
		return "union"
	case Intersection:
		return "intersection"
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Blend is the operator and continuity radius of an interior node.
// K <= 0 degenerates to the hard minimum or maximum.
type Blend struct {
	Op Op
	K  float64
}

type kind uint8

const (
	leafKind kind = iota + 1
	interiorKind
)

// Node is a composition tree node: either a leaf holding one bone's field
// or an interior node blending two subtrees. Nodes are created with NewLeaf
// and NewInterior and are not modified afterwards.
type Node struct {
	kind kind
	// leaf
	bone  int
	field isoskin.Field
	// interior
	left, right *Node
	blend       Blend
}

// NewLeaf returns a leaf evaluating f in the bind frame of bone.
func NewLeaf(bone int, f isoskin.Field) *Node {
	if f == nil {
		panic("nil leaf field")
	}
	if bone < 0 {
		panic("negative bone index")
	}
	return &Node{kind: leafKind, bone: bone, field: f}
}

// NewInterior returns a node blending left and right. The node takes
// ownership of both subtrees.
func NewInterior(left, right *Node, b Blend) *Node {
	if left == nil || right == nil {
		panic("nil child node")
	}
	if left == right {
		panic("interior node children must be distinct subtrees")
	}
	return &Node{kind: interiorKind, left: left, right: right, blend: b}
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool { return n.kind == leafKind }

// Bone returns the bone of a leaf node.
func (n *Node) Bone() int {
	if n.kind != leafKind {
		panic("Bone called on interior node")
	}
	return n.bone
}

// Children returns the subtrees of an interior node.
func (n *Node) Children() (left, right *Node) {
	if n.kind != interiorKind {
		panic("Children called on leaf node")
	}
	return n.left, n.right
}

// Blend returns the blend operator of an interior node.
func (n *Node) Blend() Blend {
	if n.kind != interiorKind {
		panic("Blend called on leaf node")
	}
	return n.blend
}

func (n *Node) eval(p r3.Vec, pose *Pose) (float64, r3.Vec) {
	switch n.kind {
	case leafKind:
		inv := pose.inverse(n.bone)
		v, g := isoskin.ValueGradient(n.field, inv.Transform(p))
		return v, inv.TransposeDir(g)
	case interiorKind:
		a, ga := n.left.eval(p, pose)
		b, gb := n.right.eval(p, pose)
		if n.blend.Op == Intersection {
			return isoskin.PolyMax(a, b, ga, gb, n.blend.K)
		}
		return isoskin.PolyMin(a, b, ga, gb, n.blend.K)
	}
	panic("invalid node kind")
}

func (n *Node) value(p r3.Vec, pose *Pose) float64 {
	switch n.kind {
	case leafKind:
		return n.field.Evaluate(pose.inverse(n.bone).Transform(p))
	case interiorKind:
		a := n.left.value(p, pose)
		b := n.right.value(p, pose)
		if n.blend.Op == Intersection {
			s, _ := isoskin.PolyMax(a, b, r3.Vec{}, r3.Vec{}, n.blend.K)
			return s
		}
		s, _ := isoskin.PolyMin(a, b, r3.Vec{}, r3.Vec{}, n.blend.K)
		return s
	}
	panic("invalid node kind")
}

// Tree is the global implicit surface of a character. It is read-only once
// built and safe for concurrent evaluation.
type Tree struct {
	root   *Node
	leaves []int
	depth  int
}

// NewTree wraps root in a Tree.
func NewTree(root *Node) *Tree {
	if root == nil {
		panic("nil root")
	}
	t := &Tree{root: root}
	t.depth = t.walk(root, 1)
	return t
}

func (t *Tree) walk(n *Node, depth int) int {
	if n.kind == leafKind {
		t.leaves = append(t.leaves, n.bone)
		return depth
	}
	l := t.walk(n.left, depth+1)
	r := t.walk(n.right, depth+1)
	if l > r {
		return l
	}
	return r
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Leaves returns the bones of the tree's leaves in depth first order.
func (t *Tree) Leaves() []int { return append([]int(nil), t.leaves...) }

// Depth returns the number of nodes on the longest root to leaf path.
func (t *Tree) Depth() int { return t.depth }

// MaxBone returns the largest bone index referenced by a leaf. A pose used
// with the tree must hold at least MaxBone()+1 transforms.
func (t *Tree) MaxBone() int {
	max := -1
	for _, b := range t.leaves {
		if b > max {
			max = b
		}
	}
	return max
}

// Evaluate returns the field value and gradient at world point p under
// pose. It panics if pose lacks a transform for a leaf's bone.
func (t *Tree) Evaluate(p r3.Vec, pose *Pose) (float64, r3.Vec) {
	return t.root.eval(p, pose)
}

// Value returns the field value at world point p under pose.
func (t *Tree) Value(p r3.Vec, pose *Pose) float64 {
	return t.root.value(p, pose)
}

// Posed returns the tree evaluated under pose as a Field. The pose must not
// be modified while the field is in use.
func (t *Tree) Posed(pose *Pose) isoskin.Field {
	if t.MaxBone() >= pose.Len() {
		panic(fmt.Sprintf("pose has %d transforms, tree references bone %d", pose.Len(), t.MaxBone()))
	}
	return posed{t: t, pose: pose}
}

type posed struct {
	t    *Tree
	pose *Pose
}

func (p posed) Evaluate(q r3.Vec) float64 { return p.t.Value(q, p.pose) }

func (p posed) Gradient(q r3.Vec) r3.Vec {
	_, g := p.t.Evaluate(q, p.pose)
	return g
}

func (p posed) ValueGradient(q r3.Vec) (float64, r3.Vec) { return p.t.Evaluate(q, p.pose) }
