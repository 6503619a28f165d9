package compose

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/isoskin/internal/d3"
)

// Pose holds the inverse world transforms of every bone for one frame.
type Pose struct {
	inv []d3.Transform
	// singular[i] is set when bone i has no inverse. Nil if no bone is singular.
	singular []bool
}

// NewPose returns the pose for the given per-bone skinning transforms,
// indexed by bone ID. Each transform maps bind-pose positions to the
// current pose; the identity transform is the bind pose.
//
// Singular transforms, such as the zero-scale matrices used to hide a bone,
// are accepted as long as no field of the evaluated Tree is bound to that
// bone. Evaluating a leaf bound to a singular bone panics.
func NewPose(transforms []mgl32.Mat4) *Pose {
	p := &Pose{inv: make([]d3.Transform, len(transforms))}
	for i, m := range transforms {
		t := d3.FromMat4(m)
		if t.Det() == 0 {
			if p.singular == nil {
				p.singular = make([]bool, len(transforms))
			}
			p.singular[i] = true
			continue
		}
		p.inv[i] = t.Inv()
	}
	return p
}

// IdentityPose returns the bind pose of n bones.
func IdentityPose(n int) *Pose {
	return &Pose{inv: make([]d3.Transform, n)}
}

// Len returns the number of bone transforms in the pose.
func (p *Pose) Len() int { return len(p.inv) }

func (p *Pose) inverse(bone int) d3.Transform {
	if bone >= len(p.inv) {
		panic(fmt.Sprintf("no transform for bone %d in pose of %d bones", bone, len(p.inv)))
	}
	if p.singular != nil && p.singular[bone] {
		panic(fmt.Sprintf("bone %d transform is singular", bone))
	}
	return p.inv[bone]
}
