package deform

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrBufferMapping is returned when the deformed position buffer cannot be
// mapped or released. The frame is dropped.
var ErrBufferMapping = errors.New("buffer mapping failed")

// Buffer is the device resident deformed position buffer shared with the
// renderer. Map gives exclusive write access to its positions until Unmap
// is called. The renderer must not read the buffer while it is mapped.
type Buffer interface {
	Map() ([]mgl32.Vec3, error)
	Unmap() error
}

// HostBuffer is a Buffer in host memory. It enforces single mapping: Map on
// a mapped buffer or Unmap on an unmapped buffer fail.
type HostBuffer struct {
	mu     sync.Mutex
	data   []mgl32.Vec3
	mapped bool
}

var _ Buffer = (*HostBuffer)(nil)

// NewHostBuffer returns a buffer of n positions.
func NewHostBuffer(n int) *HostBuffer {
	return &HostBuffer{data: make([]mgl32.Vec3, n)}
}

var (
	errMapped   = errors.New("buffer already mapped")
	errUnmapped = errors.New("buffer not mapped")
)

// Map implements Buffer.
func (b *HostBuffer) Map() ([]mgl32.Vec3, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped {
		return nil, errMapped
	}
	b.mapped = true
	return b.data, nil
}

// Unmap implements Buffer.
func (b *HostBuffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mapped {
		return errUnmapped
	}
	b.mapped = false
	return nil
}

// Mapped reports whether the buffer is currently mapped.
func (b *HostBuffer) Mapped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapped
}

// Positions returns a copy of the buffer contents as the renderer would
// read them. It returns nil while the buffer is mapped.
func (b *HostBuffer) Positions() []mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped {
		return nil
	}
	return append([]mgl32.Vec3(nil), b.data...)
}
