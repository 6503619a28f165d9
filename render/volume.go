package render

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/chewxy/math32"
	"github.com/soypat/isoskin"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrVolumeLoadMismatch is returned when a volume file does not hold
	// exactly the number of samples of the declared dimensions.
	ErrVolumeLoadMismatch = errors.New("volume size does not match dimensions")
	// ErrVolumeSample is returned when a volume holds a NaN or infinite sample.
	ErrVolumeSample = errors.New("non-finite volume sample")
)

// Volume is a regular grid of scalar samples. Sample (x,y,z) is stored at
// Data[x + W*(y + H*z)] and located at Origin + (x,y,z)*Spacing.
type Volume struct {
	Data    []float32
	W, H, D int
	Origin  r3.Vec
	// Spacing is the distance between samples along each axis.
	Spacing r3.Vec
}

// NewVolume returns a zeroed volume. A zero spacing means unit spacing.
func NewVolume(w, h, d int, origin, spacing r3.Vec) *Volume {
	if w <= 0 || h <= 0 || d <= 0 {
		panic("volume dimensions must be positive")
	}
	if spacing == (r3.Vec{}) {
		spacing = r3.Vec{X: 1, Y: 1, Z: 1}
	}
	return &Volume{
		Data:    make([]float32, w*h*d),
		W:       w,
		H:       h,
		D:       d,
		Origin:  origin,
		Spacing: spacing,
	}
}

// Index returns the Data index of sample (x,y,z).
func (v *Volume) Index(x, y, z int) int { return x + v.W*(y+v.H*z) }

// At returns sample (x,y,z).
func (v *Volume) At(x, y, z int) float32 { return v.Data[v.Index(x, y, z)] }

// Set sets sample (x,y,z).
func (v *Volume) Set(x, y, z int, f float32) { v.Data[v.Index(x, y, z)] = f }

// Point returns the position of sample (x,y,z).
func (v *Volume) Point(x, y, z int) r3.Vec {
	return r3.Vec{
		X: v.Origin.X + float64(x)*v.Spacing.X,
		Y: v.Origin.Y + float64(y)*v.Spacing.Y,
		Z: v.Origin.Z + float64(z)*v.Spacing.Z,
	}
}

// Bounds returns the box spanned by the samples.
func (v *Volume) Bounds() r3.Box {
	return r3.Box{Min: v.Origin, Max: v.Point(v.W-1, v.H-1, v.D-1)}
}

// ReadVolume reads a headerless little-endian float32 volume of w*h*d
// samples. The reader must hold exactly that many samples.
func ReadVolume(r io.Reader, w, h, d int) (*Volume, error) {
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, fmt.Errorf("%w: bad dimensions %dx%dx%d", ErrVolumeLoadMismatch, w, h, d)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	want := 4 * w * h * d
	if len(b) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %dx%dx%d", ErrVolumeLoadMismatch, len(b), want, w, h, d)
	}
	vol := NewVolume(w, h, d, r3.Vec{}, r3.Vec{})
	for i := range vol.Data {
		f := math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: sample %d is %v", ErrVolumeSample, i, f)
		}
		vol.Data[i] = f
	}
	return vol, nil
}

// LoadVolume reads a volume file, see ReadVolume.
func LoadVolume(path string, w, h, d int) (*Volume, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	vol, err := ReadVolume(fp, w, h, d)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return vol, nil
}

// WriteVolume writes the samples of vol in the layout read by ReadVolume.
func WriteVolume(w io.Writer, vol *Volume) error {
	bw := bufio.NewWriter(w)
	var b [4]byte
	for _, f := range vol.Data {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveVolume writes vol to a file, see WriteVolume.
func SaveVolume(path string, vol *Volume) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteVolume(fp, vol); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// SampleVolume builds a volume by evaluating s at every grid point. Slabs
// of constant z are evaluated concurrently by at most workers goroutines;
// workers <= 0 uses GOMAXPROCS. s must be safe for concurrent use.
func SampleVolume(s isoskin.Scalar, w, h, d int, origin, spacing r3.Vec, workers int) (*Volume, error) {
	vol := NewVolume(w, h, d, origin, spacing)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for z := 0; z < d; z++ {
		z := z
		g.Go(func() error {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					f := float32(s.Evaluate(vol.Point(x, y, z)))
					if math32.IsNaN(f) || math32.IsInf(f, 0) {
						return fmt.Errorf("%w: at %v", ErrVolumeSample, vol.Point(x, y, z))
					}
					vol.Set(x, y, z, f)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vol, nil
}
