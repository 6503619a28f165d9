package render

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/soypat/isoskin/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Binary STL layout: an 80 byte header and a little endian triangle count,
// followed by one 50 byte record per triangle holding the facet normal, the
// three vertices as float32 triples and a zero attribute count.
const (
	stlHeaderSize = 84
	stlRecordSize = 50
)

// WriteSTL writes a triangle soup in binary STL format. verts and norms
// are laid out as returned by Polygonize: three consecutive entries per
// triangle. The facet normal written for each triangle is the unit mean of
// its three vertex normals. If norms is nil the facet normal follows the
// vertex winding instead.
func WriteSTL(w io.Writer, verts, norms []r3.Vec) error {
	switch {
	case len(verts) == 0:
		return errors.New("empty triangle soup")
	case len(verts)%3 != 0:
		return fmt.Errorf("soup of %d vertices is not a whole number of triangles", len(verts))
	case norms != nil && len(norms) != len(verts):
		return fmt.Errorf("got %d normals for %d vertices", len(norms), len(verts))
	}
	bw := bufio.NewWriter(w)
	var header [stlHeaderSize]byte
	binary.LittleEndian.PutUint32(header[80:], uint32(len(verts)/3))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	var rec [stlRecordSize]byte
	for i := 0; i < len(verts); i += 3 {
		t := Triangle3{verts[i], verts[i+1], verts[i+2]}
		var n r3.Vec
		if norms == nil {
			n = d3.Unit(t.Normal())
		} else {
			n = d3.Unit(r3.Add(norms[i], r3.Add(norms[i+1], norms[i+2])))
		}
		putSTLRecord(rec[:], n, t)
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CreateSTL streams the triangles of a Renderer to an STL file. Facet
// normals follow the vertex winding. The triangle count is patched into the
// header once the renderer is exhausted.
func CreateSTL(path string, r Renderer) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	if _, err := fp.Seek(stlHeaderSize, io.SeekStart); err != nil {
		return err
	}
	var (
		bw    = bufio.NewWriter(fp)
		buf   = make([]Triangle3, 1<<10)
		rec   [stlRecordSize]byte
		count uint32
	)
	for {
		n, rerr := r.ReadTriangles(buf)
		for _, t := range buf[:n] {
			putSTLRecord(rec[:], d3.Unit(t.Normal()), t)
			if _, err := bw.Write(rec[:]); err != nil {
				return err
			}
			count++
		}
		if rerr == io.EOF {
			break
		} else if rerr != nil {
			return rerr
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	var header [stlHeaderSize]byte
	binary.LittleEndian.PutUint32(header[80:], count)
	if _, err := fp.WriteAt(header[:], 0); err != nil {
		return err
	}
	return fp.Close()
}

func putSTLRecord(b []byte, n r3.Vec, t Triangle3) {
	_ = b[stlRecordSize-1] // early bounds check
	putVec32(b, n)
	putVec32(b[12:], t[0])
	putVec32(b[24:], t[1])
	putVec32(b[36:], t[2])
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func putVec32(b []byte, v r3.Vec) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}
