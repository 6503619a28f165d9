// Package render extracts triangle meshes from scalar fields with marching
// cubes and writes them to STL files.
package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle3 is a triangle in 3D space.
type Triangle3 = r3.Triangle

// Renderer streams triangles. ReadTriangles returns io.EOF after the last
// triangle has been read.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}
