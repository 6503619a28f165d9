package main

import (
	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
)

// savePreview renders the STL file at stlPath with a Phong shader and
// writes it to pngPath. The rig bends in the XY plane so the camera looks
// down the Z axis.
func savePreview(stlPath, pngPath string) error {
	mesh, err := fauxgl.LoadSTL(stlPath)
	if err != nil {
		return err
	}
	const (
		width, height = 800, 800
		scale         = 2 // supersampling
		fovy          = 30
		near, far     = 1, 10
	)
	var (
		eye    = fauxgl.V(0.5, 0.5, 4)
		center = fauxgl.V(0, 0, 0)
		up     = fauxgl.V(0, 1, 0)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
	)
	mesh.BiUnitCube()
	context := fauxgl.NewContext(width*scale, height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, near, far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor("#468966")
	context.Shader = shader
	context.DrawMesh(mesh)
	image := resize.Resize(width, height, context.Image(), resize.Bilinear)
	return fauxgl.SavePNG(pngPath, image)
}
