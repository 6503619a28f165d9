// Command isoskin is a diagnostic tool for the implicit skinning pipeline.
//
// Usage:
//
//	isoskin volume -in vol.raw -w 64 -h 64 -d 64 [-iso 0] [-spacing 1] -o out.stl
//	isoskin bend [-frames 30] [-angle 90] [-config deform.json] [-o residual.png] [-stl posed.stl [-octree]] [-mesh mesh.stl] [-png mesh.png]
//
// volume polygonizes a raw little-endian float32 scalar volume and writes
// the iso surface as binary STL. bend skins a synthetic two bone cylinder
// through a bending animation, logs per-frame projection statistics and
// plots them. With -png the deformed mesh of the last frame is shaded to an
// image.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/isoskin"
	"github.com/soypat/isoskin/deform"
	"github.com/soypat/isoskin/internal/d3"
	"github.com/soypat/isoskin/mesh"
	"github.com/soypat/isoskin/render"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "volume":
		err = runVolume(os.Args[2:])
	case "bend":
		err = runBend(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "isoskin:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: isoskin volume|bend [flags]")
	os.Exit(2)
}

func setLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	isoskin.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runVolume(args []string) error {
	fs := flag.NewFlagSet("volume", flag.ExitOnError)
	in := fs.String("in", "", "raw float32 volume file")
	w := fs.Int("w", 0, "volume width in samples")
	h := fs.Int("h", 0, "volume height in samples")
	d := fs.Int("d", 0, "volume depth in samples")
	iso := fs.Float64("iso", 0, "iso level to extract")
	spacing := fs.Float64("spacing", 1, "distance between samples")
	out := fs.String("o", "volume.stl", "output STL file")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)
	setLogger(*verbose)
	if *in == "" {
		return fmt.Errorf("volume: missing -in")
	}
	verts, norms, err := render.PolygonizeFile(nil, nil, *in, *w, *h, *d, r3.Vec{}, r3.Vec{X: *spacing, Y: *spacing, Z: *spacing}, *iso)
	if err != nil {
		return err
	}
	isoskin.Logger().Info("polygonized volume", "file", *in, "triangles", len(verts)/3)
	return writeSTL(*out, verts, norms)
}

func writeSTL(path string, verts, norms []r3.Vec) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.WriteSTL(fp, verts, norms); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

func runBend(args []string) error {
	fs := flag.NewFlagSet("bend", flag.ExitOnError)
	frames := fs.Int("frames", 30, "number of animation frames")
	angle := fs.Float64("angle", 90, "final elbow angle in degrees")
	configPath := fs.String("config", "", "deformer JSON config file")
	plotPath := fs.String("o", "residual.png", "output residual plot")
	stlPath := fs.String("stl", "", "write posed implicit surface of the last frame to STL")
	meshPath := fs.String("mesh", "", "write deformed mesh of the last frame to STL")
	pngPath := fs.String("png", "", "render a shaded preview of the deformed mesh of the last frame")
	res := fs.Int("res", 48, "samples along the longest axis for -stl")
	octree := fs.Bool("octree", false, "render -stl with the octree renderer instead of a sampled volume")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)
	setLogger(*verbose)
	log := isoskin.Logger()
	if *frames < 1 {
		return fmt.Errorf("bend: need at least one frame")
	}

	cfg := deform.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = deform.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}

	bind := elbowRig()
	tree, err := deform.BuildTree(bind, []int{-1, 0}, deform.DefaultFitConfig())
	if err != nil {
		return err
	}
	buf := deform.NewHostBuffer(len(bind.Verts))
	d, err := deform.New(bind, tree, buf, cfg)
	if err != nil {
		return err
	}

	maxRes := make(plotter.XYs, *frames)
	nonConv := make(plotter.XYs, *frames)
	for i := 0; i < *frames; i++ {
		a := float32(isoskin.DtoR(*angle) * float64(i+1) / float64(*frames))
		stats, err := d.Deform(elbowPose(a))
		if err != nil {
			return err
		}
		log.Info("frame", "n", i, "angle", isoskin.RtoD(float64(a)), "converged", stats.Converged,
			"nonconverged", stats.NonConverged, "stopped", stats.Stopped, "max_residual", stats.MaxResidual)
		maxRes[i] = plotter.XY{X: float64(i), Y: stats.MaxResidual}
		nonConv[i] = plotter.XY{X: float64(i), Y: float64(stats.NonConverged) / float64(len(bind.Verts))}
	}
	if err := plotStats(*plotPath, maxRes, nonConv); err != nil {
		return err
	}
	if *meshPath != "" || *pngPath != "" {
		if err := writeMesh(*meshPath, *pngPath, meshSoup(bind.Tris, d.Positions())); err != nil {
			return err
		}
	}
	if *stlPath != "" {
		if err := writePosedSurface(*stlPath, d, *res, *octree); err != nil {
			return err
		}
	}
	return nil
}

// elbowRig returns a cylinder along +Y driven by bone 0 below y=1 and
// bone 1 above, with weights blended linearly across the joint.
func elbowRig() *mesh.Mesh {
	const band = 0.25
	m := mesh.Cylinder(0.25, 2, 32, 24)
	m.BoneWeights = make([]mesh.VertexBoneData, len(m.Verts))
	for i, v := range m.Verts {
		w := float32(isoskin.Clamp((v.Y-1+band)/(2*band), 0, 1))
		if w < 1 {
			m.BoneWeights[i].Add(0, 1-w)
		}
		if w > 0 {
			m.BoneWeights[i].Add(1, w)
		}
	}
	return m
}

// elbowPose rotates bone 1 about the Z axis through the joint at y=1.
func elbowPose(angle float32) []mgl32.Mat4 {
	joint := mgl32.Translate3D(0, 1, 0).Mul4(mgl32.HomogRotate3DZ(angle)).Mul4(mgl32.Translate3D(0, -1, 0))
	return []mgl32.Mat4{mgl32.Ident4(), joint}
}

func plotStats(path string, maxRes, nonConv plotter.XYs) error {
	p := plot.New()
	p.Title.Text = "Vertex projection"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "value"
	if err := plotutil.AddLinePoints(p, "max residual", maxRes, "non-converged fraction", nonConv); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// meshSoup unrolls an indexed mesh into three vertices per triangle.
func meshSoup(tris [][3]int, pos []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, 0, 3*len(tris))
	for _, t := range tris {
		out = append(out, pos[t[0]], pos[t[1]], pos[t[2]])
	}
	return out
}

// writeMesh writes the deformed mesh soup to stlPath and previews it to
// pngPath. Either path may be empty. The preview needs an STL file, so a
// temporary one is used when stlPath is empty.
func writeMesh(stlPath, pngPath string, soup []r3.Vec) error {
	if stlPath == "" {
		fp, err := os.CreateTemp("", "isoskin-*.stl")
		if err != nil {
			return err
		}
		fp.Close()
		stlPath = fp.Name()
		defer os.Remove(stlPath)
	}
	if err := writeSTL(stlPath, soup, nil); err != nil {
		return err
	}
	if pngPath == "" {
		return nil
	}
	return savePreview(stlPath, pngPath)
}

// writePosedSurface samples the composition tree under the last frame's
// pose around the deformed mesh and writes its zero iso surface.
func writePosedSurface(path string, d *deform.Deformer, res int, octree bool) error {
	field := d.Tree().Posed(d.Pose())
	step := d3.Max(d3.BoxOf(d.Positions()).Size()) / float64(res)
	bb := d3.BoxOf(d.Positions()).Enlarge(d3.Elem(4 * step))
	if octree {
		return render.CreateSTL(path, render.NewOctreeRenderer(field, r3.Box(bb), res))
	}
	size := bb.Size()
	dims := func(l float64) int { return int(math.Ceil(l/step)) + 1 }
	spacing := d3.Elem(step)
	vol, err := render.SampleVolume(field, dims(size.X), dims(size.Y), dims(size.Z), bb.Min, spacing, 0)
	if err != nil {
		return err
	}
	return render.CreateSTL(path, render.NewGridRenderer(vol, 0))
}
