package physion

import (
	"bytes"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"
)

// perspective is an OpenGL style projection matrix.
func perspective(fovY, aspect, near, far float64) *mat.Dense {
	f := 1 / math.Tan(fovY/2)
	return mat.NewDense(4, 4, []float64{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / (near - far), 2 * far * near / (near - far),
		0, 0, -1, 0,
	})
}

// lookFrom is a world to camera transform: rotate by yaw then pitch, then translate.
func lookFrom(yaw, pitch float64, tx, ty, tz float64) *mat.Dense {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	ry := mat.NewDense(4, 4, []float64{
		cy, 0, sy, 0,
		0, 1, 0, 0,
		-sy, 0, cy, 0,
		0, 0, 0, 1,
	})
	rx := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, cp, -sp, 0,
		0, sp, cp, 0,
		0, 0, 0, 1,
	})
	var m mat.Dense
	m.Mul(rx, ry)
	m.Set(0, 3, tx)
	m.Set(1, 3, ty)
	m.Set(2, 3, tz)
	return &m
}

func flatten(m *mat.Dense) []float64 {
	out := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func encodePNG(t *testing.T, img *RGBImage) []byte {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, img.Image()), test.ShouldBeNil)
	return buf.Bytes()
}

// fixtureScene is a 4x4 frame with one object covering two pixels. A second
// tracked object is never visible.
type fixtureScene struct {
	rgb, seg *RGBImage
	depth    *DepthMap
	cam      *mat.Dense
	proj     *mat.Dense
	static   *StaticSceneInfo
}

var (
	objectColor = [3]uint8{10, 20, 30}
	hiddenColor = [3]uint8{200, 100, 50}
	objectPix   = []PixelIndex{{Row: 1, Col: 1}, {Row: 2, Col: 3}}
)

func newFixtureScene() *fixtureScene {
	const w, h = 4, 4
	fs := &fixtureScene{
		rgb:   NewRGBImage(w, h),
		seg:   NewRGBImage(w, h),
		depth: &DepthMap{Width: w, Height: h, Values: make([]float32, w*h)},
		cam:   lookFrom(0.3, -0.2, 0.5, -1, -2),
		proj:  perspective(math.Pi/3, 1, DefaultNearPlane, DefaultFarPlane),
		static: &StaticSceneInfo{
			ObjectIDs:          []int64{7, 9},
			Scales:             []float64{1, 1},
			Colors:             []float64{1, 0, 0, 0, 1, 0},
			SegmentationColors: [][3]uint8{objectColor, hiddenColor},
		},
	}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			fs.rgb.Set(row, col, [3]uint8{uint8(row * 60), uint8(col * 60), 255})
			fs.seg.Set(row, col, [3]uint8{1, 1, 1})
			fs.depth.Values[row*w+col] = 3 + float32(row+col)/8
		}
	}
	for _, p := range objectPix {
		fs.seg.Set(p.Row, p.Col, objectColor)
	}
	return fs
}

func (fs *fixtureScene) scene(t *testing.T) *Scene {
	t.Helper()
	r, err := NewReprojector(fs.cam, fs.proj, fs.rgb.Width, fs.rgb.Height)
	test.That(t, err, test.ShouldBeNil)
	return &Scene{Static: fs.static, RGB: fs.rgb, Segmentation: fs.seg, Depth: fs.depth, Reprojector: r}
}

type datasetCreator interface {
	CreateDataset(name string, dtype *hdf5.Datatype, dspace *hdf5.Dataspace) (*hdf5.Dataset, error)
}

func writeDataset[T any](t *testing.T, loc datasetCreator, name string, data []T, dims ...uint) {
	t.Helper()
	if len(dims) == 0 {
		dims = []uint{uint(len(data))}
	}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	test.That(t, err, test.ShouldBeNil)
	defer space.Close()

	dtype, err := hdf5.NewDatatypeFromValue(data[0])
	test.That(t, err, test.ShouldBeNil)

	ds, err := loc.CreateDataset(name, dtype, space)
	test.That(t, err, test.ShouldBeNil)
	defer ds.Close()
	test.That(t, ds.Write(&data), test.ShouldBeNil)
}

// writeArchive stores the fixture as frame 0000 of a new archive.
func (fs *fixtureScene) writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.hdf5")
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()

	static, err := f.CreateGroup("static")
	test.That(t, err, test.ShouldBeNil)
	writeDataset(t, static, "object_ids", fs.static.ObjectIDs)
	writeDataset(t, static, "scale", fs.static.Scales)
	writeDataset(t, static, "color", fs.static.Colors, uint(len(fs.static.ObjectIDs)), 3)
	segColors := make([]uint8, 0, 3*len(fs.static.SegmentationColors))
	for _, c := range fs.static.SegmentationColors {
		segColors = append(segColors, c[:]...)
	}
	writeDataset(t, static, "object_segmentation_colors", segColors, uint(len(fs.static.SegmentationColors)), 3)
	test.That(t, static.Close(), test.ShouldBeNil)

	frames, err := f.CreateGroup("frames")
	test.That(t, err, test.ShouldBeNil)
	defer frames.Close()
	frame, err := frames.CreateGroup("0000")
	test.That(t, err, test.ShouldBeNil)
	defer frame.Close()

	matrices, err := frame.CreateGroup("camera_matrices")
	test.That(t, err, test.ShouldBeNil)
	writeDataset(t, matrices, "camera_matrix", flatten(fs.cam))
	writeDataset(t, matrices, "projection_matrix", flatten(fs.proj))
	test.That(t, matrices.Close(), test.ShouldBeNil)

	images, err := frame.CreateGroup("images")
	test.That(t, err, test.ShouldBeNil)
	writeDataset(t, images, PassImage, encodePNG(t, fs.rgb))
	writeDataset(t, images, PassSegmentation, encodePNG(t, fs.seg))
	writeDataset(t, images, PassDepth, encodePNG(t, EncodeDepth(fs.depth, DefaultNearPlane, DefaultFarPlane)))
	test.That(t, images.Close(), test.ShouldBeNil)

	objects, err := frame.CreateGroup("objects")
	test.That(t, err, test.ShouldBeNil)
	writeDataset(t, objects, "positions", []float64{0, 0, 0, 1, 1, 1}, 2, 3)
	writeDataset(t, objects, "rotations", []float64{0, 0, 0, 1, 0, 0, 0, 1}, 2, 4)
	test.That(t, objects.Close(), test.ShouldBeNil)

	return path
}
