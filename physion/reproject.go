package physion

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// PixelSample is a pixel in image space together with its depth.
type PixelSample struct {
	Row   float64
	Col   float64
	Depth float32
}

// Reprojector maps image-space samples back into world space using a
// frame's camera and projection matrices.
type Reprojector struct {
	width, height int
	proj          *mat.Dense
	invProj       *mat.Dense
	invCam        *mat.Dense
	cam           *mat.Dense
}

// NewReprojector inverts the calibration matrices of a frame. The width and
// height are those of the image the samples were taken from.
func NewReprojector(camera, projection *mat.Dense, width, height int) (*Reprojector, error) {
	var invCam, invProj mat.Dense
	if err := invCam.Inverse(camera); err != nil {
		return nil, &GeometryError{Matrix: "camera", Err: err}
	}
	if err := invProj.Inverse(projection); err != nil {
		return nil, &GeometryError{Matrix: "projection", Err: err}
	}
	return &Reprojector{
		width:   width,
		height:  height,
		proj:    mat.DenseCopyOf(projection),
		invProj: &invProj,
		invCam:  &invCam,
		cam:     mat.DenseCopyOf(camera),
	}, nil
}

// Reproject returns the world position of every sample, in input order.
func (r *Reprojector) Reproject(samples []PixelSample) []r3.Vector {
	if len(samples) == 0 {
		return nil
	}
	p22, p23, p32 := r.proj.At(2, 2), r.proj.At(2, 3), r.proj.At(3, 2)
	w, h := float32(r.width), float32(r.height)

	// one homogeneous clip-space column per sample
	clip := mat.NewDense(4, len(samples), nil)
	for i, s := range samples {
		// image rows run down, normalized device y runs up
		x := float32(s.Col) / w
		y := 1 - float32(s.Row)/h
		x = x*2 - 1
		y = y*2 - 1
		d := s.Depth

		clip.Set(0, i, float64(x*d))
		clip.Set(1, i, float64(y*d))
		clip.Set(2, i, float64(d))
		clip.Set(3, i, (float64(d)-p23)/p22*p32)
	}

	var camSpace, world mat.Dense
	camSpace.Mul(r.invProj, clip)
	world.Mul(r.invCam, &camSpace)

	out := make([]r3.Vector, len(samples))
	for i := range out {
		out[i] = r3.Vector{X: world.At(0, i), Y: world.At(1, i), Z: world.At(2, i)}
	}
	return out
}

// Project is the forward transform matching Reproject: it returns the
// sample a world point would produce in the image.
func (r *Reprojector) Project(p r3.Vector) PixelSample {
	world := mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1})
	var camSpace, clip mat.VecDense
	camSpace.MulVec(r.cam, world)
	clip.MulVec(r.proj, &camSpace)

	d := clip.AtVec(2)
	x := clip.AtVec(0) / d
	y := clip.AtVec(1) / d
	return PixelSample{
		Col:   (x + 1) / 2 * float64(r.width),
		Row:   (1 - (y+1)/2) * float64(r.height),
		Depth: float32(d),
	}
}

// matrixFromFlat reshapes 16 values into a row-major 4×4 matrix.
func matrixFromFlat(v []float64) *mat.Dense {
	data := make([]float64, 16)
	copy(data, v)
	return mat.NewDense(4, 4, data)
}
