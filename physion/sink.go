package physion

import (
	"context"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Sink receives finished reconstructions, e.g. to show them to a user.
type Sink interface {
	Show(ctx context.Context, cloud *PointCloud) error
}

// NoopSink discards everything.
type NoopSink struct{}

// Show does nothing.
func (NoopSink) Show(context.Context, *PointCloud) error { return nil }

// PlotSink renders a top-down (x/z) scatter of the cloud to a PNG file.
type PlotSink struct {
	Path string
	// Size is the side of the square image; 8 inches when zero.
	Size vg.Length
}

// Show writes the plot.
func (s PlotSink) Show(_ context.Context, cloud *PointCloud) error {
	if s.Path == "" {
		return errors.New("plot sink needs an output path")
	}
	size := s.Size
	if size == 0 {
		size = 8 * vg.Inch
	}

	p := plot.New()
	p.Title.Text = "point cloud (top view)"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "z"

	xys := make(plotter.XYs, len(cloud.Points))
	for i, pt := range cloud.Points {
		xys[i] = plotter.XY{X: pt.Position.X, Y: pt.Position.Z}
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return errors.Wrap(err, "cannot build scatter plot")
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c := cloud.Points[i].Color
		return draw.GlyphStyle{
			Color:  color.NRGBA{R: uint8(c[0] * 255), G: uint8(c[1] * 255), B: uint8(c[2] * 255), A: 255},
			Radius: vg.Points(0.6),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(scatter)

	if err := p.Save(size, size, s.Path); err != nil {
		return errors.Wrapf(err, "cannot save plot to %s", s.Path)
	}
	return nil
}

// WriteOverlay draws each object's mask bounding box and name onto the RGB
// image and writes it to path; the format follows the file extension.
func WriteOverlay(path string, rgb *RGBImage, cloud *PointCloud) error {
	mat, err := imageToMat(rgb)
	if err != nil {
		return err
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)

	box := color.RGBA{255, 0, 0, 0}
	for _, obj := range cloud.Objects {
		gocv.Rectangle(&bgr, obj.Bounds, box, 1)
		gocv.PutText(&bgr, obj.Name, obj.Bounds.Min.Add(image.Pt(0, -2)), gocv.FontHersheyPlain, 0.8, box, 1)
	}

	if ok := gocv.IMWrite(path, bgr); !ok {
		return errors.Errorf("failed to save the overlay image to %s", path)
	}
	return nil
}
