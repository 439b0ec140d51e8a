package physion

import (
	"context"
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"golang.org/x/sync/errgroup"
)

// Point is a reconstructed world position with its color in [0,1].
type Point struct {
	Position r3.Vector
	Color    [3]float64
}

// Segment is the contiguous range [Start, End) of points that came from one object.
type Segment struct {
	ObjectID int64
	Name     string
	Start    int
	End      int
	// Bounds is the image-space bounding box of the object's mask.
	Bounds image.Rectangle
}

// PointCloud is an ordered reconstruction: object points in object-id order
// followed by background points. Points are not deduplicated.
type PointCloud struct {
	Points     []Point
	Objects    []Segment
	Background Segment
}

// Len returns the number of points.
func (pc *PointCloud) Len() int { return len(pc.Points) }

// Rows returns the cloud as N×6 rows of x, y, z, r, g, b.
func (pc *PointCloud) Rows() [][6]float64 {
	rows := make([][6]float64, len(pc.Points))
	for i, p := range pc.Points {
		rows[i] = [6]float64{p.Position.X, p.Position.Y, p.Position.Z, p.Color[0], p.Color[1], p.Color[2]}
	}
	return rows
}

// Scene is everything needed to reconstruct one frame.
type Scene struct {
	Static       *StaticSceneInfo
	RGB          *RGBImage
	Segmentation *RGBImage
	Depth        *DepthMap
	Reprojector  *Reprojector
}

func (s *Scene) validate() error {
	w, h := s.RGB.Width, s.RGB.Height
	if s.Segmentation.Width != w || s.Segmentation.Height != h {
		return errors.Errorf("segmentation pass is %dx%d, image is %dx%d", s.Segmentation.Width, s.Segmentation.Height, w, h)
	}
	if s.Depth.Width != w || s.Depth.Height != h {
		return errors.Errorf("depth pass is %dx%d, image is %dx%d", s.Depth.Width, s.Depth.Height, w, h)
	}
	return nil
}

type objectPass struct {
	pixels []PixelIndex
	points []r3.Vector
}

// Assemble reconstructs the scene. Each object's pixels are selected by its
// segmentation color and reprojected; the pixels no object claimed form the
// background, which is appended last. With workers > 1 objects are processed
// concurrently; the output does not depend on the number of workers.
func Assemble(ctx context.Context, s *Scene, workers int, logger logging.Logger) (*PointCloud, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	seg, err := imageToMat(s.Segmentation)
	if err != nil {
		return nil, err
	}
	defer seg.Close()

	passes := make([]objectPass, len(s.Static.ObjectIDs))
	g, gctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := range s.Static.ObjectIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pixels := selectColor(seg, s.Static.SegmentationColors[i])
			if len(pixels) == 0 {
				return nil
			}
			passes[i] = objectPass{pixels: pixels, points: s.Reprojector.Reproject(s.samples(pixels))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cloud := &PointCloud{}
	claimed := make([][]PixelIndex, 0, len(passes))
	for i, pass := range passes {
		if len(pass.pixels) == 0 {
			logger.Debugw("object not visible, skipping", "object_id", s.Static.ObjectIDs[i], "name", s.Static.Name(i))
			continue
		}
		start := len(cloud.Points)
		cloud.Points = s.appendPoints(cloud.Points, pass.pixels, pass.points)
		cloud.Objects = append(cloud.Objects, Segment{
			ObjectID: s.Static.ObjectIDs[i],
			Name:     s.Static.Name(i),
			Start:    start,
			End:      len(cloud.Points),
			Bounds:   boundsOf(pass.pixels),
		})
		claimed = append(claimed, pass.pixels)
	}
	if len(cloud.Objects) == 0 {
		return nil, &NoObjectPointsError{Objects: len(s.Static.ObjectIDs)}
	}

	background := complement(s.RGB.Width, s.RGB.Height, claimed...)
	start := len(cloud.Points)
	cloud.Points = s.appendPoints(cloud.Points, background, s.Reprojector.Reproject(s.samples(background)))
	cloud.Background = Segment{
		ObjectID: -1,
		Name:     "background",
		Start:    start,
		End:      len(cloud.Points),
		Bounds:   image.Rect(0, 0, s.RGB.Width, s.RGB.Height),
	}

	logger.Debugw("assembled scene",
		"objects", len(cloud.Objects), "object_points", start, "background_points", len(background))
	return cloud, nil
}

func (s *Scene) samples(pixels []PixelIndex) []PixelSample {
	out := make([]PixelSample, len(pixels))
	for i, p := range pixels {
		out[i] = PixelSample{Row: float64(p.Row), Col: float64(p.Col), Depth: s.Depth.At(p.Row, p.Col)}
	}
	return out
}

func (s *Scene) appendPoints(dst []Point, pixels []PixelIndex, world []r3.Vector) []Point {
	for i, p := range pixels {
		c := s.RGB.At(p.Row, p.Col)
		dst = append(dst, Point{
			Position: world[i],
			Color:    [3]float64{float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255},
		})
	}
	return dst
}
