package physion

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Options tune how a frame is reconstructed. The zero value uses the
// standard depth pass and the recordings' clipping planes.
type Options struct {
	NearPlane float64
	FarPlane  float64
	DepthMode DepthMode
	// Workers bounds how many objects are reprojected concurrently.
	Workers int
	// Sink, if set, is shown every reconstruction.
	Sink Sink
}

func (o Options) withDefaults() Options {
	if o.NearPlane == 0 && o.FarPlane == 0 {
		o.NearPlane, o.FarPlane = DefaultNearPlane, DefaultFarPlane
	}
	if o.DepthMode == "" {
		o.DepthMode = DepthModeStandard
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Sink == nil {
		o.Sink = NoopSink{}
	}
	return o
}

func (o Options) validate() error {
	if o.NearPlane < 0 || o.NearPlane >= o.FarPlane {
		return errors.Errorf("near plane (%v) needs to be non-negative and closer than far plane (%v)", o.NearPlane, o.FarPlane)
	}
	return o.DepthMode.Validate()
}

// Generator reconstructs the point cloud of a single frame. The archive is
// held open from construction until Close.
type Generator struct {
	archive *Archive
	frame   *Frame
	scene   *Scene
	opts    Options
	logger  logging.Logger
}

// NewGenerator opens the archive, loads the frame and decodes its passes.
// The archive is closed again if any step fails.
func NewGenerator(path, frameID string, opts Options, logger logging.Logger) (gen *Generator, err error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, frameError(path, frameID, err)
	}

	archive, err := OpenArchive(path)
	if err != nil {
		return nil, frameError(path, frameID, err)
	}
	defer func() {
		if err != nil {
			archive.Close()
		}
	}()

	frame, err := archive.Frame(frameID)
	if err != nil {
		return nil, frameError(path, frameID, err)
	}
	scene, err := decodeScene(archive.Static(), frame, opts)
	if err != nil {
		return nil, frameError(path, frameID, err)
	}

	logger.Debugw("loaded frame", "archive", path, "frame", frameID,
		"width", scene.RGB.Width, "height", scene.RGB.Height, "objects", len(scene.Static.ObjectIDs))
	return &Generator{archive: archive, frame: frame, scene: scene, opts: opts, logger: logger}, nil
}

func decodeScene(static *StaticSceneInfo, frame *Frame, opts Options) (*Scene, error) {
	rgb, err := DecodeImage(frame.ImageBlob)
	if err != nil {
		return nil, withPass(err, PassImage)
	}
	seg, err := DecodeImage(frame.SegmentationBlob)
	if err != nil {
		return nil, withPass(err, PassSegmentation)
	}
	depthImg, err := rawOrDecode(frame.DepthBlob, rgb.Width, rgb.Height)
	if err != nil {
		return nil, withPass(err, PassDepth)
	}
	depth, err := DecodeDepth(depthImg, opts.DepthMode, opts.NearPlane, opts.FarPlane)
	if err != nil {
		return nil, err
	}
	reproj, err := NewReprojector(frame.CameraMatrix, frame.ProjectionMatrix, rgb.Width, rgb.Height)
	if err != nil {
		return nil, err
	}
	return &Scene{Static: static, RGB: rgb, Segmentation: seg, Depth: depth, Reprojector: reproj}, nil
}

func withPass(err error, pass string) error {
	var de *ImageDecodeError
	if errors.As(err, &de) {
		de.Pass = pass
	}
	return err
}

// Frame returns the raw frame the generator was built for.
func (g *Generator) Frame() *Frame { return g.frame }

// Scene returns the decoded passes of the frame.
func (g *Generator) Scene() *Scene { return g.scene }

// Run builds the point cloud: object points first, then background.
func (g *Generator) Run(ctx context.Context) (*PointCloud, error) {
	cloud, err := Assemble(ctx, g.scene, g.opts.Workers, g.logger)
	if err != nil {
		return nil, frameError(g.archive.Path(), g.frame.ID, err)
	}
	if err := g.opts.Sink.Show(ctx, cloud); err != nil {
		return nil, frameError(g.archive.Path(), g.frame.ID, err)
	}
	g.logger.Infow("reconstructed frame", "archive", g.archive.Path(), "frame", g.frame.ID,
		"points", cloud.Len(), "objects", len(cloud.Objects))
	return cloud, nil
}

// Close releases the archive.
func (g *Generator) Close() error {
	return g.archive.Close()
}
