// Package physion reconstructs colored point clouds from Physion simulation
// recordings and serves them as a Viam vision service.
package physion

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/vision"
	vis "go.viam.com/rdk/vision"
	"go.viam.com/rdk/vision/classification"
	objdet "go.viam.com/rdk/vision/objectdetection"
	"go.viam.com/rdk/vision/viscapture"
)

const (
	ModelName = "physion-pointcloud"
)

var (
	// Model is the colon-delimited-triplet viam:vision:physion-pointcloud
	Model            = resource.NewModel("viam", "vision", ModelName)
	errUnimplemented = errors.New("unimplemented")
)

func init() {
	resource.RegisterService(vision.API, Model, resource.Registration[vision.Service, *Config]{
		Constructor: newPointCloudService,
	})
}

type reconstruction struct {
	frame string
	cloud *PointCloud
	rgb   *RGBImage
}

func (r *reconstruction) frameBounds() image.Rectangle {
	return image.Rect(0, 0, r.rgb.Width, r.rgb.Height)
}

type pointCloudService struct {
	resource.Named
	resource.AlwaysRebuild

	logger logging.Logger
	conf   *Config
	static *StaticSceneInfo

	mu   sync.Mutex
	last *reconstruction
}

func newPointCloudService(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (vision.Service, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, errors.Errorf("Could not assert proper config for %s", ModelName)
	}
	newConf.setDefaults()

	// read the static scene once so a bad archive fails at configuration time
	archive, err := OpenArchive(newConf.ArchivePath)
	if err != nil {
		return nil, err
	}
	static := archive.Static()
	if err := archive.Close(); err != nil {
		return nil, errors.Wrap(err, "cannot close archive")
	}

	return &pointCloudService{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		conf:   newConf,
		static: static,
	}, nil
}

// frameFor returns the frame requested through extra, or the configured one.
func (s *pointCloudService) frameFor(extra map[string]interface{}) (string, error) {
	if v, ok := extra["frame"]; ok {
		return ParseFrameID(v)
	}
	return FormatFrameID(s.conf.Frame), nil
}

// reconstruct runs (or reuses) the reconstruction of a frame. The archive is
// only open for the duration of the call.
func (s *pointCloudService) reconstruct(ctx context.Context, frame string) (*reconstruction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && s.last.frame == frame {
		return s.last, nil
	}

	gen, err := NewGenerator(s.conf.ArchivePath, frame, s.conf.options(), s.logger)
	if err != nil {
		return nil, err
	}
	defer gen.Close()

	cloud, err := gen.Run(ctx)
	if err != nil {
		return nil, err
	}
	s.last = &reconstruction{frame: frame, cloud: cloud, rgb: gen.Scene().RGB}
	return s.last, nil
}

func (s *pointCloudService) DetectionsFromCamera(
	ctx context.Context,
	cameraName string,
	extra map[string]interface{},
) ([]objdet.Detection, error) {
	frame, err := s.frameFor(extra)
	if err != nil {
		return nil, err
	}
	rec, err := s.reconstruct(ctx, frame)
	if err != nil {
		return nil, err
	}
	return formatDetections(rec.frameBounds(), rec.cloud.Objects), nil
}

// Detections treats img as a segmentation pass of the configured archive.
func (s *pointCloudService) Detections(ctx context.Context, img image.Image, extra map[string]interface{}) ([]objdet.Detection, error) {
	if img == nil {
		return nil, errors.New("no segmentation image given")
	}
	seg, err := imageToMat(FromImage(img))
	if err != nil {
		return nil, err
	}
	defer seg.Close()

	var objects []Segment
	for i, c := range s.static.SegmentationColors {
		pixels := selectColor(seg, c)
		if len(pixels) == 0 {
			continue
		}
		objects = append(objects, Segment{
			ObjectID: s.static.ObjectIDs[i],
			Name:     s.static.Name(i),
			Bounds:   boundsOf(pixels),
		})
	}
	return formatDetections(img.Bounds(), objects), nil
}

func (s *pointCloudService) ClassificationsFromCamera(
	ctx context.Context,
	cameraName string,
	n int,
	extra map[string]interface{},
) (classification.Classifications, error) {
	return nil, errUnimplemented
}

func (s *pointCloudService) Classifications(ctx context.Context, img image.Image,
	n int, extra map[string]interface{},
) (classification.Classifications, error) {
	return nil, errUnimplemented
}

func (s *pointCloudService) GetProperties(ctx context.Context, extra map[string]interface{}) (*vision.Properties, error) {
	return &vision.Properties{
		DetectionSupported:      true,
		ClassificationSupported: false,
		ObjectPCDsSupported:     true,
	}, nil
}

// GetObjectPointClouds returns one object per visible tracked object followed
// by the background, in millimeters.
func (s *pointCloudService) GetObjectPointClouds(
	ctx context.Context,
	cameraName string,
	extra map[string]interface{},
) ([]*vis.Object, error) {
	frame, err := s.frameFor(extra)
	if err != nil {
		return nil, err
	}
	rec, err := s.reconstruct(ctx, frame)
	if err != nil {
		return nil, err
	}
	return formatObjects(rec.cloud)
}

func (s *pointCloudService) CaptureAllFromCamera(
	ctx context.Context,
	cameraName string,
	opt viscapture.CaptureOptions,
	extra map[string]interface{},
) (viscapture.VisCapture, error) {
	frame, err := s.frameFor(extra)
	if err != nil {
		return viscapture.VisCapture{}, err
	}
	rec, err := s.reconstruct(ctx, frame)
	if err != nil {
		return viscapture.VisCapture{}, err
	}

	var capt viscapture.VisCapture
	if opt.ReturnImage {
		capt.Image = rec.rgb.Image()
	}
	if opt.ReturnDetections {
		capt.Detections = formatDetections(rec.frameBounds(), rec.cloud.Objects)
	}
	if opt.ReturnObject {
		if capt.Objects, err = formatObjects(rec.cloud); err != nil {
			return viscapture.VisCapture{}, err
		}
	}
	return capt, nil
}

func (s *pointCloudService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
	return nil
}

// DoCommand supports
//
//	{"command": "export", "path": "out.pcd", "frame": 3}
//	{"command": "frames"}
func (s *pointCloudService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	name, _ := cmd["command"].(string)
	switch name {
	case "export":
		path, ok := cmd["path"].(string)
		if !ok || path == "" {
			return nil, errors.New(`export needs a "path"`)
		}
		frame, err := s.frameFor(cmd)
		if err != nil {
			return nil, err
		}
		rec, err := s.reconstruct(ctx, frame)
		if err != nil {
			return nil, err
		}
		if err := ExportFile(path, rec.cloud); err != nil {
			return nil, err
		}
		return map[string]interface{}{"path": path, "frame": frame, "points": rec.cloud.Len()}, nil
	case "frames":
		archive, err := OpenArchive(s.conf.ArchivePath)
		if err != nil {
			return nil, err
		}
		defer archive.Close()
		ids, err := archive.Frames()
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return map[string]interface{}{"frames": out}, nil
	default:
		return nil, errors.Errorf("unknown command %q", name)
	}
}

// formatDetections reports every segment with full confidence; imgBounds is
// the frame the segment boxes are relative to.
func formatDetections(imgBounds image.Rectangle, objects []Segment) []objdet.Detection {
	var detections []objdet.Detection
	for _, obj := range objects {
		detections = append(detections, objdet.NewDetection(imgBounds, obj.Bounds, 1, obj.Name))
	}
	return detections
}

func formatObjects(cloud *PointCloud) ([]*vis.Object, error) {
	segments := append(append([]Segment{}, cloud.Objects...), cloud.Background)
	objects := make([]*vis.Object, 0, len(segments))
	for _, seg := range segments {
		pc, err := ToRDK(cloud, seg.Start, seg.End, MetersToMillimeters)
		if err != nil {
			return nil, err
		}
		obj, err := vis.NewObjectWithLabel(pc, seg.Name, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot build object %s", seg.Name)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
