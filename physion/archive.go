package physion

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"
)

// Image passes stored under frames/<id>/images.
const (
	PassImage        = "_img"
	PassSegmentation = "_id"
	PassDepth        = "_depth"
)

// StaticSceneInfo is the frame independent part of an archive.
type StaticSceneInfo struct {
	ObjectIDs          []int64
	ModelNames         []string
	Scales             []float64
	Colors             []float64
	SegmentationColors [][3]uint8
}

// Name returns the model name of the i-th object.
func (s *StaticSceneInfo) Name(i int) string {
	if i < len(s.ModelNames) && s.ModelNames[i] != "" {
		return s.ModelNames[i]
	}
	return fmt.Sprintf("object-%d", s.ObjectIDs[i])
}

// Frame holds the raw content of one recorded frame.
type Frame struct {
	ID               string
	CameraMatrix     *mat.Dense
	ProjectionMatrix *mat.Dense
	ImageBlob        []byte
	SegmentationBlob []byte
	DepthBlob        []byte
	Positions        []float64
	Rotations        []float64
}

// Archive is an open Physion HDF5 recording.
type Archive struct {
	path   string
	file   *hdf5.File
	static *StaticSceneInfo
}

// FormatFrameID renders a frame number the way frames are keyed in an archive.
func FormatFrameID(n int) string {
	return fmt.Sprintf("%04d", n)
}

// ParseFrameID accepts a frame number or an already formatted frame key.
func ParseFrameID(v interface{}) (string, error) {
	switch f := v.(type) {
	case int:
		return checkedFrameID(f)
	case int32:
		return checkedFrameID(int(f))
	case int64:
		return checkedFrameID(int(f))
	case float64:
		if f != math.Trunc(f) {
			return "", errors.Errorf("frame %v is not a whole number", f)
		}
		return checkedFrameID(int(f))
	case string:
		if f == "" {
			return "", errors.New("empty frame id")
		}
		if _, err := strconv.Atoi(f); err != nil {
			return "", errors.Errorf("frame id %q is not numeric", f)
		}
		return f, nil
	default:
		return "", errors.Errorf("unsupported frame id type %T", v)
	}
}

func checkedFrameID(n int) (string, error) {
	if n < 0 {
		return "", errors.Errorf("frame %d is negative", n)
	}
	return FormatFrameID(n), nil
}

// OpenArchive opens an archive read-only and loads its static scene info.
func OpenArchive(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}
	a := &Archive{path: path, file: f}

	for _, group := range []string{"static", "frames"} {
		if !f.LinkExists(group) {
			f.Close()
			return nil, &ArchiveOpenError{Path: path, Err: errors.Errorf("missing group %q", group)}
		}
	}

	a.static, err = a.readStatic()
	if err != nil {
		f.Close()
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}
	return a, nil
}

// Path returns the file the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Static returns the scene information shared by all frames.
func (a *Archive) Static() *StaticSceneInfo { return a.static }

// Close releases the file handle.
func (a *Archive) Close() error {
	return a.file.Close()
}

func (a *Archive) readStatic() (*StaticSceneInfo, error) {
	ids, err := readDataset[int64](a.file, "static/object_ids")
	if err != nil {
		return nil, err
	}
	flatColors, err := readDataset[uint8](a.file, "static/object_segmentation_colors")
	if err != nil {
		return nil, err
	}
	if len(flatColors)%3 != 0 {
		return nil, errors.Errorf("object_segmentation_colors has %d values, want a multiple of 3", len(flatColors))
	}
	if len(flatColors)/3 != len(ids) {
		return nil, errors.Errorf("%d object ids but %d segmentation colors", len(ids), len(flatColors)/3)
	}
	info := &StaticSceneInfo{ObjectIDs: ids, SegmentationColors: make([][3]uint8, len(ids))}
	for i := range info.SegmentationColors {
		copy(info.SegmentationColors[i][:], flatColors[i*3:i*3+3])
	}

	if info.Scales, err = readDataset[float64](a.file, "static/scale"); err != nil {
		return nil, err
	}
	if info.Colors, err = readDataset[float64](a.file, "static/color"); err != nil {
		return nil, err
	}
	// names are informational, fixed length byte strings are not readable
	// into Go strings so a missing list only costs the labels
	if names, err := readDataset[string](a.file, "static/model_names"); err == nil && len(names) == len(ids) {
		info.ModelNames = names
	}
	return info, nil
}

// Frames lists the frame keys of the archive in ascending order.
func (a *Archive) Frames() ([]string, error) {
	g, err := a.file.OpenGroup("frames")
	if err != nil {
		return nil, errors.Wrap(err, "cannot open frames group")
	}
	defer g.Close()

	n, err := g.NumObjects()
	if err != nil {
		return nil, errors.Wrap(err, "cannot count frames")
	}
	ids := make([]string, 0, n)
	for i := uint(0); i < n; i++ {
		name, err := g.ObjectNameByIndex(i)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read frame name %d", i)
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// Frame reads the calibration matrices and image passes of one frame.
func (a *Archive) Frame(id string) (*Frame, error) {
	root := "frames/" + id
	if !a.file.LinkExists(root) {
		return nil, &ArchiveOpenError{Path: a.path, Err: errors.Errorf("missing frame %q", id)}
	}

	fr := &Frame{ID: id}
	cam, err := readDataset[float64](a.file, root+"/camera_matrices/camera_matrix")
	if err != nil {
		return nil, &ArchiveOpenError{Path: a.path, Err: err}
	}
	proj, err := readDataset[float64](a.file, root+"/camera_matrices/projection_matrix")
	if err != nil {
		return nil, &ArchiveOpenError{Path: a.path, Err: err}
	}
	if len(cam) != 16 || len(proj) != 16 {
		return nil, &ArchiveOpenError{
			Path: a.path,
			Err:  errors.Errorf("frame %s: calibration matrices have %d and %d values, want 16", id, len(cam), len(proj)),
		}
	}
	fr.CameraMatrix = matrixFromFlat(cam)
	fr.ProjectionMatrix = matrixFromFlat(proj)

	blobs := map[string]*[]byte{
		PassImage:        &fr.ImageBlob,
		PassSegmentation: &fr.SegmentationBlob,
		PassDepth:        &fr.DepthBlob,
	}
	for pass, dst := range blobs {
		if *dst, err = readDataset[byte](a.file, root+"/images/"+pass); err != nil {
			return nil, &ArchiveOpenError{Path: a.path, Err: err}
		}
	}

	// object poses are not needed for reconstruction, some recordings omit them
	if a.file.LinkExists(root + "/objects") {
		fr.Positions, _ = readDataset[float64](a.file, root+"/objects/positions")
		fr.Rotations, _ = readDataset[float64](a.file, root+"/objects/rotations")
	}
	return fr, nil
}

type datasetOpener interface {
	OpenDataset(name string) (*hdf5.Dataset, error)
}

// readDataset reads a whole dataset flattened into a slice, converting the
// stored element type to T.
func readDataset[T any](loc datasetOpener, name string) ([]T, error) {
	ds, err := loc.OpenDataset(name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open dataset %q", name)
	}
	defer ds.Close()

	space := ds.Space()
	n := space.SimpleExtentNPoints()
	space.Close()

	buf := make([]T, n)
	if n == 0 {
		return buf, nil
	}
	if err := ds.Read(&buf); err != nil {
		return nil, errors.Wrapf(err, "cannot read dataset %q", name)
	}
	return buf, nil
}
