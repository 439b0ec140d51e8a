package physion

import (
	"bufio"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/rdk/pointcloud"
)

// MetersToMillimeters converts archive units to the millimeters rdk clouds use.
const MetersToMillimeters = 1000.0

// ToRDK copies the points in [start, end) into an rdk point cloud, scaling
// positions by scale. Points that land on the same position collapse into one.
func ToRDK(cloud *PointCloud, start, end int, scale float64) (pointcloud.PointCloud, error) {
	if start < 0 || end > len(cloud.Points) || start > end {
		return nil, errors.Errorf("point range [%d, %d) out of bounds for %d points", start, end, len(cloud.Points))
	}
	out := pointcloud.NewWithPrealloc(end - start)
	for _, p := range cloud.Points[start:end] {
		c := color.NRGBA{
			R: uint8(p.Color[0]*255 + 0.5),
			G: uint8(p.Color[1]*255 + 0.5),
			B: uint8(p.Color[2]*255 + 0.5),
			A: 255,
		}
		if err := out.Set(p.Position.Mul(scale), pointcloud.NewColoredData(c)); err != nil {
			return nil, errors.Wrap(err, "cannot add point")
		}
	}
	return out, nil
}

// WritePCD writes the whole cloud as a binary PCD file.
func WritePCD(w io.Writer, cloud *PointCloud, scale float64) error {
	pc, err := ToRDK(cloud, 0, cloud.Len(), scale)
	if err != nil {
		return err
	}
	return pointcloud.ToPCD(pc, w, pointcloud.PCDBinary)
}

// WriteXYZRGB writes one "x y z r g b" line per point, keeping point order.
func WriteXYZRGB(w io.Writer, cloud *PointCloud) error {
	bw := bufio.NewWriter(w)
	line := make([]byte, 0, 128)
	for _, row := range cloud.Rows() {
		line = line[:0]
		for i, v := range row {
			if i > 0 {
				line = append(line, ' ')
			}
			line = strconv.AppendFloat(line, v, 'g', -1, 64)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportFile writes the cloud to path, choosing the format from the
// extension: .pcd (millimeters, as rdk expects) or .xyzrgb/.txt (archive units).
func ExportFile(path string, cloud *PointCloud) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pcd" && ext != ".xyzrgb" && ext != ".txt" {
		return errors.Errorf("unsupported export format %q", ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if ext == ".pcd" {
		return WritePCD(f, cloud, MetersToMillimeters)
	}
	return WriteXYZRGB(f, cloud)
}
