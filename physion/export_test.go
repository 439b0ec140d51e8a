package physion

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/test"
)

func smallCloud() *PointCloud {
	return &PointCloud{
		Points: []Point{
			{Position: r3.Vector{X: 1, Y: 2, Z: 3}, Color: [3]float64{1, 0, 0.5}},
			{Position: r3.Vector{X: -0.25, Y: 0, Z: 4}, Color: [3]float64{0, 1, 0}},
			{Position: r3.Vector{X: 0.001, Y: 0.002, Z: 0.003}, Color: [3]float64{0, 0, 1}},
		},
		Objects:    []Segment{{ObjectID: 1, Name: "ball", Start: 0, End: 2}},
		Background: Segment{ObjectID: -1, Name: "background", Start: 2, End: 3},
	}
}

func TestWriteXYZRGB(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, WriteXYZRGB(&buf, smallCloud()), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual,
		"1 2 3 1 0 0.5\n-0.25 0 4 0 1 0\n0.001 0.002 0.003 0 0 1\n")
}

func TestToRDK(t *testing.T) {
	cloud := smallCloud()
	pc, err := ToRDK(cloud, 0, 2, MetersToMillimeters)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)

	d, ok := pc.At(1000, 2000, 3000)
	test.That(t, ok, test.ShouldBeTrue)
	r, g, b := d.RGB255()
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{255, 0, 128})

	_, err = ToRDK(cloud, 2, 4, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWritePCD(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, WritePCD(&buf, smallCloud(), 1), test.ShouldBeNil)

	pc, err := pointcloud.ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)
}

func TestExportFile(t *testing.T) {
	fs := newFixtureScene()
	cloud, err := Assemble(context.Background(), fs.scene(t), 1, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	dir := t.TempDir()

	txt := filepath.Join(dir, "frame.xyzrgb")
	test.That(t, ExportFile(txt, cloud), test.ShouldBeNil)
	content, err := os.ReadFile(txt)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(string(content), "\n"), test.ShouldEqual, 16)

	test.That(t, ExportFile(filepath.Join(dir, "frame.pcd"), cloud), test.ShouldBeNil)

	err = ExportFile(filepath.Join(dir, "frame.ply"), cloud)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported export format")
}
