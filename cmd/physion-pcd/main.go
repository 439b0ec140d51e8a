// Package main reconstructs point clouds from Physion recordings on the command line.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/rdk/logging"

	"github.com/viam-modules/physion-pointcloud/physion"
)

const (
	flagArchive   = "archive"
	flagFrame     = "frame"
	flagNear      = "near"
	flagFar       = "far"
	flagDepthMode = "depth-mode"
	flagWorkers   = "workers"
	flagOut       = "out"
	flagPlot      = "plot"
	flagOverlay   = "overlay"
	flagDebug     = "debug"
)

func main() {
	var logger logging.Logger

	archiveFlag := &cli.StringFlag{
		Name:     flagArchive,
		Aliases:  []string{"a"},
		Usage:    "Physion HDF5 `FILE`",
		Required: true,
	}

	app := &cli.App{
		Name:  "physion-pcd",
		Usage: "reconstruct colored point clouds from Physion recordings",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("physion-pcd")
			} else {
				logger = logging.NewLogger("physion-pcd")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "reconstruct",
				Usage: "build the point cloud of one frame",
				Flags: []cli.Flag{
					archiveFlag,
					&cli.IntFlag{Name: flagFrame, Aliases: []string{"f"}, Usage: "frame number"},
					&cli.Float64Flag{Name: flagNear, Value: physion.DefaultNearPlane, Usage: "near clipping plane of the depth shader"},
					&cli.Float64Flag{Name: flagFar, Value: physion.DefaultFarPlane, Usage: "far clipping plane of the depth shader"},
					&cli.StringFlag{Name: flagDepthMode, Value: string(physion.DepthModeStandard), Usage: "depth pass encoding (_depth or _depth_simple)"},
					&cli.IntFlag{Name: flagWorkers, Value: 1, Usage: "objects reprojected concurrently"},
					&cli.StringFlag{Name: flagOut, Aliases: []string{"o"}, Usage: "write the cloud to `FILE` (.pcd, .xyzrgb or .txt)"},
					&cli.StringFlag{Name: flagPlot, Usage: "write a top-down plot to `FILE` (.png)"},
					&cli.StringFlag{Name: flagOverlay, Usage: "write the image with object boxes to `FILE`"},
				},
				Action: func(c *cli.Context) error {
					return reconstruct(c, logger)
				},
			},
			{
				Name:  "frames",
				Usage: "list the frames of a recording",
				Flags: []cli.Flag{archiveFlag},
				Action: func(c *cli.Context) error {
					archive, err := physion.OpenArchive(c.String(flagArchive))
					if err != nil {
						return err
					}
					defer archive.Close()

					ids, err := archive.Frames()
					if err != nil {
						return err
					}
					for _, id := range ids {
						fmt.Fprintln(c.App.Writer, id)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func reconstruct(c *cli.Context, logger logging.Logger) error {
	opts := physion.Options{
		NearPlane: c.Float64(flagNear),
		FarPlane:  c.Float64(flagFar),
		DepthMode: physion.DepthMode(c.String(flagDepthMode)),
		Workers:   c.Int(flagWorkers),
	}
	if p := c.String(flagPlot); p != "" {
		opts.Sink = physion.PlotSink{Path: p}
	}

	gen, err := physion.NewGenerator(c.String(flagArchive), physion.FormatFrameID(c.Int(flagFrame)), opts, logger)
	if err != nil {
		return err
	}
	defer gen.Close()

	cloud, err := gen.Run(c.Context)
	if err != nil {
		return err
	}

	if out := c.String(flagOut); out != "" {
		if err := physion.ExportFile(out, cloud); err != nil {
			return errors.Wrap(err, "export failed")
		}
	}
	if overlay := c.String(flagOverlay); overlay != "" {
		if err := physion.WriteOverlay(overlay, gen.Scene().RGB, cloud); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.App.Writer, "frame %s: %d points, %d objects, %d background points\n",
		gen.Frame().ID, cloud.Len(), len(cloud.Objects), cloud.Background.End-cloud.Background.Start)
	return nil
}
