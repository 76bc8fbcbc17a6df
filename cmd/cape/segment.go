package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/cape/logging"
	"go.viam.com/cape/pointcloud"
	"go.viam.com/cape/rimage"
	"go.viam.com/cape/rimage/transform"
	"go.viam.com/cape/vision/segmentation/cape"
)

func segmentAction(c *cli.Context, logger logging.Logger) error {
	cfg := cape.DefaultConfig()
	if fn := c.String(flagConfig); fn != "" {
		loaded, err := cape.NewConfigFromFile(fn)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	cloud, err := loadCloud(c)
	if err != nil {
		return err
	}
	logger.Debugw("cloud loaded", "width", cloud.Width, "height", cloud.Height)

	seg, err := cape.NewSegmenter(cloud.Width, cloud.Height, cfg, logger.Sublogger("segmenter"))
	if err != nil {
		return err
	}
	res, err := seg.ProcessOrganized(cloud)
	if err != nil {
		return err
	}
	summary, err := res.Summary()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, planesTable(res))
	fmt.Fprintf(c.App.Writer, "%d planes over %d of %d planar cells (grid %dx%d), median MSE %.4g\n",
		summary.NrPlanes, summary.NrLabeled, summary.NrPlanarCells, seg.Grid().Cols(), seg.Grid().Rows(), summary.MedianMSE)

	if fn := c.Path(flagLabels); fn != "" {
		if err := rimage.WriteLabelsToFile(res.Labels, cfg.PatchSize, fn); err != nil {
			return err
		}
		logger.Infow("labels written", "file", fn)
	}
	if fn := c.Path(flagPlanes); fn != "" {
		if err := writePlanesFile(res, fn); err != nil {
			return err
		}
		logger.Infow("planes written", "file", fn)
	}
	return nil
}

// loadCloud reads the organized cloud from either a point file or a depth image.
func loadCloud(c *cli.Context) (*pointcloud.Organized, error) {
	cloudFn, depthFn := c.Path(flagCloud), c.Path(flagDepth)
	switch {
	case cloudFn != "" && depthFn != "":
		return nil, errors.Errorf("only one of --%s and --%s can be given", flagCloud, flagDepth)
	case cloudFn != "":
		return loadCloudFile(c, cloudFn)
	case depthFn != "":
		if c.Path(flagIntrinsics) == "" {
			return nil, errors.Errorf("--%s requires --%s", flagDepth, flagIntrinsics)
		}
		dm, err := rimage.NewDepthMapFromFile(depthFn)
		if err != nil {
			return nil, err
		}
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromFile(c.Path(flagIntrinsics), dm.Width(), dm.Height())
		if err != nil {
			return nil, err
		}
		return intrinsics.DepthMapToOrganizedCloud(dm)
	default:
		return nil, errors.Errorf("one of --%s or --%s is required", flagCloud, flagDepth)
	}
}

// loadCloudFile reads a point file by extension. pcd files carry their own layout, which
// --width and --height override; every other format needs them.
func loadCloudFile(c *cli.Context, fn string) (*pointcloud.Organized, error) {
	width, height := c.Int(flagWidth), c.Int(flagHeight)
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".pcd":
		cloud, err := pointcloud.ReadPCDFile(fn)
		if err != nil || (width == 0 && height == 0) {
			return cloud, err
		}
		return pointcloud.NewOrganized(width, height, cloud.Points)
	case ".las":
		return pointcloud.NewOrganizedFromLASFile(fn, width, height)
	default:
		delimiter, size := utf8.DecodeRuneInString(c.String(flagDelimiter))
		if size == 0 || size != len(c.String(flagDelimiter)) {
			return nil, errors.Errorf("--%s must be a single character, got %q", flagDelimiter, c.String(flagDelimiter))
		}
		return pointcloud.NewOrganizedFromCSVFile(fn, width, height, delimiter)
	}
}

func planesTable(res *cape.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Label", "Normal", "Offset", "Mean", "MSE", "Score", "Points", "Cells"})
	for i, p := range res.Planes {
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", p.Normal.X, p.Normal.Y, p.Normal.Z),
			fmt.Sprintf("%.1f", p.Offset),
			fmt.Sprintf("X:%.0f, Y:%.0f, Z:%.0f", p.Mean.X, p.Mean.Y, p.Mean.Z),
			fmt.Sprintf("%.4g", p.MSE),
			fmt.Sprintf("%.4g", p.Score),
			p.NrPoints,
			len(p.Cells),
		})
	}
	return t.Render()
}

var planesHeader = []string{"label", "nx", "ny", "nz", "d", "mean_x", "mean_y", "mean_z", "mse", "score", "points", "cells"}

// writePlanesFile writes one CSV row per plane, in label order.
func writePlanesFile(res *cape.Result, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	w := csv.NewWriter(f)
	if err := w.Write(planesHeader); err != nil {
		return err
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i, p := range res.Planes {
		record := []string{
			strconv.Itoa(i + 1),
			format(p.Normal.X), format(p.Normal.Y), format(p.Normal.Z), format(p.Offset),
			format(p.Mean.X), format(p.Mean.Y), format(p.Mean.Z),
			format(p.MSE), format(p.Score),
			strconv.Itoa(p.NrPoints), strconv.Itoa(len(p.Cells)),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
