// Package main is a command that segments an organized point cloud or depth image into planes.
package main

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"go.viam.com/cape/logging"
)

const (
	// Flags.
	flagConfig     = "config"
	flagDebug      = "debug"
	flagCloud      = "cloud"
	flagWidth      = "width"
	flagHeight     = "height"
	flagDepth      = "depth"
	flagIntrinsics = "intrinsics"
	flagDelimiter  = "delimiter"
	flagLabels     = "labels"
	flagPlanes     = "planes"
)

// newApp returns the cape CLI writing results to out and errors to errOut.
func newApp(out, errOut io.Writer) *cli.App {
	logger := logging.NewBlankLogger("cape")
	return &cli.App{
		Name:            "cape",
		Usage:           "extract planes from organized point clouds",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load segmentation parameters from `FILE` (.json, .yaml); built-in defaults otherwise",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("cape")
			}
			return nil
		},
		After: func(c *cli.Context) error {
			//nolint:errcheck
			logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "segment",
				Usage:     "segment one frame and print the planes found",
				UsageText: "cape segment (--cloud FILE --width W --height H | --depth FILE --intrinsics FILE) [options]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagCloud,
						Usage: "image ordered point cloud `FILE`: .pcd, .las or delimited x,y,z text, one row per pixel",
					},
					&cli.IntFlag{
						Name:  flagWidth,
						Usage: "width of the cloud in pixels",
					},
					&cli.IntFlag{
						Name:  flagHeight,
						Usage: "height of the cloud in pixels",
					},
					&cli.StringFlag{
						Name:  flagDelimiter,
						Value: ",",
						Usage: "column delimiter of the cloud file",
					},
					&cli.PathFlag{
						Name:  flagDepth,
						Usage: "16-bit depth PNG `FILE` in millimeters",
					},
					&cli.PathFlag{
						Name:  flagIntrinsics,
						Usage: "camera intrinsics `FILE`, a 3x3 matrix as text or .json",
					},
					&cli.PathFlag{
						Name:  flagLabels,
						Usage: "write the cell labels as a color PNG to `FILE`",
					},
					&cli.PathFlag{
						Name:  flagPlanes,
						Usage: "write the planes as CSV to `FILE`",
					},
				},
				Action: func(c *cli.Context) error {
					return segmentAction(c, logger)
				},
			},
		},
	}
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		logging.NewLogger("cape").Fatal(err)
	}
}
