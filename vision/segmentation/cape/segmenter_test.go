package cape

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/cape/logging"
	"go.viam.com/cape/pointcloud"
)

// twoPlanesCloud is a 9x4 grid of 8 pixel cells: a wall at 1000mm on the left four cell
// columns, an empty cell column, and a plane sloping away at 45° on the right four.
func twoPlanesCloud(width, height int) *pointcloud.Organized {
	return depthCloud(width, height, func(u, v int) float64 {
		switch {
		case u < 32:
			return 1000
		case u < 40:
			return 0
		default:
			return 1000 + float64(u)
		}
	})
}

func TestSegmentSinglePlane(t *testing.T) {
	cfg := testConfig(10)
	seg, err := NewSegmenter(40, 30, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, seg.Grid().NrCells(), test.ShouldEqual, 12)

	res, err := seg.ProcessOrganized(depthCloud(40, 30, func(u, v int) float64 { return 5 }))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NrPlanarCells, test.ShouldEqual, 12)
	test.That(t, res.Planes, test.ShouldHaveLength, 1)

	plane := res.Planes[0]
	test.That(t, nearlyEqualVector(plane.Normal, r3.Vector{Z: 1}, 1e-3), test.ShouldBeTrue)
	test.That(t, plane.Offset, test.ShouldAlmostEqual, -5, 1e-3)
	// 12 cells of 100 points, the seed counted twice
	test.That(t, plane.NrPoints, test.ShouldEqual, 1300)
	test.That(t, plane.Cells, test.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
	test.That(t, plane.Distance(r3.Vector{X: 3, Y: 4, Z: 7}), test.ShouldAlmostEqual, 2, 1e-3)
	eq := plane.Equation()
	test.That(t, eq[3], test.ShouldEqual, plane.Offset)

	test.That(t, res.Labels.MaxLabel(), test.ShouldEqual, 1)
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			test.That(t, res.Labels.At(row, col), test.ShouldEqual, 1)
		}
	}
}

func TestSegmentTwoPlanes(t *testing.T) {
	cfg := testConfig(8)
	cfg.MinRegionGrowingCandidateSize = 3
	cfg.MinRegionGrowingCellsActivated = 3
	logger, logs := logging.NewObservedTestLogger(t)
	// remainder pixels right and below the grid are ignored
	seg, err := NewSegmenter(75, 35, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	res, err := seg.ProcessOrganized(twoPlanesCloud(75, 35))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NrPlanarCells, test.ShouldEqual, 32)
	test.That(t, res.Planes, test.ShouldHaveLength, 2)
	test.That(t, logs.FilterMessage("plane accepted").Len(), test.ShouldEqual, 2)

	var wall, slope int
	if res.Planes[0].Normal.Z > 0.99 {
		wall, slope = 1, 2
	} else {
		wall, slope = 2, 1
	}
	wallPlane, slopePlane := res.Planes[wall-1], res.Planes[slope-1]
	test.That(t, nearlyEqualVector(wallPlane.Normal, r3.Vector{Z: 1}, 1e-6), test.ShouldBeTrue)
	test.That(t, wallPlane.Offset, test.ShouldAlmostEqual, -1000, 1e-3)
	test.That(t, nearlyEqualVector(slopePlane.Normal, r3.Vector{X: -1, Z: 1}.Normalize(), 1e-6), test.ShouldBeTrue)
	test.That(t, slopePlane.Offset, test.ShouldAlmostEqual, -1000/math.Sqrt2, 1e-3)
	test.That(t, wallPlane.Cells, test.ShouldHaveLength, 16)
	test.That(t, slopePlane.Cells, test.ShouldHaveLength, 16)

	expected := make([][]int, 4)
	for row := range expected {
		expected[row] = []int{wall, wall, wall, wall, 0, slope, slope, slope, slope}
	}
	test.That(t, res.Labels.ToSlices(), test.ShouldResemble, expected)

	summary, err := res.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.NrPlanes, test.ShouldEqual, 2)
	test.That(t, summary.NrPlanarCells, test.ShouldEqual, 32)
	test.That(t, summary.NrLabeled, test.ShouldEqual, 32)
	test.That(t, summary.MaxMSE, test.ShouldBeGreaterThanOrEqualTo, summary.MedianMSE)
	test.That(t, summary.MeanMSE, test.ShouldBeLessThan, 1e-3)
}

func TestSegmentIsDeterministic(t *testing.T) {
	cfg := testConfig(8)
	seg, err := NewSegmenter(72, 32, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	cloud := twoPlanesCloud(72, 32)

	first, err := seg.ProcessOrganized(cloud)
	test.That(t, err, test.ShouldBeNil)
	second, err := seg.ProcessOrganized(cloud)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.Planes, test.ShouldResemble, first.Planes)
	test.That(t, second.Labels.ToSlices(), test.ShouldResemble, first.Labels.ToSlices())
}

func TestSegmentMasksAndLabels(t *testing.T) {
	cfg := testConfig(8)
	cfg.MinRegionGrowingCellsActivated = 2
	// a lone wall cell on the far side of the gap becomes a region too small to keep
	cloud := depthCloud(72, 32, func(u, v int) float64 {
		switch {
		case u < 32:
			return 1000
		case u >= 64 && v < 8:
			return 1000
		case u >= 40 && u < 64:
			return 1000 + float64(u)
		default:
			return 0
		}
	})
	logger, logs := logging.NewObservedTestLogger(t)
	seg, err := NewSegmenter(72, 32, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	res, err := seg.ProcessOrganized(cloud)
	test.That(t, err, test.ShouldBeNil)

	// the wall, the slope and the lone cell were all grown, only two were kept
	grown := logs.FilterMessage("region grown").All()
	test.That(t, grown, test.ShouldHaveLength, 3)
	seeds := map[int64]bool{}
	var consumed uint64
	for _, entry := range grown {
		fields := entry.ContextMap()
		seeds[fields["seed"].(int64)] = true
		consumed += fields["cells"].(uint64)
	}
	test.That(t, seeds, test.ShouldHaveLength, 3)
	test.That(t, int(consumed), test.ShouldEqual, res.NrPlanarCells)
	test.That(t, res.Planes, test.ShouldHaveLength, 2)
	test.That(t, res.Labels.Label(8), test.ShouldEqual, 0)

	for k, plane := range res.Planes {
		for _, id := range plane.Cells {
			test.That(t, res.Labels.Label(id), test.ShouldEqual, k+1)
		}
	}
	labeled := 0
	for id := 0; id < seg.Grid().NrCells(); id++ {
		if label := res.Labels.Label(id); label > 0 {
			labeled++
			test.That(t, res.Planes[label-1].Cells, test.ShouldContain, id)
		}
	}
	test.That(t, labeled, test.ShouldEqual, len(res.Planes[0].Cells)+len(res.Planes[1].Cells))
}

func TestSegmentRegionFilters(t *testing.T) {
	cloud := twoPlanesCloud(72, 32)
	for _, tc := range []struct {
		name   string
		modify func(*Config)
		planes int
	}{
		{"accepts both", func(*Config) {}, 2},
		{"region too small", func(c *Config) { c.MinRegionGrowingCellsActivated = 17 }, 0},
		{"score never exceeded", func(c *Config) { c.MinRegionPlanarityScore = math.Inf(1) }, 0},
		{"seed pool too small", func(c *Config) { c.MinRegionGrowingCandidateSize = 33 }, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(8)
			tc.modify(&cfg)
			seg, err := NewSegmenter(72, 32, cfg, logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)
			res, err := seg.ProcessOrganized(cloud)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, res.Planes, test.ShouldHaveLength, tc.planes)
			test.That(t, res.Labels.MaxLabel(), test.ShouldEqual, tc.planes)
			test.That(t, res.NrPlanarCells, test.ShouldEqual, 32)
		})
	}
}

func TestSegmentDriftingSurface(t *testing.T) {
	cfg := testConfig(8)
	cfg.MinRegionPlanarityScore = 0
	seg, err := NewSegmenter(48, 8, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	res, err := seg.Process(bentStrip(6, 8, 10*math.Pi/180))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Planes, test.ShouldHaveLength, 1)
	test.That(t, res.Planes[0].Cells, test.ShouldResemble, []int{0, 1, 2, 3, 4, 5})
}

func TestSegmentExactMergeAngle(t *testing.T) {
	cfg := testConfig(8)
	cfg.MinCosAngleForMerge = 1
	cfg.MinRegionPlanarityScore = 0
	logger, logs := logging.NewObservedTestLogger(t)
	seg, err := NewSegmenter(32, 16, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	cloud := depthCloud(32, 16, func(u, v int) float64 {
		return 1000 + 0.205*float64(u) + 0.1*float64(v)
	})

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := seg.ProcessOrganized(cloud)
		done <- outcome{res, err}
	}()
	var out outcome
	select {
	case out = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("segmentation did not finish")
	}
	test.That(t, out.err, test.ShouldBeNil)
	test.That(t, out.res.NrPlanarCells, test.ShouldEqual, 8)

	// every seed is consumed even when no neighbour passes the angle test
	var consumed uint64
	for _, entry := range logs.FilterMessage("region grown").All() {
		consumed += entry.ContextMap()["cells"].(uint64)
	}
	test.That(t, int(consumed), test.ShouldEqual, 8)
	test.That(t, len(out.res.Planes), test.ShouldBeBetweenOrEqual, 1, 8)
	for id := 0; id < 8; id++ {
		test.That(t, out.res.Labels.Label(id), test.ShouldBeGreaterThan, 0)
	}
}

func TestSegmentNoPlanarCells(t *testing.T) {
	seg, err := NewSegmenter(16, 16, testConfig(8), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	res, err := seg.Process(make([]r3.Vector, 256))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Planes, test.ShouldBeEmpty)
	test.That(t, res.NrPlanarCells, test.ShouldEqual, 0)
	test.That(t, res.Labels.ToSlices(), test.ShouldResemble, [][]int{{0, 0}, {0, 0}})

	summary, err := res.Summary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary, test.ShouldResemble, Summary{})
}

func TestSegmenterErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := NewSegmenter(10, 10, testConfig(11), logger)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)
	bad := testConfig(8)
	bad.HistogramBinsPerCoord = 0
	_, err = NewSegmenter(64, 64, bad, logger)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	seg, err := NewSegmenter(16, 8, testConfig(8), logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = seg.ProcessOrganized(pointcloud.NewEmptyOrganized(8, 16))
	test.That(t, errors.Is(err, ErrCloudDimensions), test.ShouldBeTrue)

	_, err = seg.Process(make([]r3.Vector, 129))
	test.That(t, errors.Is(err, ErrCloudDimensions), test.ShouldBeTrue)

	blocks := flatCells(8, 1000, 1000)
	_, err = seg.Process(blocks[:100])
	test.That(t, errors.Is(err, ErrFitting), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cell 1")
	_, err = seg.Process(nil)
	test.That(t, errors.Is(err, ErrFitting), test.ShouldBeTrue)

	res, err := seg.Process(blocks)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Planes, test.ShouldHaveLength, 1)
}

func TestLabelMap(t *testing.T) {
	lm := NewLabelMap(2, 3)
	test.That(t, lm.Rows(), test.ShouldEqual, 2)
	test.That(t, lm.Cols(), test.ShouldEqual, 3)
	lm.set(4, 2)
	lm.set(0, 1)
	test.That(t, lm.At(1, 1), test.ShouldEqual, 2)
	test.That(t, lm.Label(4), test.ShouldEqual, 2)
	test.That(t, lm.MaxLabel(), test.ShouldEqual, 2)
	test.That(t, lm.ToSlices(), test.ShouldResemble, [][]int{{1, 0, 0}, {0, 2, 0}})
}
