// Package cape extracts planes from organized point clouds by region growing over a grid of
// planar cells, following "Fast Cylinder and Plane Extraction from Depth Cameras for Visual
// Odometry" (Proença and Gao, 2018).
//
// The cloud is cut into square cells and a plane is fit to each. Planar cells are binned by
// normal direction; the best fitting cell of the fullest bin seeds a region which grows over
// neighbouring cells whose plane agrees with the cell that reached them. Regions that are big
// and planar enough become plane segments. This repeats until the bins run dry.
package cape

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/cape/logging"
	"go.viam.com/cape/pointcloud"
	"go.viam.com/cape/utils"
)

// Segmenter segments point clouds of one image size. It keeps no state between calls to
// Process.
type Segmenter struct {
	cfg    Config
	grid   Grid
	width  int
	height int
	logger logging.Logger
}

// NewSegmenter returns a segmenter for width x height clouds.
func NewSegmenter(width, height int, cfg Config, logger logging.Logger) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := NewGrid(width, height, cfg.PatchSize)
	if err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg, grid: grid, width: width, height: height, logger: logger}, nil
}

// Grid returns the cell grid clouds are cut into.
func (s *Segmenter) Grid() Grid {
	return s.grid
}

// ProcessOrganized reorders an image ordered cloud into cell blocks and segments it.
func (s *Segmenter) ProcessOrganized(cloud *pointcloud.Organized) (*Result, error) {
	if cloud.Width != s.width || cloud.Height != s.height {
		return nil, errors.Wrapf(ErrCloudDimensions, "cloud is (%d, %d), segmenter expects (%d, %d)",
			cloud.Width, cloud.Height, s.width, s.height)
	}
	blocks, err := cloud.CellBlocks(s.cfg.PatchSize)
	if err != nil {
		return nil, err
	}
	return s.Process(blocks)
}

// frame holds the per cell data of one Process call.
type frame struct {
	grid     Grid
	cfg      *Config
	cells    []*CellModel
	planar   *bitset.BitSet
	distTols []float64
}

// Process segments a cloud in cell block order: cell i owns points
// [i*PointsPerCell, (i+1)*PointsPerCell), cells in raster order.
func (s *Segmenter) Process(points []r3.Vector) (*Result, error) {
	if need := s.grid.NrCells() * s.grid.PointsPerCell(); len(points) > need {
		return nil, errors.Wrapf(ErrCloudDimensions, "cloud has %d points, grid of %dx%d cells holds %d",
			len(points), s.grid.Cols(), s.grid.Rows(), need)
	}
	f := &frame{grid: s.grid, cfg: &s.cfg}
	if err := f.findPlanarCells(points); err != nil {
		return nil, err
	}
	nrPlanar := int(f.planar.Count())
	s.logger.Debugw("planar cells found", "planar", nrPlanar, "cells", s.grid.NrCells())

	f.computeCellDistTols(points)
	hist := f.initializeHistogram()
	result, err := s.createPlaneSegments(f, hist)
	if err != nil {
		return nil, err
	}
	result.NrPlanarCells = nrPlanar
	return result, nil
}

// findPlanarCells fits a model to every cell and flags the planar ones.
func (f *frame) findPlanarCells(points []r3.Vector) error {
	nrCells, ppc := f.grid.NrCells(), f.grid.PointsPerCell()
	f.cells = make([]*CellModel, nrCells)
	f.planar = bitset.New(uint(nrCells))
	for id := 0; id < nrCells; id++ {
		start, end := id*ppc, (id+1)*ppc
		if end > len(points) {
			return newFittingError(id, "cloud of %d points ends before the cell's block [%d, %d)", len(points), start, end)
		}
		cell, err := NewCellModel(points[start:end], f.grid.PatchSize(), f.cfg)
		if err != nil {
			return errors.Wrapf(err, "cell %d", id)
		}
		f.cells[id] = cell
		if cell.IsPlanar() {
			f.planar.Set(uint(id))
		}
	}
	return nil
}

// computeCellDistTols stores, for every planar cell, the squared distance a neighbouring
// plane may be off by and still merge. The distance between the first and last point of the
// block stands in for the cell diagonal.
func (f *frame) computeCellDistTols(points []r3.Vector) {
	ppc := f.grid.PointsPerCell()
	sinAngle := math.Sin(math.Acos(f.cfg.MinCosAngleForMerge))
	minDist, maxDist := f.cfg.minMergeDist(), f.cfg.MaxMergeDist

	f.distTols = make([]float64, f.grid.NrCells())
	for i, ok := f.planar.NextSet(0); ok; i, ok = f.planar.NextSet(i + 1) {
		start := int(i) * ppc
		diagonal := points[start+ppc-1].Sub(points[start]).Norm()
		f.distTols[i] = utils.Square(utils.Clamp(diagonal*sinAngle, minDist, maxDist))
	}
}

// initializeHistogram bins the normals of the planar cells.
func (f *frame) initializeHistogram() *NormalHistogram {
	coords := make([]SphericalCoords, len(f.cells))
	for i, ok := f.planar.NextSet(0); ok; i, ok = f.planar.NextSet(i + 1) {
		coords[i] = NormalToSpherical(f.cells[i].Normal())
	}
	return NewNormalHistogram(f.cfg.HistogramBinsPerCoord, coords, f.planar)
}

// selectSeed returns the candidate with the smallest MSE, the first one on ties.
func (f *frame) selectSeed(candidates []int) int {
	seed, minMSE := candidates[0], math.Inf(1)
	for _, id := range candidates {
		if mse := f.cells[id].MSE(); mse < minMSE {
			seed, minMSE = id, mse
		}
	}
	return seed
}

// createPlaneSegments grows regions from histogram seeds until no bin holds enough
// candidates. Every grown region consumes its cells whether or not it becomes a plane.
func (s *Segmenter) createPlaneSegments(f *frame, hist *NormalHistogram) (*Result, error) {
	result := &Result{Labels: NewLabelMap(s.grid.Rows(), s.grid.Cols())}
	unassigned := f.planar.Clone()
	remaining := int(f.planar.Count())

	for remaining > 0 {
		candidates := hist.MostPopulatedBinMembers()
		if len(candidates) == 0 || len(candidates) < s.cfg.MinRegionGrowingCandidateSize {
			s.logger.Debugw("seed pool exhausted", "candidates", len(candidates), "remaining", remaining)
			break
		}
		seed := f.selectSeed(candidates)

		activation := bitset.New(uint(s.grid.NrCells()))
		if err := f.growSeed(seed, unassigned, activation); err != nil {
			return nil, err
		}
		if !activation.Test(uint(seed)) || !unassigned.IsSuperSet(activation) {
			return nil, errors.Wrapf(ErrInvariantViolation, "region seeded at cell %d left the unassigned cells", seed)
		}
		s.logger.Debugw("region grown", "seed", seed, "cells", activation.Count())

		// the seed's own sums are merged into its copy as well
		segment := f.cells[seed].clone()
		members := make([]int, 0, activation.Count())
		for i, ok := activation.NextSet(0); ok; i, ok = activation.NextSet(i + 1) {
			id := int(i)
			segment.Merge(f.cells[id])
			hist.Remove(id)
			remaining--
			members = append(members, id)
		}
		unassigned.InPlaceDifference(activation)

		if len(members) < s.cfg.MinRegionGrowingCellsActivated {
			s.logger.Debugw("region too small", "seed", seed, "cells", len(members))
			continue
		}
		if err := segment.CalculateStats(); err != nil {
			return nil, errors.Wrapf(err, "region seeded at cell %d", seed)
		}
		if !(segment.Score() > s.cfg.MinRegionPlanarityScore) {
			s.logger.Debugw("region not planar enough", "seed", seed, "cells", len(members), "score", segment.Score())
			continue
		}

		result.Planes = append(result.Planes, newPlaneSegment(segment, members))
		label := len(result.Planes)
		for _, id := range members {
			result.Labels.set(id, label)
		}
		s.logger.Debugw("plane accepted", "label", label, "seed", seed, "cells", len(members),
			"normal", segment.Normal(), "offset", segment.Offset())
	}

	if summary, err := result.Summary(); err == nil {
		s.logger.Debugw("segmentation done", "planes", summary.NrPlanes, "labeled", summary.NrLabeled,
			"medianMSE", summary.MedianMSE, "meanMSE", summary.MeanMSE)
	}
	return result, nil
}
