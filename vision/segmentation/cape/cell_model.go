package cape

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/cape/utils"
)

// minPlanePoints is the fewest points a plane can be fit to.
const minPlanePoints = 3

// planeStats holds the first and second order sums of a set of points. Sums are additive,
// so merging two sets is adding their stats.
type planeStats struct {
	sx, sy, sz    float64
	sxx, syy, szz float64
	sxy, sxz, syz float64
	n             int
}

func (s *planeStats) add(pt r3.Vector) {
	s.sx += pt.X
	s.sy += pt.Y
	s.sz += pt.Z
	s.sxx += pt.X * pt.X
	s.syy += pt.Y * pt.Y
	s.szz += pt.Z * pt.Z
	s.sxy += pt.X * pt.Y
	s.sxz += pt.X * pt.Z
	s.syz += pt.Y * pt.Z
	s.n++
}

func (s *planeStats) merge(other planeStats) {
	s.sx += other.sx
	s.sy += other.sy
	s.sz += other.sz
	s.sxx += other.sxx
	s.syy += other.syy
	s.szz += other.szz
	s.sxy += other.sxy
	s.sxz += other.sxz
	s.syz += other.syz
	s.n += other.n
}

func (s *planeStats) finite() bool {
	for _, v := range [...]float64{s.sx, s.sy, s.sz, s.sxx, s.syy, s.szz, s.sxy, s.sxz, s.syz} {
		if !utils.IsFinite(v) {
			return false
		}
	}
	return true
}

// CellModel is the plane fitted to the valid points of one grid cell, or to the union of
// several cells once merged. The plane is n·x + d = 0 with n a unit vector pointing away
// from the sensor origin, so d <= 0.
type CellModel struct {
	stats planeStats

	normal r3.Vector
	offset float64
	mean   r3.Vector
	mse    float64
	score  float64
	planar bool
}

// validPoint reports whether a point carries a depth reading.
func validPoint(pt r3.Vector) bool {
	return pt.Z > 0 && utils.IsFinite(pt.X) && utils.IsFinite(pt.Y) && utils.IsFinite(pt.Z)
}

// NewCellModel fits a plane to a cell block of cellWidth columns, in row-major order, and
// runs the planarity test. Cells with too few valid points or with depth jumps are
// non-planar but still hold whatever fit their points allow. An error is only returned when
// the block is malformed or the fit itself fails.
func NewCellModel(block []r3.Vector, cellWidth int, cfg *Config) (*CellModel, error) {
	if len(block) == 0 {
		return nil, errors.Wrap(ErrFitting, "cell has no points")
	}
	if cellWidth <= 0 || len(block)%cellWidth != 0 {
		return nil, errors.Wrapf(ErrFitting, "cell of %d points is not a multiple of its width %d", len(block), cellWidth)
	}

	c := &CellModel{}
	for _, pt := range block {
		if validPoint(pt) {
			c.stats.add(pt)
		}
	}

	minValid := utils.MaxInt(len(block)/2, minPlanePoints)
	if c.stats.n < minPlanePoints {
		return c, nil
	}
	if err := c.fit(); err != nil {
		return nil, err
	}
	if c.stats.n < minValid {
		return c, nil
	}

	cellHeight := len(block) / cellWidth
	// middle row, left to right
	if countDepthJumps(block, cellWidth*(cellHeight/2), 1, cellWidth, cfg.DepthDiscontinuityThreshold) >
		cfg.MaxNumberDepthDiscontinuity {
		return c, nil
	}
	// middle column, top to bottom
	if countDepthJumps(block, cellWidth/2, cellWidth, cellHeight, cfg.DepthDiscontinuityThreshold) >
		cfg.MaxNumberDepthDiscontinuity {
		return c, nil
	}

	maxMSE := utils.Square(cfg.DepthSigmaCoeff*utils.Square(c.mean.Z) + cfg.DepthSigmaMargin)
	c.planar = c.mse <= maxMSE
	return c, nil
}

// countDepthJumps walks count samples of the block starting at start and counts the valid
// depths that differ from the last accepted depth by threshold or more.
func countDepthJumps(block []r3.Vector, start, step, count int, threshold float64) int {
	if count < 2 {
		return 0
	}
	depth := func(k int) float64 {
		pt := block[start+k*step]
		if !validPoint(pt) {
			return 0
		}
		return pt.Z
	}
	// the larger of the first two samples tolerates a missing pixel on the border
	zLast := math.Max(depth(0), depth(1))
	jumps := 0
	for k := 1; k < count; k++ {
		z := depth(k)
		if z <= 0 {
			continue
		}
		if zLast <= 0 || math.Abs(z-zLast) < threshold {
			zLast = z
		} else {
			jumps++
		}
	}
	return jumps
}

// fit computes mean, normal, offset, MSE and score from the accumulated sums. The normal is
// the eigenvector of the covariance matrix with the smallest eigenvalue λ0, MSE is λ0/n and
// the score is λ1/λ0.
func (c *CellModel) fit() error {
	s := &c.stats
	if s.n < minPlanePoints {
		return errors.Wrapf(ErrFitting, "need at least %d points to fit a plane, have %d", minPlanePoints, s.n)
	}
	if !s.finite() {
		return errors.Wrap(ErrFitting, "point sums are not finite")
	}
	n := float64(s.n)
	c.mean = r3.Vector{X: s.sx / n, Y: s.sy / n, Z: s.sz / n}

	cxy := s.sxy - s.sx*s.sy/n
	cxz := s.sxz - s.sx*s.sz/n
	cyz := s.syz - s.sy*s.sz/n
	cov := mat.NewSymDense(3, []float64{
		s.sxx - s.sx*s.sx/n, cxy, cxz,
		cxy, s.syy - s.sy*s.sy/n, cyz,
		cxz, cyz, s.szz - s.sz*s.sz/n,
	})
	var eigen mat.EigenSym
	if ok := eigen.Factorize(cov, true); !ok {
		return errors.Wrap(ErrFitting, "eigen decomposition of the covariance did not converge")
	}
	// ascending order
	values := eigen.Values(nil)
	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	normal := r3.Vector{X: vectors.At(0, 0), Y: vectors.At(1, 0), Z: vectors.At(2, 0)}.Normalize()
	offset := -normal.Dot(c.mean)
	if offset > 0 {
		normal = normal.Mul(-1)
		offset = -offset
	}
	c.normal = normal
	c.offset = offset

	lambda0 := math.Max(values[0], 0)
	c.mse = lambda0 / n
	if lambda0 > 0 {
		c.score = values[1] / lambda0
	} else {
		c.score = math.Inf(1)
	}
	return nil
}

// Merge accumulates the statistics of another model. The fitted plane is only updated by
// CalculateStats.
func (c *CellModel) Merge(other *CellModel) {
	c.stats.merge(other.stats)
}

// CalculateStats refits the plane to the accumulated statistics.
func (c *CellModel) CalculateStats() error {
	return c.fit()
}

// clone returns a copy that can be merged into without touching c.
func (c *CellModel) clone() *CellModel {
	cp := *c
	return &cp
}

// IsPlanar returns whether the cell passed the planarity test when it was fit.
func (c *CellModel) IsPlanar() bool { return c.planar }

// Normal returns the unit normal of the plane.
func (c *CellModel) Normal() r3.Vector { return c.normal }

// Offset returns d of the plane equation n·x + d = 0.
func (c *CellModel) Offset() float64 { return c.offset }

// Mean returns the centroid of the points.
func (c *CellModel) Mean() r3.Vector { return c.mean }

// MSE returns the mean squared distance of the points to the plane.
func (c *CellModel) MSE() float64 { return c.mse }

// Score returns the planarity score, the ratio of the two smallest covariance eigenvalues.
func (c *CellModel) Score() float64 { return c.score }

// NrPoints returns the number of valid points the plane was fit to.
func (c *CellModel) NrPoints() int { return c.stats.n }
