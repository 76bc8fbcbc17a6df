package cape

import (
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
)

// PlaneSegment is a plane grown from a seed cell and accepted by the segmenter.
type PlaneSegment struct {
	// Normal is the unit normal, pointing away from the sensor.
	Normal r3.Vector
	// Offset is d in n·x + d = 0.
	Offset float64
	Mean   r3.Vector
	MSE    float64
	Score  float64
	// NrPoints is the number of valid points the plane was fit to.
	NrPoints int
	// Cells are the ids of the grid cells merged into the plane, ascending.
	Cells []int
}

func newPlaneSegment(model *CellModel, cells []int) *PlaneSegment {
	return &PlaneSegment{
		Normal:   model.Normal(),
		Offset:   model.Offset(),
		Mean:     model.Mean(),
		MSE:      model.MSE(),
		Score:    model.Score(),
		NrPoints: model.NrPoints(),
		Cells:    cells,
	}
}

// Equation returns the coefficients of the plane equation as a 4-array.
func (ps *PlaneSegment) Equation() [4]float64 {
	return [4]float64{ps.Normal.X, ps.Normal.Y, ps.Normal.Z, ps.Offset}
}

// Distance returns the signed distance of a point to the plane.
func (ps *PlaneSegment) Distance(pt r3.Vector) float64 {
	return ps.Normal.Dot(pt) + ps.Offset
}

// LabelMap assigns every grid cell the 1-based index of the plane it belongs to, 0 for none.
type LabelMap struct {
	rows, cols int
	labels     []int
	maxLabel   int
}

// NewLabelMap returns an all zero label map.
func NewLabelMap(rows, cols int) *LabelMap {
	return &LabelMap{rows: rows, cols: cols, labels: make([]int, rows*cols)}
}

// Rows returns the number of vertical cells.
func (lm *LabelMap) Rows() int { return lm.rows }

// Cols returns the number of horizontal cells.
func (lm *LabelMap) Cols() int { return lm.cols }

// At returns the label of the cell at (row, col).
func (lm *LabelMap) At(row, col int) int {
	return lm.labels[row*lm.cols+col]
}

// Label returns the label of a cell id.
func (lm *LabelMap) Label(cellID int) int {
	return lm.labels[cellID]
}

// MaxLabel returns the highest label written so far.
func (lm *LabelMap) MaxLabel() int { return lm.maxLabel }

func (lm *LabelMap) set(cellID, label int) {
	lm.labels[cellID] = label
	if label > lm.maxLabel {
		lm.maxLabel = label
	}
}

// ToSlices returns the labels as rows of columns.
func (lm *LabelMap) ToSlices() [][]int {
	out := make([][]int, lm.rows)
	for r := range out {
		out[r] = append([]int(nil), lm.labels[r*lm.cols:(r+1)*lm.cols]...)
	}
	return out
}

// Result is the output of one segmentation.
type Result struct {
	// Planes are in acceptance order; Planes[k-1] carries label k.
	Planes []*PlaneSegment
	Labels *LabelMap
	// NrPlanarCells is the number of cells that passed the planarity test.
	NrPlanarCells int
}

// Summary describes the accepted planes of a result.
type Summary struct {
	NrPlanes      int
	NrPlanarCells int
	NrLabeled     int
	MeanMSE       float64
	MedianMSE     float64
	MaxMSE        float64
}

// Summary computes aggregate statistics over the accepted planes.
func (r *Result) Summary() (Summary, error) {
	s := Summary{NrPlanes: len(r.Planes), NrPlanarCells: r.NrPlanarCells}
	if len(r.Planes) == 0 {
		return s, nil
	}
	mses := make(stats.Float64Data, 0, len(r.Planes))
	for _, p := range r.Planes {
		mses = append(mses, p.MSE)
		s.NrLabeled += len(p.Cells)
	}
	var err error
	if s.MeanMSE, err = mses.Mean(); err != nil {
		return s, err
	}
	if s.MedianMSE, err = mses.Median(); err != nil {
		return s, err
	}
	if s.MaxMSE, err = mses.Max(); err != nil {
		return s, err
	}
	return s, nil
}
