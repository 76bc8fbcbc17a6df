package cape

import "go.viam.com/cape/pointcloud"

// Grid is the regular partition of an image into square cells. Cell ids are linear indices
// in raster order: id = row*Cols + col.
type Grid struct {
	cols      int
	rows      int
	patchSize int
}

// NewGrid returns the grid of whole patchSize cells fitting in a width x height image.
// Remainder pixels on the right and bottom borders are dropped.
func NewGrid(width, height, patchSize int) (Grid, error) {
	if patchSize <= 0 {
		return Grid{}, newConfigurationError("patchSize must be greater than 0, got %d", patchSize)
	}
	cols, rows := pointcloud.GridSize(width, height, patchSize)
	if cols <= 0 || rows <= 0 {
		return Grid{}, newConfigurationError("image of size (%d, %d) holds no %dx%d cell", width, height, patchSize, patchSize)
	}
	return Grid{cols: cols, rows: rows, patchSize: patchSize}, nil
}

// Cols returns the number of horizontal cells.
func (g Grid) Cols() int { return g.cols }

// Rows returns the number of vertical cells.
func (g Grid) Rows() int { return g.rows }

// NrCells returns the total number of cells.
func (g Grid) NrCells() int { return g.cols * g.rows }

// PatchSize returns the side length of a cell in pixels.
func (g Grid) PatchSize() int { return g.patchSize }

// PointsPerCell returns the number of points in one cell block.
func (g Grid) PointsPerCell() int { return g.patchSize * g.patchSize }

// CellID returns the id of the cell at (col, row).
func (g Grid) CellID(col, row int) int {
	return row*g.cols + col
}

// Coords returns the (col, row) position of a cell id.
func (g Grid) Coords(id int) (int, int) {
	return id % g.cols, id / g.cols
}

// Contains reports whether (col, row) is inside the grid.
func (g Grid) Contains(col, row int) bool {
	return col >= 0 && col < g.cols && row >= 0 && row < g.rows
}

// Neighbors appends the 4-connected neighbours of a cell to dst in the order left, right,
// up, down, skipping those outside the grid.
func (g Grid) Neighbors(id int, dst []int) []int {
	col, row := g.Coords(id)
	if col > 0 {
		dst = append(dst, id-1)
	}
	if col < g.cols-1 {
		dst = append(dst, id+1)
	}
	if row > 0 {
		dst = append(dst, id-g.cols)
	}
	if row < g.rows-1 {
		dst = append(dst, id+g.cols)
	}
	return dst
}
