// Package pointcloud defines the organized point cloud consumed by the plane segmenter and
// the text formats it is read from and written to.
//
// An organized cloud keeps the raster layout of the depth frame it came from: point
// (u, v) lives at index v*Width+u. Invalid pixels are stored as the zero vector.
package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Organized is a point cloud laid out as an image of Width x Height points in row-major order.
type Organized struct {
	Width  int
	Height int
	Points []r3.Vector
}

// NewOrganized returns an organized cloud wrapping the given points. The number of points
// must be exactly width*height.
func NewOrganized(width, height int, points []r3.Vector) (*Organized, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid organized cloud size (%d, %d)", width, height)
	}
	if len(points) != width*height {
		return nil, errors.Errorf("organized cloud of size (%d, %d) needs %d points, got %d",
			width, height, width*height, len(points))
	}
	return &Organized{Width: width, Height: height, Points: points}, nil
}

// NewEmptyOrganized returns an organized cloud of the given size with every point at the origin.
func NewEmptyOrganized(width, height int) *Organized {
	return &Organized{Width: width, Height: height, Points: make([]r3.Vector, width*height)}
}

// Size returns the number of points, valid or not.
func (o *Organized) Size() int {
	return len(o.Points)
}

// At returns the point at pixel (u, v).
func (o *Organized) At(u, v int) r3.Vector {
	return o.Points[v*o.Width+u]
}

// Set sets the point at pixel (u, v).
func (o *Organized) Set(u, v int, pt r3.Vector) {
	o.Points[v*o.Width+u] = pt
}

// GridSize returns the number of whole patchSize x patchSize cells that fit horizontally
// and vertically. Remainder pixels on the right and bottom borders are not part of any cell.
func GridSize(width, height, patchSize int) (int, int) {
	if patchSize <= 0 {
		return 0, 0
	}
	return width / patchSize, height / patchSize
}

// CellBlocks reorders the cloud so that every patchSize x patchSize cell occupies a
// contiguous block of patchSize² points. Cells follow raster order over the cell grid and
// points inside a block follow raster order over the cell's pixels. Pixels in the right and
// bottom remainder strips are dropped.
func (o *Organized) CellBlocks(patchSize int) ([]r3.Vector, error) {
	cols, rows := GridSize(o.Width, o.Height, patchSize)
	if cols == 0 || rows == 0 {
		return nil, errors.Errorf("patch size %d does not fit in a cloud of size (%d, %d)", patchSize, o.Width, o.Height)
	}
	blocks := make([]r3.Vector, 0, cols*rows*patchSize*patchSize)
	for cellRow := 0; cellRow < rows; cellRow++ {
		for cellCol := 0; cellCol < cols; cellCol++ {
			for v := cellRow * patchSize; v < (cellRow+1)*patchSize; v++ {
				rowStart := v*o.Width + cellCol*patchSize
				blocks = append(blocks, o.Points[rowStart:rowStart+patchSize]...)
			}
		}
	}
	return blocks, nil
}
