package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// pixelCloud stores the pixel coordinates of each point in X and Y so reorderings are easy to read.
func pixelCloud(width, height int) *Organized {
	cloud := NewEmptyOrganized(width, height)
	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			cloud.Set(u, v, r3.Vector{X: float64(u), Y: float64(v), Z: 1})
		}
	}
	return cloud
}

func TestNewOrganized(t *testing.T) {
	_, err := NewOrganized(0, 2, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewOrganized(2, 2, make([]r3.Vector, 3))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "needs 4 points, got 3")

	cloud, err := NewOrganized(2, 2, make([]r3.Vector, 4))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 4)
	cloud.Set(1, 1, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, cloud.At(1, 1), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, cloud.Points[3], test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestGridSize(t *testing.T) {
	cols, rows := GridSize(640, 480, 12)
	test.That(t, cols, test.ShouldEqual, 53)
	test.That(t, rows, test.ShouldEqual, 40)
	cols, rows = GridSize(10, 10, 0)
	test.That(t, cols, test.ShouldEqual, 0)
	test.That(t, rows, test.ShouldEqual, 0)
}

func TestCellBlocks(t *testing.T) {
	cloud := pixelCloud(5, 4)
	blocks, err := cloud.CellBlocks(2)
	test.That(t, err, test.ShouldBeNil)
	// 2x2 cells of 4 points, column 4 is dropped
	test.That(t, len(blocks), test.ShouldEqual, 16)

	expected := []r3.Vector{
		// cell 0: pixels (0..1, 0..1)
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1},
		// cell 1: pixels (2..3, 0..1)
		{X: 2, Y: 0, Z: 1}, {X: 3, Y: 0, Z: 1}, {X: 2, Y: 1, Z: 1}, {X: 3, Y: 1, Z: 1},
		// cell 2: pixels (0..1, 2..3)
		{X: 0, Y: 2, Z: 1}, {X: 1, Y: 2, Z: 1}, {X: 0, Y: 3, Z: 1}, {X: 1, Y: 3, Z: 1},
		// cell 3: pixels (2..3, 2..3)
		{X: 2, Y: 2, Z: 1}, {X: 3, Y: 2, Z: 1}, {X: 2, Y: 3, Z: 1}, {X: 3, Y: 3, Z: 1},
	}
	test.That(t, blocks, test.ShouldResemble, expected)

	_, err = cloud.CellBlocks(6)
	test.That(t, err, test.ShouldNotBeNil)
}
