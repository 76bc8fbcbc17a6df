package cape

import (
	"math"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNormalToSpherical(t *testing.T) {
	c := NormalToSpherical(r3.Vector{Z: -1})
	test.That(t, c.Polar, test.ShouldAlmostEqual, 0)
	test.That(t, c.Azimuth, test.ShouldEqual, 0)

	c = NormalToSpherical(r3.Vector{Z: 1})
	test.That(t, c.Polar, test.ShouldAlmostEqual, math.Pi)
	test.That(t, c.Azimuth, test.ShouldEqual, 0)

	c = NormalToSpherical(r3.Vector{X: 1})
	test.That(t, c.Polar, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, c.Azimuth, test.ShouldAlmostEqual, math.Pi/2)

	c = NormalToSpherical(r3.Vector{Y: -1})
	test.That(t, c.Azimuth, test.ShouldAlmostEqual, math.Pi)

	// rounding past ±1 does not produce NaN
	c = NormalToSpherical(r3.Vector{Z: -1 - 1e-12})
	test.That(t, c.Polar, test.ShouldEqual, 0)
}

func TestNormalHistogram(t *testing.T) {
	side := SphericalCoords{Polar: math.Pi / 2}
	nearPole := SphericalCoords{Polar: 0.1, Azimuth: 2}
	coords := []SphericalCoords{side, side, side, nearPole, nearPole, side}
	members := bitset.New(6)
	for _, id := range []uint{0, 1, 2, 3, 4} {
		members.Set(id)
	}

	h := NewNormalHistogram(4, coords, members)
	test.That(t, h.Len(), test.ShouldEqual, 5)
	test.That(t, h.binOf(side), test.ShouldEqual, 5)
	test.That(t, h.binOf(nearPole), test.ShouldEqual, 0)
	test.That(t, h.MostPopulatedBinMembers(), test.ShouldResemble, []int{0, 1, 2})

	h.Remove(1)
	h.Remove(1)
	h.Remove(5)
	h.Remove(99)
	h.Remove(-1)
	test.That(t, h.Len(), test.ShouldEqual, 4)
	// two bins of two: the lower bin wins
	test.That(t, h.MostPopulatedBinMembers(), test.ShouldResemble, []int{3, 4})

	h.Remove(3)
	h.Remove(4)
	test.That(t, h.MostPopulatedBinMembers(), test.ShouldResemble, []int{0, 2})
	h.Remove(0)
	h.Remove(2)
	test.That(t, h.Len(), test.ShouldEqual, 0)
	test.That(t, h.MostPopulatedBinMembers(), test.ShouldBeNil)
}

func TestNormalHistogramPoles(t *testing.T) {
	members := bitset.New(3)
	members.Set(0).Set(1).Set(2)
	// normals around +z land in the last polar bins regardless of azimuth
	coords := []SphericalCoords{
		{Polar: math.Pi, Azimuth: 0},
		{Polar: math.Pi - 1e-9, Azimuth: 3},
		{Polar: math.Pi - 1e-9, Azimuth: -3},
	}
	h := NewNormalHistogram(20, coords, members)
	test.That(t, h.binOf(coords[0]), test.ShouldEqual, 19)
	test.That(t, h.binOf(coords[1]), test.ShouldEqual, 18)
	test.That(t, h.binOf(coords[2]), test.ShouldEqual, 18)
	test.That(t, h.MostPopulatedBinMembers(), test.ShouldResemble, []int{1, 2})

	// azimuth is binned away from the poles
	a := h.binOf(SphericalCoords{Polar: math.Pi / 2, Azimuth: -math.Pi})
	b := h.binOf(SphericalCoords{Polar: math.Pi / 2, Azimuth: math.Pi})
	test.That(t, a, test.ShouldEqual, 9)
	test.That(t, b, test.ShouldEqual, 19*20+9)
}
