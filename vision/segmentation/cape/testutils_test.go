package cape

import (
	"github.com/golang/geo/r3"

	"go.viam.com/cape/pointcloud"
)

// testConfig is a permissive configuration for small synthetic clouds in millimeters.
func testConfig(patchSize int) Config {
	return Config{
		PatchSize:                      patchSize,
		HistogramBinsPerCoord:          20,
		MinCosAngleForMerge:            0.93,
		MaxMergeDist:                   500,
		MinRegionGrowingCandidateSize:  1,
		MinRegionGrowingCellsActivated: 1,
		MinRegionPlanarityScore:        100,
		DepthSigmaCoeff:                1.425e-6,
		DepthSigmaMargin:               10,
		DepthDiscontinuityThreshold:    160,
		MaxNumberDepthDiscontinuity:    1,
	}
}

// depthCloud returns a width x height organized cloud with pixel (u, v) at x=u, y=v and the
// given depth. A depth of 0 leaves the pixel invalid.
func depthCloud(width, height int, depth func(u, v int) float64) *pointcloud.Organized {
	cloud := pointcloud.NewEmptyOrganized(width, height)
	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			if z := depth(u, v); z > 0 {
				cloud.Set(u, v, r3.Vector{X: float64(u), Y: float64(v), Z: z})
			}
		}
	}
	return cloud
}

// planeBlock returns a size x size cell block on the plane through origin spanned by the
// unit directions du (along columns) and dv (along rows).
func planeBlock(size int, origin, du, dv r3.Vector) []r3.Vector {
	block := make([]r3.Vector, 0, size*size)
	for v := 0; v < size; v++ {
		for u := 0; u < size; u++ {
			block = append(block, origin.Add(du.Mul(float64(u))).Add(dv.Mul(float64(v))))
		}
	}
	return block
}

// nearlyEqualVector reports whether two vectors are within tol in every coordinate.
func nearlyEqualVector(a, b r3.Vector, tol float64) bool {
	d := a.Sub(b)
	return d.X <= tol && d.X >= -tol && d.Y <= tol && d.Y >= -tol && d.Z <= tol && d.Z >= -tol
}
