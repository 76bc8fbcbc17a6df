package cape

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/golang/geo/r3"
)

// SphericalCoords are the polar and azimuth angles of a unit normal.
type SphericalCoords struct {
	Polar   float64
	Azimuth float64
}

// NormalToSpherical converts a unit normal to spherical coordinates. The polar angle is
// measured from the -z axis; the azimuth is 0 for normals along the z axis.
func NormalToSpherical(n r3.Vector) SphericalCoords {
	coords := SphericalCoords{Polar: math.Acos(math.Max(-1, math.Min(1, -n.Z)))}
	if projNorm := math.Hypot(n.X, n.Y); projNorm > 0 {
		coords.Azimuth = math.Atan2(n.X/projNorm, n.Y/projNorm)
	}
	return coords
}

const noBin = -1

// NormalHistogram bins cells by the direction of their normal. Each cell belongs to at most
// one bin and can be removed individually.
type NormalHistogram struct {
	binsPerCoord int
	counts       []int
	// cellBins maps a cell id to its bin, or noBin.
	cellBins []int
}

// NewNormalHistogram bins the coordinates of the cells set in members. coords is indexed by
// cell id; entries of cells outside members are ignored.
func NewNormalHistogram(binsPerCoord int, coords []SphericalCoords, members *bitset.BitSet) *NormalHistogram {
	h := &NormalHistogram{
		binsPerCoord: binsPerCoord,
		counts:       make([]int, binsPerCoord*binsPerCoord),
		cellBins:     make([]int, len(coords)),
	}
	for i := range h.cellBins {
		h.cellBins[i] = noBin
	}
	for i, ok := members.NextSet(0); ok && int(i) < len(coords); i, ok = members.NextSet(i + 1) {
		bin := h.binOf(coords[i])
		h.cellBins[i] = bin
		h.counts[bin]++
	}
	return h
}

// coordBin maps value in [lo, hi] to a bin in [0, binsPerCoord-1] by truncation.
func (h *NormalHistogram) coordBin(value, lo, hi float64) int {
	bin := int(float64(h.binsPerCoord-1) * (value - lo) / (hi - lo))
	if bin < 0 {
		return 0
	}
	if bin > h.binsPerCoord-1 {
		return h.binsPerCoord - 1
	}
	return bin
}

func (h *NormalHistogram) binOf(c SphericalCoords) int {
	polarBin := h.coordBin(c.Polar, 0, math.Pi)
	azimuthBin := 0
	// next to a pole the azimuth carries no information; only exactly π lands in the last
	// polar bin so the one before it touches the pole as well
	if polarBin > 0 && polarBin < h.binsPerCoord-2 {
		azimuthBin = h.coordBin(c.Azimuth, -math.Pi, math.Pi)
	}
	return azimuthBin*h.binsPerCoord + polarBin
}

// MostPopulatedBinMembers returns the ids of the cells in the fullest bin, in ascending
// order. Ties go to the lowest bin index. An empty histogram returns nil.
func (h *NormalHistogram) MostPopulatedBinMembers() []int {
	best, bestCount := noBin, 0
	for bin, count := range h.counts {
		if count > bestCount {
			best, bestCount = bin, count
		}
	}
	if best == noBin {
		return nil
	}
	members := make([]int, 0, bestCount)
	for cellID, bin := range h.cellBins {
		if bin == best {
			members = append(members, cellID)
		}
	}
	return members
}

// Remove takes a cell out of its bin. Removing a cell that is not binned does nothing.
func (h *NormalHistogram) Remove(cellID int) {
	if cellID < 0 || cellID >= len(h.cellBins) {
		return
	}
	bin := h.cellBins[cellID]
	if bin == noBin {
		return
	}
	h.counts[bin]--
	h.cellBins[cellID] = noBin
}

// Len returns the number of binned cells.
func (h *NormalHistogram) Len() int {
	total := 0
	for _, count := range h.counts {
		total += count
	}
	return total
}
