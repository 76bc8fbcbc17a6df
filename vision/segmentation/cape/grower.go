package cape

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// growStep is a pending visit of cell, reached from the already activated cell prev.
type growStep struct {
	cell int
	prev int
}

// canMerge tests cell against the plane of the cell that reached it: the normals must be
// within the merge angle and the cell's mean within the cell's distance tolerance of the
// previous plane.
func (f *frame) canMerge(prev, cell int) bool {
	p, c := f.cells[prev], f.cells[cell]
	if p.Normal().Dot(c.Normal()) < f.cfg.MinCosAngleForMerge {
		return false
	}
	dist := p.Normal().Dot(c.Mean()) + p.Offset()
	return dist*dist <= f.distTols[cell]
}

// growSeed activates the 4-connected region of unassigned cells reachable from seed where
// every cell passes canMerge against the cell it was reached from. An unassigned seed is
// always activated. Each link is checked locally, so a region may drift away from the seed
// plane. The walk uses an explicit stack visiting neighbours in the order left, right, up,
// down.
func (f *frame) growSeed(seed int, unassigned, activation *bitset.BitSet) error {
	nrCells := f.grid.NrCells()
	stack := []growStep{{cell: seed, prev: seed}}
	var neighbors [4]int
	for len(stack) > 0 {
		step := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if step.cell < 0 || step.cell >= nrCells {
			return errors.Wrapf(ErrInvariantViolation, "region growing reached cell %d of a %d cell grid", step.cell, nrCells)
		}
		idx := uint(step.cell)
		if !unassigned.Test(idx) || activation.Test(idx) {
			continue
		}
		if step.cell != seed && !f.canMerge(step.prev, step.cell) {
			continue
		}
		activation.Set(idx)

		nbs := f.grid.Neighbors(step.cell, neighbors[:0])
		for i := len(nbs) - 1; i >= 0; i-- {
			stack = append(stack, growStep{cell: nbs[i], prev: step.cell})
		}
	}
	return nil
}
