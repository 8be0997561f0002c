package mines

import (
	"fmt"
	"hash/maphash"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

// NewRand returns a generator seeded from the runtime's random hash seed.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(
		new(maphash.Hash).Sum64(), new(maphash.Hash).Sum64(),
	))
}

// placeMines lays out exactly MineCount mines, none of which is at safe or
// within one square of it, then fills in the adjacency counts. Nothing is
// modified when the mines do not fit.
func (b *Board) placeMines(safe Coord) error {
	rows, cols, mineCount := b.params.Unpack()

	/*
	 * Write down the list of possible mine locations.
	 */
	candidates := make([]int, 0, rows*cols)
	for r := range rows {
		for c := range cols {
			if absDiff(safe.Row, r) > 1 || absDiff(safe.Col, c) > 1 {
				candidates = append(candidates, b.params.index(r, c))
			}
		}
	}

	if mineCount > len(candidates) {
		return &ConfigError{b.params, fmt.Sprintf(
			"%d mines do not fit in the %d cells away from %s",
			mineCount, len(candidates), safe,
		)}
	}

	/*
	 * Now pick n off the list at random.
	 */
	k := len(candidates)
	for range mineCount {
		i := b.rnd.IntN(k)
		b.cells[candidates[i]].Mine = true
		k--
		candidates[i] = candidates[k]
	}

	b.computeAdjacency()
	b.placed = true

	Log.WithFields(logrus.Fields{
		"board": b.params.String(),
		"safe":  safe.String(),
	}).Debug("mines placed")

	return nil
}

func (b *Board) computeAdjacency() {
	var nb []int
	for i := range b.cells {
		if b.cells[i].Mine {
			b.cells[i].Adjacent = MineSentinel
			continue
		}
		pos := b.params.coord(i)
		n := 0
		nb = b.params.neighbours(nb[:0], pos.Row, pos.Col)
		for _, j := range nb {
			if b.cells[j].Mine {
				n++
			}
		}
		b.cells[i].Adjacent = n
	}
}
