package mines

import (
	"fmt"
	"strconv"
	"strings"
)

type CellState int8

const (
	Hidden CellState = iota
	Revealed
	Flagged
)

func (s CellState) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Revealed:
		return "revealed"
	case Flagged:
		return "flagged"
	default:
		return "CellState(" + strconv.Itoa(int(s)) + ")"
	}
}

// MineSentinel is the adjacency value stored in mine cells.
const MineSentinel = -1

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

type Cell struct {
	Mine     bool
	Adjacent int
	State    CellState
}

// CellView is what a player is allowed to know about a cell. Mine and
// Adjacent stay zero until the cell is revealed.
type CellView struct {
	Coord
	State    CellState
	Mine     bool
	Exploded bool
	Adjacent int
}

/*
 * Symbols used by [CellView.Symbol] and [Board.String]:
 *
 *  - "." hidden
 *  - "F" flagged
 *  - " " revealed, no adjacent mines
 *  - "1" to "8" revealed with that many adjacent mines
 *  - "*" mine shown after a loss
 *  - "X" the mine that ended the game
 */
func (v CellView) Symbol() string {
	switch {
	case v.State == Hidden:
		return "."
	case v.State == Flagged:
		return "F"
	case v.Exploded:
		return "X"
	case v.Mine:
		return "*"
	case v.Adjacent == 0:
		return " "
	default:
		return strconv.Itoa(v.Adjacent)
	}
}

type Grid []CellView

func (g Grid) ToString(cols int) string {
	var b strings.Builder
	for i, v := range g {
		b.WriteString(v.Symbol())
		if (i+1)%cols == 0 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
