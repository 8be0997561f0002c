package mines

import (
	"math/rand/v2"
	"strconv"

	"github.com/sirupsen/logrus"
)

type Status int8

const (
	NotStarted Status = iota
	InProgress
	Won
	Lost
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

func (s Status) Over() bool {
	return s == Won || s == Lost
}

type RevealKind int8

const (
	RevealNoOp RevealKind = iota
	RevealOpened
	RevealHitMine
	RevealWon
)

func (k RevealKind) String() string {
	switch k {
	case RevealNoOp:
		return "noop"
	case RevealOpened:
		return "revealed"
	case RevealHitMine:
		return "hit_mine"
	case RevealWon:
		return "won"
	default:
		return "RevealKind(" + strconv.Itoa(int(k)) + ")"
	}
}

type RevealedCell struct {
	Coord
	Adjacent int `json:"adjacent"`
}

// RevealResult describes what a single [Board.Reveal] changed. Cells lists
// the safe cells opened by the call, in the order they were opened; Mines
// lists the mines uncovered when the game is lost.
type RevealResult struct {
	Kind  RevealKind
	Cells []RevealedCell
	Mines []Coord
}

type FlagResult int8

const (
	FlagNoOp FlagResult = iota
	FlagPlaced
	FlagRemoved
)

func (f FlagResult) String() string {
	switch f {
	case FlagNoOp:
		return "noop"
	case FlagPlaced:
		return "flagged"
	case FlagRemoved:
		return "unflagged"
	default:
		return "FlagResult(" + strconv.Itoa(int(f)) + ")"
	}
}

// Board holds the whole state of one game. It is not safe for concurrent
// use; callers serialize access.
type Board struct {
	params   Params
	rnd      *rand.Rand
	cells    []Cell
	status   Status
	placed   bool
	revealed int /* safe cells revealed */
	flags    int
	exploded int
}

// New returns a board in the [NotStarted] state. Mines are placed on the
// first reveal. A nil rnd is replaced with [NewRand].
func New(params Params, rnd *rand.Rand) (*Board, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = NewRand()
	}
	b := &Board{params: params, rnd: rnd}
	b.reset()
	return b, nil
}

func (b *Board) reset() {
	b.cells = make([]Cell, b.params.Cells())
	b.status = NotStarted
	b.placed = false
	b.revealed = 0
	b.flags = 0
	b.exploded = -1
}

// Restart clears the board back to its construction-time state. The next
// reveal places a fresh set of mines.
func (b *Board) Restart() {
	b.reset()
	Log.WithField("board", b.params.String()).Debug("board restarted")
}

func (b *Board) checkBounds(r, c int) error {
	if !b.params.InBounds(r, c) {
		return &BoundsError{r, c, b.params.Rows, b.params.Cols}
	}
	return nil
}

func (b *Board) Reveal(r, c int) (RevealResult, error) {
	if err := b.checkBounds(r, c); err != nil {
		return RevealResult{}, err
	}
	i := b.params.index(r, c)
	if b.status.Over() || b.cells[i].State != Hidden {
		return RevealResult{Kind: RevealNoOp}, nil
	}

	if !b.placed {
		if err := b.placeMines(Coord{r, c}); err != nil {
			return RevealResult{}, err
		}
		b.status = InProgress
	}

	if b.cells[i].Mine {
		mines := b.explode(i)
		Log.WithFields(logrus.Fields{
			"board": b.params.String(),
			"cell":  Coord{r, c}.String(),
		}).Debug("game lost")
		return RevealResult{Kind: RevealHitMine, Mines: mines}, nil
	}

	res := RevealResult{Kind: RevealOpened, Cells: b.flood(i)}
	if b.revealed == b.params.Cells()-b.params.MineCount {
		b.status = Won
		res.Kind = RevealWon
		Log.WithField("board", b.params.String()).Debug("game won")
	}
	return res, nil
}

// flood opens start and spreads through zero-adjacency cells using an
// explicit stack. Flagged and already revealed cells stop the spread.
func (b *Board) flood(start int) []RevealedCell {
	var (
		f      frontier
		opened []RevealedCell
		nb     []int
	)
	f.push(start)
	for {
		i, ok := f.pop()
		if !ok {
			break
		}
		cell := &b.cells[i]
		if cell.State != Hidden || cell.Mine {
			continue
		}
		cell.State = Revealed
		b.revealed++

		pos := b.params.coord(i)
		opened = append(opened, RevealedCell{pos, cell.Adjacent})
		if cell.Adjacent == 0 {
			nb = b.params.neighbours(nb[:0], pos.Row, pos.Col)
			f.push(nb...)
		}
	}
	return opened
}

// explode ends the game on the mine at hit and uncovers every mine the
// player has not flagged.
func (b *Board) explode(hit int) []Coord {
	b.status = Lost
	b.exploded = hit
	var shown []Coord
	for i := range b.cells {
		if b.cells[i].Mine && b.cells[i].State == Hidden {
			b.cells[i].State = Revealed
			shown = append(shown, b.params.coord(i))
		}
	}
	return shown
}

func (b *Board) ToggleFlag(r, c int) (FlagResult, error) {
	if err := b.checkBounds(r, c); err != nil {
		return FlagNoOp, err
	}
	if b.status.Over() {
		return FlagNoOp, nil
	}
	cell := &b.cells[b.params.index(r, c)]
	switch cell.State {
	case Hidden:
		cell.State = Flagged
		b.flags++
		return FlagPlaced, nil
	case Flagged:
		cell.State = Hidden
		b.flags--
		return FlagRemoved, nil
	}
	return FlagNoOp, nil
}

func (b *Board) Params() Params {
	return b.params
}

func (b *Board) Status() Status {
	return b.status
}

func (b *Board) Flags() int {
	return b.flags
}

// RemainingMines is the mine count minus the number of flags. It goes
// negative when the player places more flags than there are mines.
func (b *Board) RemainingMines() int {
	return b.params.MineCount - b.flags
}

func (b *Board) CellView(r, c int) (CellView, error) {
	if err := b.checkBounds(r, c); err != nil {
		return CellView{}, err
	}
	return b.view(b.params.index(r, c)), nil
}

func (b *Board) view(i int) CellView {
	cell := b.cells[i]
	v := CellView{Coord: b.params.coord(i), State: cell.State}
	if cell.State == Revealed {
		v.Mine = cell.Mine
		v.Exploded = i == b.exploded
		if !cell.Mine {
			v.Adjacent = cell.Adjacent
		}
	}
	return v
}

type Snapshot struct {
	Params         Params
	Status         Status
	RemainingMines int
	Cells          Grid
}

func (b *Board) Snapshot() Snapshot {
	cells := make(Grid, len(b.cells))
	for i := range b.cells {
		cells[i] = b.view(i)
	}
	return Snapshot{
		Params:         b.params,
		Status:         b.status,
		RemainingMines: b.RemainingMines(),
		Cells:          cells,
	}
}

func (b *Board) String() string {
	return b.Snapshot().Cells.ToString(b.params.Cols)
}
