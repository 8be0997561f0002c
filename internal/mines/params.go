package mines

import (
	"fmt"
	"math"
	"strings"
)

// MaxCells bounds the area of any board the engine will allocate.
const MaxCells = 1 << 24

type Params struct {
	Rows, Cols, MineCount int
}

func (p Params) Unpack() (rows int, cols int, mc int) {
	return p.Rows, p.Cols, p.MineCount
}

func (p Params) Cells() int {
	return p.Rows * p.Cols
}

// String renders p as "rows:cols:mines", the form accepted by [ParseParams].
func (p Params) String() string {
	return fmt.Sprintf("%d:%d:%d", p.Rows, p.Cols, p.MineCount)
}

func ParseParams(s string) (Params, error) {
	var p Params
	ss := strings.ReplaceAll(s, ":", " ")
	n, err := fmt.Sscanf(ss, "%d %d %d", &p.Rows, &p.Cols, &p.MineCount)
	if n != 3 || err != nil {
		return Params{}, fmt.Errorf(
			`invalid board params %q (n = %d, err = %v): %w`,
			s, n, err, ErrInvalidConfiguration,
		)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate rejects boards that could never be played: non-positive sides,
// an area above [MaxCells], a negative mine count, or more mines than fit
// outside the smallest possible safe zone (a corner click).
func (p Params) Validate() error {
	switch {
	case p.Rows <= 0 || p.Cols <= 0:
		return &ConfigError{p, "board sides must be positive"}
	case p.Cols > math.MaxInt/p.Rows || p.Cells() > MaxCells:
		return &ConfigError{p, fmt.Sprintf("board area exceeds %d cells", MaxCells)}
	case p.MineCount < 0:
		return &ConfigError{p, "mine count must not be negative"}
	case p.MineCount >= p.Cells():
		return &ConfigError{p, "mine count must be less than the number of cells"}
	case p.MineCount > p.Cells()-min(p.Rows, 2)*min(p.Cols, 2):
		return &ConfigError{p, "not enough room for mines outside the first click"}
	}
	return nil
}

func (p Params) InBounds(r, c int) bool {
	return 0 <= r && r < p.Rows && 0 <= c && c < p.Cols
}

func (p Params) index(r, c int) int {
	return r*p.Cols + c
}

func (p Params) coord(i int) Coord {
	return Coord{Row: i / p.Cols, Col: i % p.Cols}
}
