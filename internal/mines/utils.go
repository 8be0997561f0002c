package mines

import "github.com/sirupsen/logrus"

var Log = logrus.New()

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// neighbours appends the in-bounds indices within Chebyshev distance 1 of
// (r, c), excluding (r, c) itself, to dst.
func (p Params) neighbours(dst []int, r, c int) []int {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if (dr != 0 || dc != 0) && p.InBounds(r+dr, c+dc) {
				dst = append(dst, p.index(r+dr, c+dc))
			}
		}
	}
	return dst
}

type frontier struct {
	stack []int
}

func (f *frontier) push(i ...int) {
	f.stack = append(f.stack, i...)
}

func (f *frontier) pop() (int, bool) {
	if len(f.stack) == 0 {
		return 0, false
	}
	i := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return i, true
}
