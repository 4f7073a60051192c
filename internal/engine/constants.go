package engine

import "github.com/hailam/chessplay/internal/board"

// Search bounds (spec §4.G, §9). Infinity must exceed any real evaluation
// plus the deepest possible mate score; MateScore is the score awarded for
// delivering mate on the current ply, reduced by one per ply of distance.
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// abortScore is returned up the stack when a search is interrupted mid-node.
// Every caller checks the stop flag immediately after a recursive call and
// discards the result, so the exact value here is never observed.
const abortScore = 0

// PVTable holds the triangular principal-variation array built during the
// search: pv.moves[ply] is the best line found so far starting at ply, and
// pv.length[ply] is how much of it is populated.
type PVTable struct {
	moves  [MaxPly][MaxPly]board.Move
	length [MaxPly]int
}
