package engine

import (
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// Limits bounds a single search: fixed depth/nodes/time, the game clocks,
// a mate-in-N target, pondering, or an explicit root-move restriction.
type Limits struct {
	Infinite bool
	Ponder   bool

	Mate  int    // stop once a mate in at most this many half-moves is proven (0 = off)
	Depth int    // maximum iteration depth (0 = no limit)
	Nodes uint64 // node budget (0 = no limit)

	// Moves restricts the root to these candidates ("go searchmoves").
	Moves []board.Move

	// Clock fields. TimeControl is set when any of them was given.
	WhiteTime, BlackTime time.Duration
	WhiteInc, BlackInc   time.Duration
	MovesToGo            int
	MoveTime             time.Duration
	TimeControl          bool
}

// TimeFor returns the remaining clock time for a side.
func (l *Limits) TimeFor(c board.Color) time.Duration {
	if c == board.White {
		return l.WhiteTime
	}
	return l.BlackTime
}

// IncFor returns the per-move increment for a side.
func (l *Limits) IncFor(c board.Color) time.Duration {
	if c == board.White {
		return l.WhiteInc
	}
	return l.BlackInc
}
