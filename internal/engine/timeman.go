package engine

import (
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// timerSlice is how long the watchdog sleeps between deadline checks.
const timerSlice = 5 * time.Millisecond

// TimeManager computes the time budget for one search and answers "is it
// spent" for the watchdog goroutine. It does not stop anything itself; the
// driver owns the stop flag.
type TimeManager struct {
	timeLimit time.Duration
	extraTime time.Duration
	startTime time.Time
	started   bool
}

// NewTimeManager allocates time for a search under the given limits.
// phase is the position's game-phase counter (MaxPhase at the start): more
// moves are expected to remain in the opening than in the endgame, so the
// per-move slice shrinks as the phase falls.
func NewTimeManager(limits *Limits, us board.Color, phase int) *TimeManager {
	tm := &TimeManager{}

	if limits.MoveTime > 0 {
		tm.timeLimit = limits.MoveTime - 20*time.Millisecond
		if tm.timeLimit <= 0 || tm.timeLimit > limits.MoveTime {
			tm.timeLimit = limits.MoveTime
		}
		return tm
	}

	movesLeft := limits.MovesToGo
	if movesLeft <= 0 {
		if phase > board.MaxPhase {
			phase = board.MaxPhase
		}
		movesLeft = 15 + (25*phase+board.MaxPhase/2)/board.MaxPhase
	}

	timeLeft := limits.TimeFor(us) + time.Duration(movesLeft)*limits.IncFor(us)
	base := timeLeft / time.Duration(movesLeft)

	if base < 100*time.Millisecond {
		tm.timeLimit = base * 8 / 10
	} else {
		tm.timeLimit = base * 9 / 10
	}
	return tm
}

// Start begins the clock. For a pondering search this is deferred until
// ponderhit arrives; until then Expired never reports true.
func (tm *TimeManager) Start() {
	tm.startTime = time.Now()
	tm.started = true
}

// Started reports whether the clock is running.
func (tm *TimeManager) Started() bool {
	return tm.started
}

// AddExtraTime extends the budget to factor times the base limit; used on
// the first move after leaving the opening book, when the transposition
// table and history are cold.
func (tm *TimeManager) AddExtraTime(factor float64) {
	tm.extraTime += time.Duration(float64(tm.timeLimit) * (factor - 1.0))
}

// TimeLimit returns the base allocation for this move.
func (tm *TimeManager) TimeLimit() time.Duration {
	return tm.timeLimit
}

// HardLimit returns the total budget including extra time.
func (tm *TimeManager) HardLimit() time.Duration {
	return tm.timeLimit + tm.extraTime
}

// Elapsed returns the time spent since Start.
func (tm *TimeManager) Elapsed() time.Duration {
	if !tm.started {
		return 0
	}
	return time.Since(tm.startTime)
}

// Expired reports whether the budget is spent.
func (tm *TimeManager) Expired() bool {
	return tm.started && tm.Elapsed() >= tm.HardLimit()
}
