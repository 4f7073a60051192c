package engine

import (
	"testing"

	"github.com/hailam/chessplay/internal/board"
)

// TestTTRoundTrip: a stored entry probes back with every field intact.
func TestTTRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)

	key := uint64(0xDEADBEEFCAFE1234)
	move := board.NewMove(board.E2, board.E4)
	tt.Store(key, 7, move, 142, 88, TTExact, true)

	entry, found := tt.Probe(key)
	if !found {
		t.Fatal("stored entry not found")
	}
	if entry.BestMove != move {
		t.Errorf("best move = %v, want e2e4", entry.BestMove)
	}
	if entry.Score != 142 {
		t.Errorf("score = %d, want 142", entry.Score)
	}
	if entry.StaticEval != 88 {
		t.Errorf("static eval = %d, want 88", entry.StaticEval)
	}
	if entry.Depth != 7 {
		t.Errorf("depth = %d, want 7", entry.Depth)
	}
	if entry.Flag != TTExact {
		t.Errorf("flag = %v, want exact", entry.Flag)
	}
	if !entry.MateThreat {
		t.Error("mate threat flag lost")
	}
}

// TestTTKeyVerification: a colliding index with a different key must miss.
func TestTTKeyVerification(t *testing.T) {
	tt := NewTranspositionTable(1)

	key := uint64(0x1111111111111111)
	tt.Store(key, 3, board.NoMove, 10, 10, TTExact, false)

	// Same low bits (same slot), different high bits (different position).
	collider := key ^ 0xFFFF000000000000
	if _, found := tt.Probe(collider); found {
		t.Error("probe returned an entry for a different key")
	}
}

// TestTTDisabled: a zero-size table never hits and never stores.
func TestTTDisabled(t *testing.T) {
	tt := NewTranspositionTable(0)
	tt.Store(42, 5, board.NoMove, 100, 100, TTExact, false)
	if _, found := tt.Probe(42); found {
		t.Error("disabled table returned a hit")
	}
	if tt.HashFull() != 0 {
		t.Error("disabled table reports occupancy")
	}
}

// TestTTAging: stale entries stay probeable but lose replacement priority.
func TestTTAging(t *testing.T) {
	tt := NewTranspositionTable(1)

	key := uint64(0x2222222222222222)
	tt.Store(key, 9, board.NoMove, 55, 55, TTExact, false)

	tt.NewSearch()
	if _, found := tt.Probe(key); !found {
		t.Error("aged entry no longer probeable")
	}

	// A shallower entry from the new generation replaces the stale one.
	tt.Store(key, 2, board.NoMove, 60, 60, TTLowerBound, false)
	entry, found := tt.Probe(key)
	if !found || entry.Depth != 2 {
		t.Error("stale entry survived replacement by the current generation")
	}
}

// TestMateScoreNormalization: valueFromTt(valueToTt(v, ply), ply) == v for
// mate and non-mate scores at several plies.
func TestMateScoreNormalization(t *testing.T) {
	scores := []int{
		0, 77, -300,
		MateScore - 1, MateScore - 10, -(MateScore - 1), -(MateScore - 40),
	}
	for _, v := range scores {
		for _, ply := range []int{0, 1, 5, 30} {
			if got := AdjustScoreFromTT(AdjustScoreToTT(v, ply), ply); got != v {
				t.Errorf("round trip of %d at ply %d = %d", v, ply, got)
			}
		}
	}
}

// TestMateScoreStoredAsDistanceFromNode: an entry created at ply 4 holding
// mate-in-3-from-there must read as mate-in-7 when probed at the root.
func TestMateScoreStoredAsDistanceFromNode(t *testing.T) {
	v := MateScore - 7 // mate 7 plies from the root
	stored := AdjustScoreToTT(v, 4)
	if stored != MateScore-3 {
		t.Errorf("stored form = %d, want mate-in-3 relative to node", stored)
	}
	if back := AdjustScoreFromTT(stored, 4); back != v {
		t.Errorf("probe at the same ply = %d, want %d", back, v)
	}
}

// TestHashFullGrows: occupancy estimate rises as entries are stored.
func TestHashFullGrows(t *testing.T) {
	tt := NewTranspositionTable(1)
	if tt.HashFull() != 0 {
		t.Fatal("fresh table not empty")
	}

	// Fill the sampled prefix of the table.
	for i := uint64(0); i < 2000; i++ {
		key := i // low bits index the slot directly
		tt.Store(key, 1, board.NoMove, 0, 0, TTExact, false)
	}
	if tt.HashFull() == 0 {
		t.Error("occupancy still zero after 2000 stores")
	}
}
