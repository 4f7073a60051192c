package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/hailam/chessplay/internal/board"
)

func TestSearchBasic(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	move := eng.Search(pos)
	if move == board.NoMove {
		t.Error("Search returned NoMove for starting position")
	}
	t.Logf("Best move: %s", move.String())
}

// TestSearchDepthLimit checks that a depth-limited search from the start
// position completes, reaches the requested depth, and returns a legal
// move with every search feature at its default setting.
func TestSearchDepthLimit(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	var lastInfo SearchInfo
	eng.OnInfo = func(info SearchInfo) { lastInfo = info }

	move := eng.SearchSync(pos, Limits{Depth: 5})
	if move == board.NoMove {
		t.Fatal("Search returned NoMove")
	}
	if lastInfo.Depth < 5 {
		t.Errorf("expected to reach depth 5, got %d", lastInfo.Depth)
	}
	if !pos.ValidateMove(move) {
		t.Errorf("search returned illegal move %s", move)
	}
}

// TestMateInOne exercises "go mate 1": the search must find the mating
// move and report a mate score.
func TestMateInOne(t *testing.T) {
	pos, err := board.ParseFEN("8/8/8/8/8/6K1/R7/6k1 w - - 0 8")
	if err != nil {
		t.Fatal(err)
	}
	eng := NewEngine(16)

	move := eng.SearchSync(pos, Limits{Mate: 1, Depth: 5})
	if move.String() != "a2a1" {
		t.Errorf("expected a2a1 mate, got %s", move.String())
	}

	result := eng.LastResult()
	if !result.MateFound {
		t.Error("expected MateFound")
	}
	if result.Score != MateScore-1 {
		t.Errorf("expected score %d, got %d", MateScore-1, result.Score)
	}
}

// TestNodeLimit verifies node-limited searches terminate near the budget.
func TestNodeLimit(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	const limit = 20000
	move := eng.SearchSync(pos, Limits{Nodes: limit, Depth: 64})
	if move == board.NoMove {
		t.Fatal("Search returned NoMove")
	}

	// The worker checks the node budget before every node; allow some slack.
	if nodes := eng.LastResult().Nodes; nodes > limit+4096 {
		t.Errorf("search overran the node budget: %d > %d", nodes, limit)
	}
}

// TestTimeLimitObedience: a movetime search must come back within the
// budget plus scheduling slack.
func TestTimeLimitObedience(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	start := time.Now()
	move := eng.SearchSync(pos, Limits{MoveTime: 200 * time.Millisecond})
	elapsed := time.Since(start)

	if move == board.NoMove {
		t.Fatal("Search returned NoMove")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("search took %v, budget was 200ms", elapsed)
	}
}

// TestStopSearch verifies an infinite search is interruptible and still
// publishes a best move.
func TestStopSearch(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	published := make(chan SearchResult, 1)
	eng.OnBestMove = func(r SearchResult) { published <- r }

	if err := eng.StartSearch(pos, Limits{Infinite: true}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	eng.StopSearch()

	select {
	case result := <-published:
		if result.BestMove == board.NoMove {
			t.Error("stopped search published no best move")
		}
	case <-time.After(time.Second):
		t.Fatal("no bestmove published after stop")
	}
}

// TestStartWhileSearching: a second StartSearch while one is running must
// be rejected.
func TestStartWhileSearching(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	if err := eng.StartSearch(pos, Limits{Infinite: true}); err != nil {
		t.Fatal(err)
	}
	if err := eng.StartSearch(pos, Limits{Depth: 1}); err == nil {
		t.Error("second StartSearch should have been rejected")
	}
	eng.StopSearch()
}

// TestSearchMovesRestriction: with searchmoves, only listed root moves may
// be returned.
func TestSearchMovesRestriction(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	only, err := board.ParseMove("a2a3", pos)
	if err != nil {
		t.Fatal(err)
	}

	move := eng.SearchSync(pos, Limits{Depth: 4, Moves: []board.Move{only}})
	if !board.Same(move, only) {
		t.Errorf("expected restricted move a2a3, got %s", move.String())
	}
}

// TestRepeatedSearchesReuseEngine exercises repeated searches against the
// same Engine (shared TT, pawn table, and worker) so state from one search
// cannot leak incorrectly into the next.
func TestRepeatedSearchesReuseEngine(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	iterations := 10
	if testing.Short() {
		iterations = 3
	}

	for i := 0; i < iterations; i++ {
		move := eng.SearchSync(pos, Limits{Depth: 6, MoveTime: 500 * time.Millisecond})
		if move == board.NoMove {
			t.Errorf("Iteration %d: Search returned NoMove", i)
		}

		if i%2 == 0 {
			pos, _ = board.ParseFEN("rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2")
		} else {
			pos, _ = board.ParseFEN("rnbqkbnr/ppp1pppp/8/3p4/3P4/8/PPP1PPPP/RNBQKBNR w KQkq d6 0 2")
		}
	}
}

// TestSearchMultiplePositions runs the same engine over an opening, a
// middlegame, and an endgame position in turn.
func TestSearchMultiplePositions(t *testing.T) {
	eng := NewEngine(16)

	positions := []string{
		board.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3", // Italian Game
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",                                   // KP endgame
	}

	for i, fen := range positions {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatalf("Failed to parse position %d: %v", i, err)
		}

		move := eng.SearchSync(pos, Limits{Depth: 5, MoveTime: 300 * time.Millisecond})
		if move == board.NoMove && pos.HasLegalMoves() {
			t.Errorf("Position %d: Search returned NoMove", i)
		}
	}
}

func TestPawnHashTable(t *testing.T) {
	pt := NewPawnTable(1)

	pos := board.NewPosition()

	if _, _, found := pt.Probe(pos.PawnKey); found {
		t.Error("Expected cache miss on first probe")
	}

	pt.Store(pos.PawnKey, -15, -20)

	mg, eg, found := pt.Probe(pos.PawnKey)
	if !found {
		t.Error("Expected cache hit after store")
	}
	if mg != -15 || eg != -20 {
		t.Errorf("Wrong values: got mg=%d, eg=%d, want -15, -20", mg, eg)
	}

	oldKey := pos.PawnKey
	move := board.NewMove(board.E2, board.E4)
	undo := pos.MakeMove(move)
	if pos.PawnKey == oldKey {
		t.Error("PawnKey should change when pawn moves")
	}

	pos.UnmakeMove(move, undo)
	if pos.PawnKey != oldKey {
		t.Error("PawnKey should be restored on unmake")
	}
}

// TestSEE checks the static exchange evaluator on hand-computed exchanges.
func TestSEE(t *testing.T) {
	cases := []struct {
		fen  string
		move string
		want int
	}{
		// Rook takes an undefended pawn.
		{"1k6/8/8/3p4/8/8/3R4/3K4 w - - 0 1", "d2d5", PawnValue},
		// Rook takes a pawn defended by a pawn: loses the exchange.
		{"1k6/8/4p3/3p4/8/8/3R4/3K4 w - - 0 1", "d2d5", PawnValue - RookValue},
		// Pawn takes a knight defended by a pawn: still winning.
		{"1k6/8/4p3/3n4/4P3/8/8/3K4 w - - 0 1", "e4d5", KnightValue - PawnValue},
	}

	for _, tc := range cases {
		pos, err := board.ParseFEN(tc.fen)
		if err != nil {
			t.Fatalf("%s: %v", tc.fen, err)
		}
		move, err := board.ParseMove(tc.move, pos)
		if err != nil {
			t.Fatalf("%s: %v", tc.move, err)
		}
		if got := SEE(pos, move); got != tc.want {
			t.Errorf("SEE(%s, %s) = %d, want %d", tc.fen, tc.move, got, tc.want)
		}
	}
}

// TestEvaluateSymmetry: flipping the board vertically and swapping colors
// must leave the side-to-move evaluation unchanged.
func TestEvaluateSymmetry(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",
	}

	for _, fen := range fens {
		pos, err := board.ParseFEN(fen)
		if err != nil {
			t.Fatal(err)
		}
		mirrored, err := board.ParseFEN(mirrorFEN(fen))
		if err != nil {
			t.Fatal(err)
		}

		if a, b := Evaluate(pos), Evaluate(mirrored); a != b {
			t.Errorf("evaluation asymmetric for %s: %d vs %d", fen, a, b)
		}
	}
}

// mirrorFEN flips the board vertically and swaps colors, producing the
// same position from the other side's point of view.
func mirrorFEN(fen string) string {
	fields := strings.Fields(fen)

	ranks := strings.Split(fields[0], "/")
	flipped := make([]string, 8)
	for i, r := range ranks {
		flipped[7-i] = swapCase(r)
	}

	side := "w"
	if fields[1] == "w" {
		side = "b"
	}

	castling := fields[2]
	if castling != "-" {
		castling = swapCase(castling)
	}

	return strings.Join(flipped, "/") + " " + side + " " + castling + " - 0 1"
}

func swapCase(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteRune(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c - 'A' + 'a')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
