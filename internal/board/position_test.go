package board

import (
	"testing"
)

// testFENs is a small suite covering castling, en passant, promotion,
// checks, and pins; shared by the round-trip properties below.
var testFENs = []string{
	StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
	"4k3/8/8/8/8/8/8/4K2R w K - 0 1",
	"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
}

// statesEqual compares every piece of observable position state.
func statesEqual(t *testing.T, a, b *Position, context string) {
	t.Helper()

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			if a.Pieces[c][pt] != b.Pieces[c][pt] {
				t.Errorf("%s: piece bitboard [%d][%d] differs", context, c, pt)
			}
		}
		if a.Occupied[c] != b.Occupied[c] {
			t.Errorf("%s: occupancy [%d] differs", context, c)
		}
		if a.KingSquare[c] != b.KingSquare[c] {
			t.Errorf("%s: king square [%d] differs", context, c)
		}
		if a.Material[c] != b.Material[c] || a.MaterialNonPawn[c] != b.MaterialNonPawn[c] {
			t.Errorf("%s: material accumulators differ", context)
		}
		if a.PsqMg[c] != b.PsqMg[c] || a.PsqEg[c] != b.PsqEg[c] {
			t.Errorf("%s: piece-square accumulators differ", context)
		}
	}
	if a.AllOccupied != b.AllOccupied {
		t.Errorf("%s: total occupancy differs", context)
	}
	if a.SideToMove != b.SideToMove {
		t.Errorf("%s: side to move differs", context)
	}
	if a.CastlingRights != b.CastlingRights {
		t.Errorf("%s: castling rights differ", context)
	}
	if a.EnPassant != b.EnPassant {
		t.Errorf("%s: ep square differs", context)
	}
	if a.HalfMoveClock != b.HalfMoveClock || a.FullMoveNumber != b.FullMoveNumber {
		t.Errorf("%s: move counters differ", context)
	}
	if a.Hash != b.Hash {
		t.Errorf("%s: zobrist hash differs: %016x vs %016x", context, a.Hash, b.Hash)
	}
	if a.PawnKey != b.PawnKey {
		t.Errorf("%s: pawn key differs", context)
	}
	if a.Phase != b.Phase {
		t.Errorf("%s: phase differs", context)
	}
}

// TestMakeUnmakeRoundTrip: doMove followed by undoMove restores bit-exact
// state, for every legal move of every suite position.
func TestMakeUnmakeRoundTrip(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}
		before := pos.Copy()

		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			undo := pos.MakeMove(m)
			if !undo.Valid {
				t.Fatalf("%s: legal move %s rejected by MakeMove", fen, m)
			}
			pos.UnmakeMove(m, undo)
			statesEqual(t, before, pos, fen+" after "+m.String())
		}
	}
}

// TestZobristIncremental: the incrementally maintained hash after a move
// equals a from-scratch recompute of the resulting position.
func TestZobristIncremental(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			undo := pos.MakeMove(m)

			if fresh := pos.ComputeHash(); pos.Hash != fresh {
				t.Errorf("%s after %s: incremental hash %016x != recomputed %016x",
					fen, m, pos.Hash, fresh)
			}
			if fresh := pos.ComputePawnKey(); pos.PawnKey != fresh {
				t.Errorf("%s after %s: incremental pawn key differs from recompute", fen, m)
			}

			pos.UnmakeMove(m, undo)
		}
	}
}

// TestNullMoveRoundTrip: a null move leaves no trace once undone.
func TestNullMoveRoundTrip(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}
		if pos.InCheck() {
			continue
		}
		before := pos.Copy()

		undo := pos.MakeNullMove()
		if pos.SideToMove == before.SideToMove {
			t.Errorf("%s: null move did not flip side to move", fen)
		}
		if pos.EnPassant != NoSquare {
			t.Errorf("%s: null move left ep square set", fen)
		}
		pos.UnmakeNullMove(undo)

		statesEqual(t, before, pos, fen+" after null move")
	}
}

// TestFENRoundTrip: parse → emit → parse is a fixed point, and the ep
// field is emitted only when a capture to it exists.
func TestFENRoundTrip(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}
		out := pos.ToFEN()
		pos2, err := ParseFEN(out)
		if err != nil {
			t.Fatalf("re-parsing %q: %v", out, err)
		}
		if pos.Hash != pos2.Hash {
			t.Errorf("%s: hash changed across FEN round trip (%q)", fen, out)
		}
		if out2 := pos2.ToFEN(); out != out2 {
			t.Errorf("FEN not canonical: %q vs %q", out, out2)
		}
	}
}

// TestEpSquareOnlyWhenCapturable: after a double push with no enemy pawn
// in place, no ep square (and no ep hash contribution) may remain.
func TestEpSquareOnlyWhenCapturable(t *testing.T) {
	pos := NewPosition()
	m := NewMove(E2, E4)
	pos.MakeMove(m)
	if pos.EnPassant != NoSquare {
		t.Errorf("e2e4 from the start position left ep square %s", pos.EnPassant)
	}

	// Black pawn on d4 can capture e2e4 en passant: ep square must be set.
	pos2, err := ParseFEN("rnbqkbnr/pppp1ppp/8/8/3p4/8/PPPPPPPP/RNBQKBNR w KQkq - 0 3")
	if err != nil {
		t.Fatal(err)
	}
	pos2.MakeMove(NewMove(E2, E4))
	if pos2.EnPassant != E3 {
		t.Errorf("expected ep square e3, got %s", pos2.EnPassant)
	}
}

// TestRepetitionDetection walks a knight shuffle until the position has
// repeated twice.
func TestRepetitionDetection(t *testing.T) {
	pos := NewPosition()

	shuffle := []Move{
		NewMove(G1, F3), NewMove(G8, F6),
		NewMove(F3, G1), NewMove(F6, G8),
		NewMove(G1, F3), NewMove(G8, F6),
		NewMove(F3, G1), NewMove(F6, G8),
	}

	for i, m := range shuffle {
		if pos.IsRepetitionDraw() {
			t.Fatalf("premature repetition draw before move %d", i)
		}
		pos.MakeMove(m)
	}

	if !pos.CheckRepetitions(2) {
		t.Error("threefold repetition not detected after two full shuffles")
	}
}

// TestInsufficientMaterial covers the drawn and non-drawn material
// configurations.
func TestInsufficientMaterial(t *testing.T) {
	cases := []struct {
		fen  string
		want bool
	}{
		{"8/8/4k3/8/8/3K4/8/8 w - - 0 1", true},            // K vs K
		{"8/8/4k3/8/8/3KB3/8/8 w - - 0 1", true},           // K+B vs K
		{"8/8/4k3/8/8/3KN3/8/8 w - - 0 1", true},           // K+N vs K
		{"8/8/4k3/8/8/3KNN2/8/8 w - - 0 1", true},          // K+NN vs K
		{"8/3b4/4k3/8/8/3KB3/8/8 w - - 0 1", false},        // opposite-color bishops
		{"8/2b5/4k3/8/8/3KB3/8/8 w - - 0 1", true},         // same-color bishops
		{"8/8/4k3/8/8/3KP3/8/8 w - - 0 1", false},          // pawn present
		{"8/8/4k3/8/8/3KR3/8/8 w - - 0 1", false},          // rook present
		{"8/3n4/4k3/8/8/3KN3/8/8 w - - 0 1", false},        // knight each side
	}

	for _, tc := range cases {
		pos, err := ParseFEN(tc.fen)
		if err != nil {
			t.Fatalf("%s: %v", tc.fen, err)
		}
		if got := pos.IsInsufficientMaterial(); got != tc.want {
			t.Errorf("IsInsufficientMaterial(%s) = %v, want %v", tc.fen, got, tc.want)
		}
	}
}

// TestGivesCheck validates the no-make check classifier against the truth
// obtained by actually making each move.
func TestGivesCheck(t *testing.T) {
	fens := append([]string{
		// Positions rich in discovered checks, promotions and ep.
		"8/2P5/8/8/1k5b/8/4P3/4K3 w - - 0 1",
		"4k3/8/8/3pP3/8/8/8/4KQ2 w - d6 0 1",
		"r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1",
	}, testFENs...)

	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			predicted := pos.GivesCheck(m)

			undo := pos.MakeMove(m)
			actual := pos.InCheck()
			pos.UnmakeMove(m, undo)

			if predicted != actual {
				t.Errorf("%s: GivesCheck(%s) = %v but making it gives %v",
					fen, m, predicted, actual)
			}
		}
	}
}

// TestWasLegalMove agrees with the legality filter.
func TestWasLegalMove(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		pseudo := pos.GeneratePseudoLegalMoves()
		for i := 0; i < pseudo.Len(); i++ {
			m := pseudo.Get(i)
			wantLegal := pos.IsLegal(m)

			undo := pos.MakeMove(m)
			if !undo.Valid {
				continue
			}
			gotLegal := pos.WasLegalMove()
			pos.UnmakeMove(m, undo)

			if wantLegal != gotLegal {
				t.Errorf("%s: IsLegal(%s)=%v but WasLegalMove=%v", fen, m, wantLegal, gotLegal)
			}
		}
	}
}

// TestLastMoveAccessors: history accessors reflect the move just made and
// are restored by unmake.
func TestLastMoveAccessors(t *testing.T) {
	pos := NewPosition()
	if pos.GetLastMove() != NoMove {
		t.Error("fresh position has a last move")
	}

	m := NewMove(E2, E4)
	undo := pos.MakeMove(m)
	if !Same(pos.GetLastMove(), m) {
		t.Errorf("last move = %s, want e2e4", pos.GetLastMove())
	}
	if pos.GetLastCapturedPiece() != NoPiece {
		t.Error("e2e4 recorded a capture")
	}

	pos.UnmakeMove(m, undo)
	if pos.GetLastMove() != NoMove {
		t.Error("unmake did not restore last move")
	}
}
