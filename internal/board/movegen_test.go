package board

import (
	"testing"
)

// TestLegalSubsetOfPseudoLegal: every legal move is also produced by the
// pseudo-legal generator.
func TestLegalSubsetOfPseudoLegal(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		pseudo := pos.GeneratePseudoLegalMoves()
		legal := pos.GenerateLegalMoves()

		for i := 0; i < legal.Len(); i++ {
			if !pseudo.Contains(legal.Get(i)) {
				t.Errorf("%s: legal move %s missing from pseudo-legal set", fen, legal.Get(i))
			}
		}
	}
}

// TestEvasionCompleteness: while in check, filtering the evasion set for
// legality yields exactly the legal moves (none lost to the restriction).
func TestEvasionCompleteness(t *testing.T) {
	checkFENs := []string{
		"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", // queen check
		"rnbqkbnr/ppp2ppp/8/1B1pp3/4P3/8/PPPP1PPP/RNBQK1NR b KQkq - 1 3", // bishop check
		"4k3/8/8/8/8/5n2/5PPP/4K2R w K - 0 1",                            // knight check
		"8/8/8/2k5/3Pp3/8/8/4K3 b - d3 0 1",                              // ep evasion available
		"4k3/4r3/8/8/8/8/3P1P2/4K3 w - - 0 1",                            // rook check down the e-file
		"r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1",
	}

	for _, fen := range checkFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		legal := pos.GenerateLegalMoves()

		// Independently derive the full legal set from an unrestricted
		// generator: every piece's moves, filtered by make/unmake.
		want := make(map[Move]bool)
		full := NewMoveList()
		pos.generateNonQuiet(full, Universe)
		pos.generateQuiets(full, Universe)
		pos.generateCastling(full)
		if pos.EnPassant != NoSquare {
			// the normal path may emit ep twice across the two calls above;
			// the map collapses duplicates
			pos.genEnPassant(full, pos.SideToMove, Universe)
		}
		for i := 0; i < full.Len(); i++ {
			m := full.Get(i)
			undo := pos.MakeMove(m)
			if !undo.Valid {
				continue
			}
			if pos.WasLegalMove() {
				want[m.Core()] = true
			}
			pos.UnmakeMove(m, undo)
		}

		if legal.Len() != len(want) {
			t.Errorf("%s: evasion-based legal set has %d moves, exhaustive set has %d",
				fen, legal.Len(), len(want))
		}
		for i := 0; i < legal.Len(); i++ {
			if !want[legal.Get(i).Core()] {
				t.Errorf("%s: evasion produced extra move %s", fen, legal.Get(i))
			}
		}
	}
}

// TestHasLegalMovesAgreement: the short-circuiting predicate agrees with
// full enumeration on every suite position, including terminal ones.
func TestHasLegalMovesAgreement(t *testing.T) {
	fens := append([]string{
		"7k/5K2/6Q1/8/8/8/8/8 b - - 0 1",                                    // stalemate
		"rn2kbnr/pbpp1ppp/8/1p2p1q1/4K3/3P4/PPP1PPPP/RNBQ1BNR w kq - 0 1",   // checkmate
		"rnbq1bnr/ppp1pppp/4k3/3pP3/3P2Q1/8/PPP2PPP/RNB1KBNR b KQ - 2 4",    // one legal move
		"R6k/6pp/8/8/8/8/8/K7 b - - 0 1",                                    // back-rank mate
	}, testFENs...)

	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}
		legal := pos.GenerateLegalMoves()
		if got, want := pos.HasLegalMoves(), legal.Len() > 0; got != want {
			t.Errorf("%s: HasLegalMoves=%v but %d legal moves", fen, got, legal.Len())
		}
	}
}

// TestOnlyMoveIsPawnDoublePush: a known predecessor bug class where the
// position's single legal move is a pawn double push.
func TestOnlyMoveIsPawnDoublePush(t *testing.T) {
	pos, err := ParseFEN("rnbq1bnr/ppp1pppp/4k3/3pP3/3P2Q1/8/PPP2PPP/RNB1KBNR b KQ - 2 4")
	if err != nil {
		t.Fatal(err)
	}

	legal := pos.GenerateLegalMoves()
	if legal.Len() != 1 {
		t.Fatalf("expected exactly 1 legal move, got %d", legal.Len())
	}
	if got := legal.Get(0).String(); got != "f7f5" {
		t.Errorf("expected f7f5, got %s", got)
	}
	if !pos.HasLegalMoves() {
		t.Error("HasLegalMoves missed the lone double push")
	}
}

// TestStalemate: S4 from the scenario suite.
func TestStalemate(t *testing.T) {
	pos, err := ParseFEN("7k/5K2/6Q1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if pos.InCheck() {
		t.Error("stalemated king reported in check")
	}
	if n := pos.GenerateLegalMoves().Len(); n != 0 {
		t.Errorf("stalemate position has %d legal moves", n)
	}
	if !pos.IsStalemate() {
		t.Error("IsStalemate is false")
	}
}

// TestCheckmate: S5 plus a back-rank mate, and a near-miss where the king
// can capture the checker.
func TestCheckmate(t *testing.T) {
	mates := []string{
		"rn2kbnr/pbpp1ppp/8/1p2p1q1/4K3/3P4/PPP1PPPP/RNBQ1BNR w kq - 0 1",
		"R6k/6pp/8/8/8/8/8/K7 b - - 0 1",
	}
	for _, fen := range mates {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatal(err)
		}
		if !pos.InCheck() {
			t.Errorf("%s: mated king not in check", fen)
		}
		if n := pos.GenerateLegalMoves().Len(); n != 0 {
			t.Errorf("%s: checkmate position has %d legal moves", fen, n)
		}
		if !pos.IsCheckmate() {
			t.Errorf("%s: IsCheckmate is false", fen)
		}
	}

	// King can capture the undefended checking rook: not mate.
	pos, err := ParseFEN("6Rk/8/8/8/8/8/8/K7 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if pos.IsCheckmate() {
		t.Error("king-takes-rook escape missed")
	}
}

// TestGenerationModes: quiet and non-quiet generation partition the full
// move set.
func TestGenerationModes(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		all := pos.GenerateLegalMoves()
		captures := pos.GenerateCaptures()
		quiets := pos.GenerateQuietMoves()

		if captures.Len()+quiets.Len() != all.Len() {
			t.Errorf("%s: modes do not partition: %d + %d != %d",
				fen, captures.Len(), quiets.Len(), all.Len())
		}
		for i := 0; i < captures.Len(); i++ {
			m := captures.Get(i)
			if !m.IsCapture(pos) && !m.IsPromotion() {
				t.Errorf("%s: %s in capture mode is quiet", fen, m)
			}
		}
		for i := 0; i < quiets.Len(); i++ {
			m := quiets.Get(i)
			if m.IsCapture(pos) || m.IsPromotion() {
				t.Errorf("%s: %s in quiet mode is noisy", fen, m)
			}
		}
	}
}

// TestValidateMove accepts exactly the legal moves.
func TestValidateMove(t *testing.T) {
	pos := NewPosition()

	legal := pos.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		if !pos.ValidateMove(legal.Get(i)) {
			t.Errorf("legal move %s rejected", legal.Get(i))
		}
	}

	bogus := []Move{
		NewMove(E2, E5), // pawn triple push
		NewMove(A1, A3), // rook through own pawn
		NewMove(E1, E2), // king onto own pawn
		NoMove,
	}
	for _, m := range bogus {
		if pos.ValidateMove(m) {
			t.Errorf("illegal move %s accepted", m)
		}
	}
}

// TestParseUCIMoves covers the lenient UCI move parser.
func TestParseUCIMoves(t *testing.T) {
	pos := NewPosition()

	m, err := ParseMove("e2e4", pos)
	if err != nil || m.From() != E2 || m.To() != E4 {
		t.Fatalf("e2e4 parse failed: %v %v", m, err)
	}

	// Case-insensitive promotion letter.
	promoPos, err := ParseFEN("8/P6k/8/8/8/8/7K/8 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"a7a8q", "a7a8Q"} {
		m, err := ParseMove(s, promoPos)
		if err != nil || !m.IsPromotion() || m.Promotion() != Queen {
			t.Errorf("%s: expected queen promotion, got %v (%v)", s, m, err)
		}
	}

	if _, err := ParseMove("e9e4", pos); err == nil {
		t.Error("invalid square accepted")
	}
	if _, err := ParseMove("e2", pos); err == nil {
		t.Error("truncated move accepted")
	}
}

// TestParseSAN covers piece letters, disambiguation, captures, promotion
// forms, castling, and the ambiguity rule.
func TestParseSAN(t *testing.T) {
	pos := NewPosition()

	m, err := ParseSAN("e4", pos)
	if err != nil || m.String() != "e2e4" {
		t.Fatalf(`ParseSAN("e4") = %v, %v`, m, err)
	}
	if m, _ := ParseSAN("Nf3", pos); m.String() != "g1f3" {
		t.Errorf(`ParseSAN("Nf3") = %v`, m)
	}

	// Ambiguity, and disambiguation by origin file.
	two, err := ParseFEN("4k3/8/8/8/8/8/4K3/R6R w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if m, _ := ParseSAN("Rd1", two); m != NoMove {
		t.Errorf(`ambiguous "Rd1" accepted as %v`, m)
	}
	if m, _ := ParseSAN("Rad1", two); m.String() != "a1d1" {
		t.Errorf(`ParseSAN("Rad1") = %v`, m)
	}
	if m, _ := ParseSAN("Rhd1", two); m.String() != "h1d1" {
		t.Errorf(`ParseSAN("Rhd1") = %v`, m)
	}

	// Promotion with and without '='.
	promoPos, err := ParseFEN("8/P6k/8/8/8/8/7K/8 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"a8=Q", "a8Q"} {
		m, _ := ParseSAN(s, promoPos)
		if !m.IsPromotion() || m.Promotion() != Queen {
			t.Errorf("ParseSAN(%q) = %v, want queen promotion", s, m)
		}
	}

	// Castling, both spellings.
	castlePos, err := ParseFEN("4k3/8/8/8/8/8/8/4K2R w K - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"O-O", "0-0"} {
		m, _ := ParseSAN(s, castlePos)
		if !m.IsCastling() {
			t.Errorf("ParseSAN(%q) = %v, want castling", s, m)
		}
	}

	// En passant with the optional suffix.
	epPos, err := ParseFEN("4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 1")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"exd6", "exd6 e.p."} {
		m, _ := ParseSAN(s, epPos)
		if !m.IsEnPassant() {
			t.Errorf("ParseSAN(%q) = %v, want en passant", s, m)
		}
	}
}

// TestSANRoundTrip: rendering a legal move to SAN and parsing it back is
// the identity, across the whole suite.
func TestSANRoundTrip(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("%s: %v", fen, err)
		}

		legal := pos.GenerateLegalMoves()
		for i := 0; i < legal.Len(); i++ {
			m := legal.Get(i)
			san := m.ToSAN(pos)
			back, err := ParseSAN(san, pos)
			if err != nil || !Same(back, m) {
				t.Errorf("%s: %s -> %q -> %v", fen, m, san, back)
			}
		}
	}
}
