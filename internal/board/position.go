package board

import "fmt"

// CastlingRights represents the available castling options.
type CastlingRights uint8

const (
	WhiteKingSideCastle  CastlingRights = 1 << iota // K
	WhiteQueenSideCastle                            // Q
	BlackKingSideCastle                             // k
	BlackQueenSideCastle                            // q
	NoCastling           CastlingRights = 0
	AllCastling          CastlingRights = WhiteKingSideCastle | WhiteQueenSideCastle | BlackKingSideCastle | BlackQueenSideCastle
)

// String returns the FEN castling rights string.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	s := ""
	if cr&WhiteKingSideCastle != 0 {
		s += "K"
	}
	if cr&WhiteQueenSideCastle != 0 {
		s += "Q"
	}
	if cr&BlackKingSideCastle != 0 {
		s += "k"
	}
	if cr&BlackQueenSideCastle != 0 {
		s += "q"
	}
	return s
}

// CanCastle returns true if the given side can castle in the given direction.
func (cr CastlingRights) CanCastle(c Color, kingSide bool) bool {
	if c == White {
		if kingSide {
			return cr&WhiteKingSideCastle != 0
		}
		return cr&WhiteQueenSideCastle != 0
	}
	if kingSide {
		return cr&BlackKingSideCastle != 0
	}
	return cr&BlackQueenSideCastle != 0
}

// triState caches a lazily-computed boolean across calls until the position
// changes, avoiding recomputation on repeated queries within the same node.
type triState int8

const (
	tbd triState = iota
	stateFalse
	stateTrue
)

// Position represents a complete chess position.
type Position struct {
	// Piece bitboards: [Color][PieceType]
	Pieces [2][6]Bitboard

	// Occupancy bitboards (cached for efficiency)
	Occupied    [2]Bitboard // All pieces of each color
	AllOccupied Bitboard    // All pieces on the board

	// Game state
	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square // Target square for en passant, NoSquare if none
	HalfMoveClock  int    // Moves since last pawn move or capture (for 50-move rule)
	FullMoveNumber int    // Full move counter, starts at 1

	// Zobrist hash for transposition table
	Hash uint64

	// Pawn hash key for pawn structure caching
	PawnKey uint64

	// King positions (cached for check detection)
	KingSquare [2]Square

	// Checkers bitboard (pieces giving check)
	Checkers Bitboard

	// Material[c] is the sum of PieceValue over all of c's pieces (pawns
	// included); MaterialNonPawn[c] excludes pawns. Maintained incrementally
	// by setPiece/removePiece so the evaluator never has to rescan the board.
	Material        [2]int
	MaterialNonPawn [2]int

	// PsqMg[c]/PsqEg[c] are running totals of the piece-square table values
	// in psqt.go for c's pieces, maintained incrementally alongside
	// Material; PSQ() takes White's total minus Black's.
	PsqMg [2]int
	PsqEg [2]int

	// Phase counts non-pawn material against MaxPhase; 24 is the starting
	// position, falling towards 0 as pieces are traded for the evaluator's
	// midgame/endgame taper.
	Phase int

	// hasCheckCache memoizes InCheck() between MakeMove/UnmakeMove calls;
	// reset to tbd whenever Checkers is recomputed.
	hasCheckCache triState

	// historyHashes holds the zobrist hash before each move made since the
	// position was constructed, used by CheckRepetitions for
	// threefold-repetition detection.
	historyHashes []uint64

	// LastMove and LastCaptured describe the most recent MakeMove; both are
	// restored by UnmakeMove from the undo record.
	LastMove     Move
	LastCaptured Piece
}

// GetLastMove returns the most recently made move, or NoMove at the root.
func (p *Position) GetLastMove() Move {
	return p.LastMove
}

// GetLastCapturedPiece returns the piece captured by the last move, or
// NoPiece if it was not a capture.
func (p *Position) GetLastCapturedPiece() Piece {
	return p.LastCaptured
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, _ := ParseFEN(StartFEN)
	return pos
}

// Copy creates a deep copy of the position.
func (p *Position) Copy() *Position {
	newPos := *p
	if len(p.historyHashes) > 0 {
		newPos.historyHashes = append([]uint64(nil), p.historyHashes...)
	}
	return &newPos
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	bb := SquareBB(sq)

	// Check if square is occupied
	if p.AllOccupied&bb == 0 {
		return NoPiece
	}

	// Find the color
	var c Color
	if p.Occupied[White]&bb != 0 {
		c = White
	} else {
		c = Black
	}

	// Find the piece type
	for pt := Pawn; pt <= King; pt++ {
		if p.Pieces[c][pt]&bb != 0 {
			return NewPiece(pt, c)
		}
	}

	return NoPiece
}

// IsEmpty returns true if the square is empty.
func (p *Position) IsEmpty(sq Square) bool {
	return p.AllOccupied&SquareBB(sq) == 0
}

// addPieceAccum folds a piece onto a square into the material/PSQ/phase
// accumulators; sign is +1 to add the piece, -1 to remove it.
func (p *Position) addPieceAccum(c Color, pt PieceType, sq Square, sign int) {
	p.Material[c] += sign * PieceValue[pt]
	if pt != Pawn {
		p.MaterialNonPawn[c] += sign * PieceValue[pt]
	}
	p.Phase += sign * PhaseValue[pt]

	mg, eg := psqValue(pt, relativeSquare(sq, c))
	p.PsqMg[c] += sign * mg
	p.PsqEg[c] += sign * eg
}

// setPiece places a piece on a square (does not update hash).
func (p *Position) setPiece(piece Piece, sq Square) {
	if piece == NoPiece {
		return
	}
	c := piece.Color()
	pt := piece.Type()
	bb := SquareBB(sq)

	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.AllOccupied |= bb
	p.addPieceAccum(c, pt, sq, 1)

	if pt == King {
		p.KingSquare[c] = sq
	}
}

// removePiece removes a piece from a square (does not update hash).
func (p *Position) removePiece(sq Square) Piece {
	piece := p.PieceAt(sq)
	if piece == NoPiece {
		return NoPiece
	}

	c := piece.Color()
	pt := piece.Type()
	bb := SquareBB(sq)

	p.Pieces[c][pt] &^= bb
	p.Occupied[c] &^= bb
	p.AllOccupied &^= bb
	p.addPieceAccum(c, pt, sq, -1)

	return piece
}

// movePiece moves a piece from one square to another (does not update hash).
func (p *Position) movePiece(from, to Square) {
	piece := p.PieceAt(from)
	if piece == NoPiece {
		return
	}

	c := piece.Color()
	pt := piece.Type()
	fromBB := SquareBB(from)
	toBB := SquareBB(to)
	moveBB := fromBB | toBB

	p.Pieces[c][pt] ^= moveBB
	p.Occupied[c] ^= moveBB
	p.AllOccupied ^= moveBB
	p.addPieceAccum(c, pt, from, -1)
	p.addPieceAccum(c, pt, to, 1)

	if pt == King {
		p.KingSquare[c] = to
	}
}

// updateOccupied recalculates occupancy bitboards from piece bitboards.
func (p *Position) updateOccupied() {
	p.Occupied[White] = Empty
	p.Occupied[Black] = Empty

	for pt := Pawn; pt <= King; pt++ {
		p.Occupied[White] |= p.Pieces[White][pt]
		p.Occupied[Black] |= p.Pieces[Black][pt]
	}

	p.AllOccupied = p.Occupied[White] | p.Occupied[Black]
}

// findKings locates and caches the king positions.
func (p *Position) findKings() {
	p.KingSquare[White] = p.Pieces[White][King].LSB()
	p.KingSquare[Black] = p.Pieces[Black][King].LSB()
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	s := "\n"
	for rank := 7; rank >= 0; rank-- {
		s += fmt.Sprintf("%d  ", rank+1)
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.PieceAt(sq)
			if piece == NoPiece {
				s += ". "
			} else {
				s += piece.String() + " "
			}
		}
		s += "\n"
	}
	s += "\n   a b c d e f g h\n\n"
	s += fmt.Sprintf("Side to move: %s\n", p.SideToMove)
	s += fmt.Sprintf("Castling: %s\n", p.CastlingRights)
	s += fmt.Sprintf("En passant: %s\n", p.EnPassant)
	s += fmt.Sprintf("Half-move clock: %d\n", p.HalfMoveClock)
	s += fmt.Sprintf("Full move: %d\n", p.FullMoveNumber)
	s += fmt.Sprintf("Hash: %016x\n", p.Hash)
	return s
}

// Clear resets the position to an empty board.
func (p *Position) Clear() {
	*p = Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
	}
	p.KingSquare[White] = NoSquare
	p.KingSquare[Black] = NoSquare
}

// PSQ returns the tapered, White-relative piece-square contribution at the
// position's current Phase (out of MaxPhase).
func (p *Position) PSQ() int {
	mg := p.PsqMg[White] - p.PsqMg[Black]
	eg := p.PsqEg[White] - p.PsqEg[Black]
	phase := p.Phase
	if phase > MaxPhase {
		phase = MaxPhase
	}
	return (mg*phase + eg*(MaxPhase-phase)) / MaxPhase
}

// Validate checks if the position is valid.
func (p *Position) Validate() error {
	// Check that each side has exactly one king
	if p.Pieces[White][King].PopCount() != 1 {
		return fmt.Errorf("white must have exactly one king")
	}
	if p.Pieces[Black][King].PopCount() != 1 {
		return fmt.Errorf("black must have exactly one king")
	}

	// Check that pawns are not on rank 1 or 8
	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return fmt.Errorf("pawns cannot be on rank 1 or 8")
	}

	// Check that opponent's king is not in check (would be illegal position)
	if p.IsSquareAttacked(p.KingSquare[p.SideToMove.Other()], p.SideToMove) {
		return fmt.Errorf("side not to move is in check")
	}

	return nil
}

// GameOver returns true if the game is over (checkmate, stalemate, or draw).
func (p *Position) GameOver() bool {
	return p.IsCheckmate() || p.IsDraw()
}

// InCheck returns true if the side to move is in check. The result is
// memoized against hasCheckCache until the next UpdateCheckers call
// invalidates it (see invalidateCheckCache).
func (p *Position) InCheck() bool {
	if p.hasCheckCache == tbd {
		if p.Checkers != 0 {
			p.hasCheckCache = stateTrue
		} else {
			p.hasCheckCache = stateFalse
		}
	}
	return p.hasCheckCache == stateTrue
}

// invalidateCheckCache forces the next InCheck() call to recompute from
// Checkers. Called whenever Checkers is assigned or recomputed.
func (p *Position) invalidateCheckCache() {
	p.hasCheckCache = tbd
}

// GivesCheck reports whether making m from the current position would leave
// the opponent's king in check, classifying direct checks (the moved piece's
// own attack pattern reaches the enemy king) and discovered checks (moving
// the piece unmasks an attack from a slider behind it) separately from the
// special-cased castling/en-passant/promotion forms.
func (p *Position) GivesCheck(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[them]
	from := m.From()
	to := m.To()

	piece := p.PieceAt(from)
	if piece == NoPiece {
		return false
	}
	pt := piece.Type()
	if m.IsPromotion() {
		pt = m.Promotion()
	}

	occAfter := (p.AllOccupied &^ SquareBB(from)) | SquareBB(to)
	if m.IsEnPassant() {
		var capSq Square
		if us == White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		occAfter &^= SquareBB(capSq)
	}

	// Direct check: the moved (or promoted-into) piece attacks the king from
	// its destination square.
	var directAttacks Bitboard
	switch pt {
	case Pawn:
		directAttacks = PawnAttacks(to, us)
	case Knight:
		directAttacks = KnightAttacks(to)
	case Bishop:
		directAttacks = BishopAttacks(to, occAfter)
	case Rook:
		directAttacks = RookAttacks(to, occAfter)
	case Queen:
		directAttacks = QueenAttacks(to, occAfter)
	case King:
		directAttacks = 0 // a king can never directly check the enemy king
	}
	if directAttacks&SquareBB(ksq) != 0 {
		return true
	}

	// Discovered check: a friendly slider behind the origin square, masked
	// before the move, now has a clear line to the king.
	sliders := (p.Pieces[us][Rook] | p.Pieces[us][Queen]) & RookAttacks(ksq, occAfter)
	sliders |= (p.Pieces[us][Bishop] | p.Pieces[us][Queen]) & BishopAttacks(ksq, occAfter)
	sliders &^= SquareBB(to)
	for sliders != 0 {
		sq := sliders.PopLSB()
		if Between(sq, ksq)&occAfter == SquareBB(from) || Between(sq, ksq)&occAfter == 0 {
			return true
		}
	}

	// Castling puts the rook, not the king, on its new square; the rook can
	// discover or directly give check from its destination.
	if m.IsCastling() {
		var rookTo Square
		if to > from {
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookTo = NewSquare(3, from.Rank())
		}
		if RookAttacks(rookTo, occAfter)&SquareBB(ksq) != 0 {
			return true
		}
	}

	return false
}

// WasLegalMove reports whether the move just applied by MakeMove (with the
// side to move already flipped) was legal, i.e. it did not leave the mover's
// own king in check.
func (p *Position) WasLegalMove() bool {
	mover := p.SideToMove.Other()
	return !p.IsSquareAttacked(p.KingSquare[mover], p.SideToMove)
}

// MaterialBalance returns the material balance (positive favors white),
// read directly off the incrementally-maintained Material accumulator.
func (p *Position) MaterialBalance() int {
	return p.Material[White] - p.Material[Black]
}

// ComputePinned computes pieces pinned to the king for the side to move.
// Uses Stockfish-style x-ray attack detection.
func (p *Position) ComputePinned() Bitboard {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]
	pinned := Bitboard(0)

	// Rook/Queen x-ray attacks (horizontal and vertical)
	snipers := RookAttacks(ksq, 0) & (p.Pieces[them][Rook] | p.Pieces[them][Queen])
	for snipers != 0 {
		sq := snipers.PopLSB()
		blockers := Between(sq, ksq) & p.AllOccupied
		if blockers.PopCount() == 1 && blockers&p.Occupied[us] != 0 {
			pinned |= blockers
		}
	}

	// Bishop/Queen x-ray attacks (diagonals)
	snipers = BishopAttacks(ksq, 0) & (p.Pieces[them][Bishop] | p.Pieces[them][Queen])
	for snipers != 0 {
		sq := snipers.PopLSB()
		blockers := Between(sq, ksq) & p.AllOccupied
		if blockers.PopCount() == 1 && blockers&p.Occupied[us] != 0 {
			pinned |= blockers
		}
	}

	return pinned
}

// NullMoveUndo stores state for unmake of null move.
// Returned by MakeNullMove and passed to UnmakeNullMove.
type NullMoveUndo struct {
	EnPassant Square
	Hash      uint64
	LastMove  Move
	LastCaptured Piece
}

// MakeNullMove makes a null move (passes the turn without moving).
// Used for null move pruning in search.
// Returns undo info that must be passed to UnmakeNullMove.
func (p *Position) MakeNullMove() NullMoveUndo {
	// Save state for unmake
	undo := NullMoveUndo{
		EnPassant:    p.EnPassant,
		Hash:         p.Hash,
		LastMove:     p.LastMove,
		LastCaptured: p.LastCaptured,
	}
	p.LastMove = NoMove
	p.LastCaptured = NoPiece

	// Update hash for en passant removal
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	// Clear en passant
	p.EnPassant = NoSquare

	// Switch side
	p.SideToMove = p.SideToMove.Other()
	p.Hash ^= zobristSideToMove

	// Update checkers for new side
	p.UpdateCheckers()

	return undo
}

// UnmakeNullMove undoes a null move.
func (p *Position) UnmakeNullMove(undo NullMoveUndo) {
	// Restore state
	p.EnPassant = undo.EnPassant
	p.Hash = undo.Hash
	p.LastMove = undo.LastMove
	p.LastCaptured = undo.LastCaptured
	p.SideToMove = p.SideToMove.Other()

	// Update checkers for restored side
	p.UpdateCheckers()
}

// HasNonPawnMaterial returns true if the side to move has non-pawn material.
// Used for null move pruning (avoid in pure pawn endgames due to zugzwang).
func (p *Position) HasNonPawnMaterial() bool {
	us := p.SideToMove
	return p.Pieces[us][Knight]|p.Pieces[us][Bishop]|p.Pieces[us][Rook]|p.Pieces[us][Queen] != 0
}

// MakeMove applies a move to the position and returns the undo record that
// restores it. The zobrist and pawn keys are updated incrementally, keyed
// by each state change (piece moved, capture, castling-rights delta,
// ep-file change, side-to-move toggle).
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		Checkers:       p.Checkers,
	}

	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()
	piece := p.PieceAt(from)

	// An empty origin square means the move does not belong to this
	// position; leave the state untouched and report it via undo.Valid.
	if piece == NoPiece {
		return undo
	}

	undo.Valid = true
	undo.PawnKey = p.PawnKey
	undo.LastMove = p.LastMove
	undo.LastCaptured = p.LastCaptured
	p.historyHashes = append(p.historyHashes, p.Hash)
	pt := piece.Type()

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	if m.IsEnPassant() {
		var capturedSq Square
		if us == White {
			capturedSq = to - 8
		} else {
			capturedSq = to + 8
		}
		undo.CapturedPiece = p.removePiece(capturedSq)
		p.Hash ^= zobristPiece[them][Pawn][capturedSq]
		p.PawnKey ^= zobristPiece[them][Pawn][capturedSq]
	} else if captured := p.PieceAt(to); captured != NoPiece {
		undo.CapturedPiece = captured
		p.removePiece(to)
		p.Hash ^= zobristPiece[them][captured.Type()][to]
		if captured.Type() == Pawn {
			p.PawnKey ^= zobristPiece[them][Pawn][to]
		}
	}

	p.movePiece(from, to)
	p.Hash ^= zobristPiece[us][pt][from]
	p.Hash ^= zobristPiece[us][pt][to]
	if pt == Pawn {
		p.PawnKey ^= zobristPiece[us][Pawn][from]
		p.PawnKey ^= zobristPiece[us][Pawn][to]
	}

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][Pawn] &^= SquareBB(to)
		p.Pieces[us][promoPt] |= SquareBB(to)
		p.addPieceAccum(us, Pawn, to, -1)
		p.addPieceAccum(us, promoPt, to, 1)
		p.Hash ^= zobristPiece[us][Pawn][to]
		p.Hash ^= zobristPiece[us][promoPt][to]
		// The pawn placed at `to` by movePiece above never belonged in the
		// pawn key (it's about to become a promoted piece); undo that entry.
		p.PawnKey ^= zobristPiece[us][Pawn][to]
	}

	if m.IsCastling() {
		rookFrom, rookTo := castlingRookSquares(from, to)
		p.movePiece(rookFrom, rookTo)
		p.Hash ^= zobristPiece[us][Rook][rookFrom]
		p.Hash ^= zobristPiece[us][Rook][rookTo]
	}

	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}

	// A rook leaving its home square, or anything landing there, clears the
	// right on that side.
	if from == A1 || to == A1 {
		p.CastlingRights &^= WhiteQueenSideCastle
	}
	if from == H1 || to == H1 {
		p.CastlingRights &^= WhiteKingSideCastle
	}
	if from == A8 || to == A8 {
		p.CastlingRights &^= BlackQueenSideCastle
	}
	if from == H8 || to == H8 {
		p.CastlingRights &^= BlackKingSideCastle
	}
	p.Hash ^= zobristCastling[p.CastlingRights]

	// A double push leaves an ep square only when an enemy pawn is actually
	// placed to capture it; anything else would pollute the zobrist key
	// across transpositions.
	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		if PawnAttacks(epSquare, us)&p.Pieces[them][Pawn] != 0 {
			p.EnPassant = epSquare
			p.Hash ^= zobristEnPassant[epSquare.File()]
		}
	}

	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.LastMove = m.Core()
	p.LastCaptured = undo.CapturedPiece
	p.UpdateCheckers()

	return undo
}

// UnmakeMove restores the position to its state before MakeMove(m).
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	them := p.SideToMove
	us := them.Other()
	from := m.From()
	to := m.To()

	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.Checkers = undo.Checkers
	p.invalidateCheckCache()
	p.SideToMove = us
	p.LastMove = undo.LastMove
	p.LastCaptured = undo.LastCaptured

	if n := len(p.historyHashes); n > 0 {
		p.historyHashes = p.historyHashes[:n-1]
	}

	if us == Black {
		p.FullMoveNumber--
	}

	// A promotion must revert to a pawn before the piece walks back.
	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][promoPt] &^= SquareBB(to)
		p.Pieces[us][Pawn] |= SquareBB(to)
		p.addPieceAccum(us, promoPt, to, -1)
		p.addPieceAccum(us, Pawn, to, 1)
	}

	p.movePiece(to, from)

	if m.IsCastling() {
		rookFrom, rookTo := castlingRookSquares(from, to)
		p.movePiece(rookTo, rookFrom)
	}

	if undo.CapturedPiece != NoPiece {
		if m.IsEnPassant() {
			var capturedSq Square
			if us == White {
				capturedSq = to - 8
			} else {
				capturedSq = to + 8
			}
			p.setPiece(undo.CapturedPiece, capturedSq)
		} else {
			p.setPiece(undo.CapturedPiece, to)
		}
	}
}

// castlingRookSquares returns the rook's origin and destination for a
// castling move described by the king's path.
func castlingRookSquares(kingFrom, kingTo Square) (rookFrom, rookTo Square) {
	if kingTo > kingFrom {
		return NewSquare(7, kingFrom.Rank()), NewSquare(5, kingFrom.Rank())
	}
	return NewSquare(0, kingFrom.Rank()), NewSquare(3, kingFrom.Rank())
}
