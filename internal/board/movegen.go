package board

// Generation modes. NonQuiet covers captures, promotions and en passant;
// Quiet covers everything else including castling.
type GenMode uint8

const (
	GenNonQuiet GenMode = 1 << iota
	GenQuiet
	GenAll GenMode = GenNonQuiet | GenQuiet
)

// GenerateLegalMoves generates all legal moves for the position. While in
// check, generation is already restricted to evasions, so the legality
// filter only has to reject moves that expose the king.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generatePseudoLegal(ml, GenAll)
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (they may leave
// the own king in check).
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generatePseudoLegal(ml, GenAll)
	return ml
}

// GenerateCaptures generates legal non-quiet moves (captures, promotions,
// en passant) for quiescence.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generatePseudoLegal(ml, GenNonQuiet)
	return p.filterLegalMoves(ml)
}

// GenerateQuietMoves generates legal quiet moves (including castling).
func (p *Position) GenerateQuietMoves() *MoveList {
	ml := NewMoveList()
	p.generatePseudoLegal(ml, GenQuiet)
	return p.filterLegalMoves(ml)
}

// generatePseudoLegal dispatches to evasion generation when the side to
// move is in check, otherwise to the normal per-mode generators.
func (p *Position) generatePseudoLegal(ml *MoveList, mode GenMode) {
	if p.InCheck() {
		p.generateEvasions(ml, mode)
		return
	}
	if mode&GenNonQuiet != 0 {
		p.generateNonQuiet(ml, Universe)
	}
	if mode&GenQuiet != 0 {
		p.generateQuiets(ml, Universe)
		p.generateCastling(ml)
	}
}

// generateEvasions generates check evasions: king steps always; when there
// is a single checker, also captures of the checker and (for sliding
// checkers) interpositions on the check ray. With two checkers only the
// king can move.
func (p *Position) generateEvasions(ml *MoveList, mode GenMode) {
	us := p.SideToMove
	ksq := p.KingSquare[us]
	checkers := p.Checkers

	p.genKingSteps(ml, us, mode)

	if checkers.PopCount() > 1 {
		return
	}

	checkerSq := checkers.LSB()
	captureMask := checkers
	blockMask := Between(checkerSq, ksq)

	if mode&GenNonQuiet != 0 {
		p.generateNonQuiet(ml, captureMask|blockMask)
		p.genEvasionEnPassant(ml, us, checkerSq)
	}
	if mode&GenQuiet != 0 {
		p.generateQuiets(ml, blockMask)
	}
}

// genEvasionEnPassant emits the en-passant capture of a checking pawn. The
// normal capture generators cannot find it because the ep destination is
// not the checker's square.
func (p *Position) genEvasionEnPassant(ml *MoveList, us Color, checkerSq Square) {
	if p.EnPassant == NoSquare {
		return
	}
	var victimSq Square
	if us == White {
		victimSq = p.EnPassant - 8
	} else {
		victimSq = p.EnPassant + 8
	}
	if victimSq != checkerSq {
		return
	}
	attackers := PawnAttacks(p.EnPassant, us.Other()) & p.Pieces[us][Pawn]
	for attackers != 0 {
		from := attackers.PopLSB()
		ml.Add(NewEnPassant(from, p.EnPassant))
	}
}

// generateNonQuiet generates captures, promotions and en passant, with
// destinations restricted to targets (Universe when not evading).
func (p *Position) generateNonQuiet(ml *MoveList, targets Bitboard) {
	us := p.SideToMove
	enemies := p.Occupied[us.Other()] & targets
	occupied := p.AllOccupied

	p.genPawnCaptures(ml, us, enemies)
	p.genPawnPromotionPushes(ml, us, targets)
	p.genEnPassant(ml, us, targets)
	p.genPieceMoves(ml, us, enemies, occupied)

	if targets == Universe {
		p.genKingCaptures(ml, us)
	}
}

// generateQuiets generates non-capturing, non-promoting moves with
// destinations restricted to targets. Castling and king steps are emitted
// by the callers that want them.
func (p *Position) generateQuiets(ml *MoveList, targets Bitboard) {
	us := p.SideToMove
	occupied := p.AllOccupied
	empty := ^occupied & targets

	p.genPawnPushes(ml, us, empty)
	p.genPieceMoves(ml, us, empty, occupied)

	if targets == Universe {
		p.genKingQuiets(ml, us)
	}
}

// genPawnPushes emits single and double pushes landing on a square in
// dests, excluding promotion pushes (those are non-quiet).
func (p *Position) genPawnPushes(ml *MoveList, us Color, dests Bitboard) {
	pawns := p.Pieces[us][Pawn]
	empty := ^p.AllOccupied

	if us == White {
		push1 := pawns.North() & empty
		push2 := (push1 & Rank3).North() & empty & dests
		push1 &= dests &^ Rank8
		for push1 != 0 {
			to := push1.PopLSB()
			ml.Add(NewMove(to-8, to))
		}
		for push2 != 0 {
			to := push2.PopLSB()
			ml.Add(NewMove(to-16, to))
		}
	} else {
		push1 := pawns.South() & empty
		push2 := (push1 & Rank6).South() & empty & dests
		push1 &= dests &^ Rank1
		for push1 != 0 {
			to := push1.PopLSB()
			ml.Add(NewMove(to+8, to))
		}
		for push2 != 0 {
			to := push2.PopLSB()
			ml.Add(NewMove(to+16, to))
		}
	}
}

// genPawnCaptures emits diagonal pawn captures onto enemies, promoting on
// the last rank.
func (p *Position) genPawnCaptures(ml *MoveList, us Color, enemies Bitboard) {
	pawns := p.Pieces[us][Pawn]

	var west, east Bitboard
	var westDelta, eastDelta int
	var promoRank Bitboard
	if us == White {
		west, east = pawns.NorthWest()&enemies, pawns.NorthEast()&enemies
		westDelta, eastDelta = -7, -9
		promoRank = Rank8
	} else {
		west, east = pawns.SouthWest()&enemies, pawns.SouthEast()&enemies
		westDelta, eastDelta = 9, 7
		promoRank = Rank1
	}

	for _, side := range [2]struct {
		bb    Bitboard
		delta int
	}{{west, westDelta}, {east, eastDelta}} {
		caps := side.bb
		for caps != 0 {
			to := caps.PopLSB()
			from := Square(int(to) + side.delta)
			if SquareBB(to)&promoRank != 0 {
				addPromotions(ml, from, to)
			} else {
				ml.Add(NewMove(from, to))
			}
		}
	}
}

// genPawnPromotionPushes emits non-capturing promotions.
func (p *Position) genPawnPromotionPushes(ml *MoveList, us Color, targets Bitboard) {
	pawns := p.Pieces[us][Pawn]
	empty := ^p.AllOccupied & targets

	var push Bitboard
	var delta int
	if us == White {
		push = pawns.North() & empty & Rank8
		delta = -8
	} else {
		push = pawns.South() & empty & Rank1
		delta = 8
	}
	for push != 0 {
		to := push.PopLSB()
		addPromotions(ml, Square(int(to)+delta), to)
	}
}

// genEnPassant emits en-passant captures. During evasions the target mask
// excludes the ep destination, so the checking-pawn case is handled by
// genEvasionEnPassant instead.
func (p *Position) genEnPassant(ml *MoveList, us Color, targets Bitboard) {
	if p.EnPassant == NoSquare || SquareBB(p.EnPassant)&targets == 0 {
		return
	}
	attackers := PawnAttacks(p.EnPassant, us.Other()) & p.Pieces[us][Pawn]
	for attackers != 0 {
		from := attackers.PopLSB()
		ml.Add(NewEnPassant(from, p.EnPassant))
	}
}

// addPromotions adds the four promotion moves in search order.
func addPromotions(ml *MoveList, from, to Square) {
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Knight))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
}

// genPieceMoves emits knight/bishop/rook/queen moves whose destination is
// in dests (a capture set, a quiet set, or an evasion mask).
func (p *Position) genPieceMoves(ml *MoveList, us Color, dests, occupied Bitboard) {
	dests &^= p.Occupied[us]

	for knights := p.Pieces[us][Knight]; knights != 0; {
		from := knights.PopLSB()
		addTargets(ml, from, KnightAttacks(from)&dests)
	}
	for bishops := p.Pieces[us][Bishop]; bishops != 0; {
		from := bishops.PopLSB()
		addTargets(ml, from, BishopAttacks(from, occupied)&dests)
	}
	for rooks := p.Pieces[us][Rook]; rooks != 0; {
		from := rooks.PopLSB()
		addTargets(ml, from, RookAttacks(from, occupied)&dests)
	}
	for queens := p.Pieces[us][Queen]; queens != 0; {
		from := queens.PopLSB()
		addTargets(ml, from, QueenAttacks(from, occupied)&dests)
	}
}

func addTargets(ml *MoveList, from Square, targets Bitboard) {
	for targets != 0 {
		ml.Add(NewMove(from, targets.PopLSB()))
	}
}

// genKingSteps emits all single-step king moves admitted by mode.
func (p *Position) genKingSteps(ml *MoveList, us Color, mode GenMode) {
	from := p.KingSquare[us]
	steps := KingAttacks(from) &^ p.Occupied[us]
	if mode&GenNonQuiet == 0 {
		steps &^= p.Occupied[us.Other()]
	}
	if mode&GenQuiet == 0 {
		steps &= p.Occupied[us.Other()]
	}
	addTargets(ml, from, steps)
}

func (p *Position) genKingCaptures(ml *MoveList, us Color) {
	from := p.KingSquare[us]
	addTargets(ml, from, KingAttacks(from)&p.Occupied[us.Other()])
}

func (p *Position) genKingQuiets(ml *MoveList, us Color) {
	from := p.KingSquare[us]
	addTargets(ml, from, KingAttacks(from)&^p.AllOccupied)
}

// castleRule describes one castling option: the right bit, the king's
// path, the squares that must be empty, and the squares the king crosses
// (which must not be attacked).
type castleRule struct {
	right      CastlingRights
	kingFrom   Square
	kingTo     Square
	emptyMask  Bitboard
	crossed    [3]Square
}

var castleRules = [2][2]castleRule{
	{
		{WhiteKingSideCastle, E1, G1, (1 << F1) | (1 << G1), [3]Square{E1, F1, G1}},
		{WhiteQueenSideCastle, E1, C1, (1 << B1) | (1 << C1) | (1 << D1), [3]Square{E1, D1, C1}},
	},
	{
		{BlackKingSideCastle, E8, G8, (1 << F8) | (1 << G8), [3]Square{E8, F8, G8}},
		{BlackQueenSideCastle, E8, C8, (1 << B8) | (1 << C8) | (1 << D8), [3]Square{E8, D8, C8}},
	},
}

// generateCastling emits castling moves whose rights exist, whose path is
// empty, and whose king path is not attacked. The side to move is known
// not to be in check (evasion generation never castles).
func (p *Position) generateCastling(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()

	for _, rule := range castleRules[us] {
		if p.CastlingRights&rule.right == 0 {
			continue
		}
		if p.AllOccupied&rule.emptyMask != 0 {
			continue
		}
		attacked := false
		for _, sq := range rule.crossed {
			if p.IsSquareAttacked(sq, them) {
				attacked = true
				break
			}
		}
		if !attacked {
			ml.Add(NewCastling(rule.kingFrom, rule.kingTo))
		}
	}
}

// filterLegalMoves keeps only moves that do not leave the own king in check.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if p.IsLegal(m) {
			result.Add(m)
		}
	}
	return result
}

// IsLegal reports whether a pseudo-legal move is legal. King moves are
// checked against post-move attacks with the king removed from the
// occupancy (a sliding checker must not "hide" behind the king's old
// square); everything else is verified by make/unmake.
func (p *Position) IsLegal(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	ksq := p.KingSquare[us]

	if from == ksq {
		if m.IsCastling() {
			// Path attacks were checked at generation time.
			return true
		}
		occ := p.AllOccupied &^ SquareBB(from)
		return p.AttackersByColor(m.To(), them, occ) == 0
	}

	undo := p.MakeMove(m)
	if !undo.Valid {
		return false
	}
	attacked := p.IsSquareAttacked(ksq, them)
	p.UnmakeMove(m, undo)
	return !attacked
}

// ValidateMove reports whether m is a legal move from this position.
func (p *Position) ValidateMove(m Move) bool {
	if m.IsNone() {
		return false
	}
	ml := p.GeneratePseudoLegalMoves()
	for i := 0; i < ml.Len(); i++ {
		if Same(ml.Get(i), m) {
			return p.IsLegal(ml.Get(i))
		}
	}
	return false
}

// HasLegalMoves reports whether the side to move has at least one legal
// move, short-circuiting on the first one found. While in check the
// evasion generator bounds the candidate set, so the scan is cheap; the
// quiet pass includes pawn double pushes so a position whose only legal
// move is a double push is still detected.
func (p *Position) HasLegalMoves() bool {
	ml := NewMoveList()

	if p.InCheck() {
		p.generateEvasions(ml, GenAll)
		return p.anyLegal(ml)
	}

	// King steps first: cheapest to generate, most often legal.
	p.genKingSteps(ml, p.SideToMove, GenAll)
	if p.anyLegal(ml) {
		return true
	}

	ml.Clear()
	p.generateNonQuiet(ml, Universe)
	if p.anyLegal(ml) {
		return true
	}

	ml.Clear()
	p.generateQuiets(ml, Universe)
	p.generateCastling(ml)
	return p.anyLegal(ml)
}

func (p *Position) anyLegal(ml *MoveList) bool {
	for i := 0; i < ml.Len(); i++ {
		if p.IsLegal(ml.Get(i)) {
			return true
		}
	}
	return false
}
