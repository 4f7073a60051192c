package board

// IsCheckmate reports whether the side to move is checkmated.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate reports whether the side to move is stalemated.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// CheckRepetitions reports whether the current position's zobrist key has
// occurred at least k times earlier in the game. The scan is bounded by the
// halfmove clock: a pawn move or capture makes earlier positions
// unreachable, so nothing before the last irreversible move can repeat.
func (p *Position) CheckRepetitions(k int) bool {
	n := len(p.historyHashes)
	limit := p.HalfMoveClock
	if limit > n {
		limit = n
	}
	count := 0
	for i := 1; i <= limit; i++ {
		if p.historyHashes[n-i] == p.Hash {
			count++
			if count >= k {
				return true
			}
		}
	}
	return false
}

// IsRepetitionDraw reports whether the current position has occurred twice
// before, i.e. this is the third occurrence.
func (p *Position) IsRepetitionDraw() bool {
	return p.CheckRepetitions(2)
}

// IsDraw reports stalemate, the 50-move rule, repetition, and insufficient
// material.
func (p *Position) IsDraw() bool {
	if p.HalfMoveClock >= 100 {
		return true
	}
	if p.IsRepetitionDraw() {
		return true
	}
	if p.IsInsufficientMaterial() {
		return true
	}
	return p.IsStalemate()
}

// IsInsufficientMaterial reports whether neither side can possibly deliver
// mate: bare kings, a lone minor, two knights against a bare king, or
// same-colored single bishops.
func (p *Position) IsInsufficientMaterial() bool {
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn] != 0 ||
		p.Pieces[White][Rook]|p.Pieces[Black][Rook] != 0 ||
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}

	wKnights := p.Pieces[White][Knight].PopCount()
	wBishops := p.Pieces[White][Bishop].PopCount()
	bKnights := p.Pieces[Black][Knight].PopCount()
	bBishops := p.Pieces[Black][Bishop].PopCount()
	wMinors := wKnights + wBishops
	bMinors := bKnights + bBishops

	// K vs K, and K+minor vs K.
	if wMinors+bMinors <= 1 {
		return true
	}

	// K+NN vs K: two knights cannot force mate against a bare king.
	if wKnights == 2 && wBishops == 0 && bMinors == 0 {
		return true
	}
	if bKnights == 2 && bBishops == 0 && wMinors == 0 {
		return true
	}

	// K+B vs K+B with both bishops on the same color complex.
	if wBishops == 1 && wKnights == 0 && bBishops == 1 && bKnights == 0 {
		wSq := p.Pieces[White][Bishop].LSB()
		bSq := p.Pieces[Black][Bishop].LSB()
		if (wSq.File()+wSq.Rank())%2 == (bSq.File()+bSq.Rank())%2 {
			return true
		}
	}

	return false
}
