package board

import (
	"strings"
)

// ToSAN renders a move in Standard Algebraic Notation for the given
// position (the move must be legal there).
func (m Move) ToSAN(pos *Position) string {
	if m.IsNone() {
		return "-"
	}

	if m.IsCastling() {
		if m.To() > m.From() {
			return "O-O"
		}
		return "O-O-O"
	}

	from := m.From()
	to := m.To()
	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return m.String()
	}
	pt := piece.Type()

	var sb strings.Builder

	if pt != Pawn {
		sb.WriteByte("PNBRQK"[pt])
		sb.WriteString(disambiguation(pos, m, pt))
	}

	if m.IsCapture(pos) {
		if pt == Pawn {
			sb.WriteByte('a' + byte(from.File()))
		}
		sb.WriteByte('x')
	}

	sb.WriteString(to.String())

	if m.IsPromotion() {
		sb.WriteByte('=')
		sb.WriteByte("PNBRQK"[m.Promotion()])
	}

	child := pos.Copy()
	child.MakeMove(m)
	if child.IsCheckmate() {
		sb.WriteByte('#')
	} else if child.InCheck() {
		sb.WriteByte('+')
	}

	return sb.String()
}

// disambiguation returns the origin-file/rank prefix needed to make the
// move unique among legal moves of the same piece type to the same square.
func disambiguation(pos *Position, m Move, pt PieceType) string {
	from := m.From()
	to := m.To()
	pieces := pos.Pieces[pos.SideToMove][pt]

	sameFile, sameRank, any := false, false, false
	legal := pos.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		other := legal.Get(i)
		if other.To() != to || other.From() == from || !pieces.IsSet(other.From()) {
			continue
		}
		any = true
		if other.From().File() == from.File() {
			sameFile = true
		}
		if other.From().Rank() == from.Rank() {
			sameRank = true
		}
	}

	switch {
	case !any:
		return ""
	case !sameFile:
		return string('a' + byte(from.File()))
	case !sameRank:
		return string('1' + byte(from.Rank()))
	default:
		return from.String()
	}
}

// ParseSAN matches a SAN string against the legal moves of pos. The parse
// is lexical rather than grammatical: piece letter, optional file/rank
// disambiguation ("Nde5", "N7e5"), capture 'x', promotion as "=Q" or a
// bare trailing "Q", castling O-O/O-O-O (or with zeros), an optional
// "e.p." suffix, and trailing check markers are all accepted. A string
// matching no legal move — or more than one — yields NoMove.
func ParseSAN(s string, pos *Position) (Move, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "e.p.")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "+#!?")

	switch s {
	case "O-O", "0-0":
		if pos.SideToMove == White {
			return matchUnique(pos, sanPattern{pt: King, castle: 1, dest: G1})
		}
		return matchUnique(pos, sanPattern{pt: King, castle: 1, dest: G8})
	case "O-O-O", "0-0-0":
		if pos.SideToMove == White {
			return matchUnique(pos, sanPattern{pt: King, castle: 1, dest: C1})
		}
		return matchUnique(pos, sanPattern{pt: King, castle: 1, dest: C8})
	}

	pat := sanPattern{pt: Pawn, fromFile: -1, fromRank: -1, promo: NoPieceType}

	// Promotion suffix, with or without '='.
	if idx := strings.IndexByte(s, '='); idx >= 0 && idx+1 < len(s) {
		pat.promo = promoFromChar(s[idx+1])
		s = s[:idx]
	} else if n := len(s); n > 0 {
		if promo := promoFromChar(s[n-1]); promo != NoPieceType && n >= 3 {
			pat.promo = promo
			s = s[:n-1]
		}
	}

	if len(s) > 0 && strings.IndexByte("NBRQK", s[0]) >= 0 {
		pat.pt = pieceTypeFromChar(s[0])
		s = s[1:]
	}

	if strings.ContainsRune(s, 'x') {
		pat.capture = true
		s = strings.ReplaceAll(s, "x", "")
	}

	if len(s) < 2 {
		return NoMove, nil
	}
	dest, err := ParseSquare(s[len(s)-2:])
	if err != nil {
		return NoMove, nil
	}
	pat.dest = dest
	s = s[:len(s)-2]

	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'h':
			pat.fromFile = int(c - 'a')
		case c >= '1' && c <= '8':
			pat.fromRank = int(c - '1')
		default:
			return NoMove, nil
		}
	}

	return matchUnique(pos, pat)
}

type sanPattern struct {
	pt       PieceType
	dest     Square
	fromFile int
	fromRank int
	promo    PieceType
	capture  bool
	castle   int
}

// matchUnique returns the single legal move matching the pattern, or
// NoMove when none or several do.
func matchUnique(pos *Position, pat sanPattern) (Move, error) {
	legal := pos.GenerateLegalMoves()
	found := NoMove
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)

		if pat.castle != 0 {
			if m.IsCastling() && m.To() == pat.dest {
				return m, nil
			}
			continue
		}

		if m.To() != pat.dest || m.IsCastling() {
			continue
		}
		if pos.PieceAt(m.From()).Type() != pat.pt {
			continue
		}
		if pat.fromFile >= 0 && m.From().File() != pat.fromFile {
			continue
		}
		if pat.fromRank >= 0 && m.From().Rank() != pat.fromRank {
			continue
		}
		if pat.capture && !m.IsCapture(pos) {
			continue
		}
		if pat.promo != NoPieceType && (!m.IsPromotion() || m.Promotion() != pat.promo) {
			continue
		}
		if pat.promo == NoPieceType && m.IsPromotion() {
			continue
		}

		if found != NoMove {
			// Ambiguous: the notation underdetermines the move.
			return NoMove, nil
		}
		found = m
	}
	return found, nil
}

func promoFromChar(c byte) PieceType {
	switch c {
	case 'N', 'n':
		return Knight
	case 'B':
		return Bishop
	case 'R', 'r':
		return Rook
	case 'Q', 'q':
		return Queen
	}
	return NoPieceType
}

func pieceTypeFromChar(c byte) PieceType {
	switch c {
	case 'N':
		return Knight
	case 'B':
		return Bishop
	case 'R':
		return Rook
	case 'Q':
		return Queen
	case 'K':
		return King
	}
	return Pawn
}

// MovesToSAN renders a line of moves, advancing an internal copy of pos.
func MovesToSAN(pos *Position, moves []Move) []string {
	result := make([]string, len(moves))
	p := pos.Copy()
	for i, m := range moves {
		result[i] = m.ToSAN(p)
		p.MakeMove(m)
	}
	return result
}
