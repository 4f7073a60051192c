package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a six-field FEN string. The halfmove clock and fullmove
// number are optional, defaulting to 0 and 1; extra whitespace between
// fields is tolerated.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("invalid FEN %q: need at least 4 fields, got %d", fen, len(fields))
	}

	pos := &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
	}
	pos.KingSquare[White] = NoSquare
	pos.KingSquare[Black] = NoSquare

	if err := pos.parsePlacement(fields[0]); err != nil {
		return nil, err
	}

	switch fields[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("invalid side to move: %s", fields[1])
	}

	if err := pos.parseCastling(fields[2]); err != nil {
		return nil, err
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return nil, fmt.Errorf("invalid en passant square: %s", fields[3])
		}
		pos.EnPassant = sq
	}

	if len(fields) > 4 {
		hmc, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("invalid half-move clock: %s", fields[4])
		}
		pos.HalfMoveClock = hmc
	}
	if len(fields) > 5 {
		fmn, err := strconv.Atoi(fields[5])
		if err != nil {
			return nil, fmt.Errorf("invalid full-move number: %s", fields[5])
		}
		pos.FullMoveNumber = fmn
	}

	pos.updateOccupied()
	pos.findKings()

	// An ep square no pawn can capture to is dead state: dropping it here
	// keeps zobrist keys equal across transpositions that differ only in a
	// meaningless double-push marker.
	if pos.EnPassant != NoSquare && !pos.epCapturePossible() {
		pos.EnPassant = NoSquare
	}

	pos.Hash = pos.ComputeHash()
	pos.PawnKey = pos.ComputePawnKey()
	pos.UpdateCheckers()

	return pos, nil
}

// parsePlacement fills the board from the first FEN field.
func (p *Position) parsePlacement(placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			piece := PieceFromChar(byte(c))
			if piece == NoPiece {
				return fmt.Errorf("invalid piece character: %c", c)
			}
			p.setPiece(piece, NewSquare(file, rank))
			file++
		}

		if file != 8 {
			return fmt.Errorf("rank %d covers %d squares", rank+1, file)
		}
	}
	return nil
}

// parseCastling fills the castling rights from the third FEN field.
func (p *Position) parseCastling(castling string) error {
	if castling == "-" {
		p.CastlingRights = NoCastling
		return nil
	}
	for _, c := range castling {
		switch c {
		case 'K':
			p.CastlingRights |= WhiteKingSideCastle
		case 'Q':
			p.CastlingRights |= WhiteQueenSideCastle
		case 'k':
			p.CastlingRights |= BlackKingSideCastle
		case 'q':
			p.CastlingRights |= BlackQueenSideCastle
		default:
			return fmt.Errorf("invalid castling character: %c", c)
		}
	}
	return nil
}

// epCapturePossible reports whether a pawn of the side to move could
// actually capture onto the ep square.
func (p *Position) epCapturePossible() bool {
	if p.EnPassant == NoSquare {
		return false
	}
	them := p.SideToMove.Other()
	return PawnAttacks(p.EnPassant, them)&p.Pieces[p.SideToMove][Pawn] != 0
}

// ToFEN returns the canonical FEN of the position. The ep field is emitted
// only when an ep capture actually exists.
func (p *Position) ToFEN() string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			piece := p.PieceAt(NewSquare(file, rank))
			if piece == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(piece.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(p.CastlingRights.String())

	sb.WriteByte(' ')
	if p.epCapturePossible() {
		sb.WriteString(p.EnPassant.String())
	} else {
		sb.WriteByte('-')
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))

	return sb.String()
}

// ComputeHash folds the full zobrist key from scratch; MakeMove maintains
// the same key incrementally, and the two must always agree.
func (p *Position) ComputeHash() uint64 {
	var hash uint64

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				hash ^= zobristPiece[c][pt][bb.PopLSB()]
			}
		}
	}

	if p.SideToMove == Black {
		hash ^= zobristSideToMove
	}
	hash ^= zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	return hash
}

// ComputePawnKey folds the pawn-only zobrist key from scratch. It keys the
// evaluator's pawn-structure cache.
func (p *Position) ComputePawnKey() uint64 {
	var key uint64
	for c := White; c <= Black; c++ {
		bb := p.Pieces[c][Pawn]
		for bb != 0 {
			key ^= zobristPiece[c][Pawn][bb.PopLSB()]
		}
	}
	return key
}
