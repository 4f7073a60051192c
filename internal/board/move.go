package board

import "fmt"

// Move encodes a chess move in 32 bits:
// bits 0-5:   origin square (0-63)
// bits 6-11:  destination square (0-63)
// bits 12-13: promotion piece encoded as (PieceType - Knight) in {0..3}
// bits 14-15: move type (0=normal, 1=promotion, 2=en passant, 3=castling)
// bits 16-31: ordering sort value, biased so that ValueNone maps to 0
//
// Two moves are considered equal for move-identity purposes (TT lookups,
// killer/PV matching, UCI equality) when their low 16 bits match; the sort
// value is scratch space carried alongside the move for sorting and must be
// ignored by such comparisons. Use Core() or Same() rather than Go's "=="
// whenever a move that might carry a sort value is compared.
type Move uint32

// Move flags (packed into bits 14-15).
const (
	FlagNormal    uint32 = 0 << 14
	FlagPromotion uint32 = 1 << 14
	FlagEnPassant uint32 = 2 << 14
	FlagCastling  uint32 = 3 << 14
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

// ValueNone is the sentinel "no value" score; SortBias maps it to a zero
// sort field so a freshly generated, unscored move sorts as the minimum.
const ValueNone = -15001

// sortBias shifts values into the unsigned 16-bit sort-field range.
const sortBias = -ValueNone

// NewMove creates a normal move with a zero sort value.
func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<6
}

// NewPromotion creates a promotion move. The promotion type is clamped to
// Knight when given something below it.
func NewPromotion(from, to Square, promo PieceType) Move {
	if promo < Knight {
		promo = Knight
	}
	promoIdx := promo - Knight
	return Move(from) | Move(to)<<6 | Move(promoIdx)<<12 | Move(FlagPromotion)
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagEnPassant)
}

// NewCastling creates a castling move (king's movement).
func NewCastling(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagCastling)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Flag returns the move-type flag.
func (m Move) Flag() uint32 {
	return uint32(m) & 0xC000
}

// Promotion returns the promotion piece type (only valid if IsPromotion()).
func (m Move) Promotion() PieceType {
	return PieceType((m>>12)&3) + Knight
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Flag() == FlagPromotion
}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m.Flag() == FlagCastling
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Flag() == FlagEnPassant
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture(pos *Position) bool {
	if m.IsEnPassant() {
		return true
	}
	return !pos.IsEmpty(m.To())
}

// IsQuiet returns true if this is not a capture or promotion.
func (m Move) IsQuiet(pos *Position) bool {
	return !m.IsCapture(pos) && !m.IsPromotion()
}

// Core returns the move with its sort value stripped, for identity
// comparisons (TT move matching, killer matching, UCI equality).
func (m Move) Core() Move {
	return m & 0xFFFF
}

// IsNone reports whether this is the null move, ignoring any sort value.
func (m Move) IsNone() bool {
	return m.Core() == NoMove
}

// Same reports whether two moves are the same move, ignoring sort values.
func Same(a, b Move) bool {
	return a.Core() == b.Core()
}

// SortValue extracts the ordering value carried in bits 16-31.
func (m Move) SortValue() int {
	return int(m>>16) - sortBias
}

// WithSortValue returns m with its sort field set to v (bits 0-15 unchanged).
func (m Move) WithSortValue(v int) Move {
	biased := v + sortBias
	if biased < 0 {
		biased = 0
	}
	if biased > 0xFFFF {
		biased = 0xFFFF
	}
	return m.Core() | Move(uint32(biased)<<16)
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m.IsNone() {
		return "0000"
	}

	s := m.From().String() + m.To().String()

	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight])
	}

	return s
}

// ParseMove parses a UCI format move string (e.g. "e2e4", "a7a8q"). The
// promotion letter is accepted in either case, matching the leniency of the
// engine this was adapted from.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n', 'N':
			promo = Knight
		case 'b', 'B':
			promo = Bishop
		case 'r', 'R':
			promo = Rook
		case 'q', 'Q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo), nil
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}

	pt := piece.Type()

	if pt == King && abs(int(to)-int(from)) == 2 {
		return NewCastling(from, to), nil
	}

	if pt == Pawn && to == pos.EnPassant && pos.EnPassant != NoSquare {
		return NewEnPassant(from, to), nil
	}

	return NewMove(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move (ignoring sort value).
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if Same(ml.moves[i], m) {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// SortDescending sorts the list by descending sort value (selection sort;
// the lists involved are short enough, ~40 moves, that this is cheaper than
// allocating for a library sort).
func (ml *MoveList) SortDescending() {
	n := ml.count
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if ml.moves[j].SortValue() > ml.moves[best].SortValue() {
				best = j
			}
		}
		if best != i {
			ml.Swap(i, best)
		}
	}
}

// UndoInfo stores information needed to undo a move.
type UndoInfo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	Checkers       Bitboard
	LastMove       Move
	LastCaptured   Piece
	Valid          bool // True if move was actually applied
}
