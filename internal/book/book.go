// Package book reads Polyglot opening books and answers position probes.
package book

import (
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"sort"

	"github.com/hailam/chessplay/internal/board"
)

// Entry is one candidate book move for a position.
type Entry struct {
	Move   board.Move
	Weight uint16
}

// BookEntry is kept as an alias of Entry for callers using the older name.
type BookEntry = Entry

// Book maps Polyglot position keys to their candidate moves. By default a
// probe deterministically returns the heaviest move; WeightedRandom makes
// it sample proportionally to the weights instead, for variety in play.
type Book struct {
	entries map[uint64][]Entry

	WeightedRandom bool
}

// New creates an empty book.
func New() *Book {
	return &Book{entries: make(map[uint64][]Entry)}
}

// LoadPolyglot loads a Polyglot format opening book from a file.
func LoadPolyglot(filename string) (*Book, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadPolyglotReader(file)
}

// LoadPolyglotReader loads a Polyglot book from a reader. Each record is
// 16 bytes, big-endian: position key, move, weight, and learn data (the
// last is ignored).
func LoadPolyglotReader(r io.Reader) (*Book, error) {
	b := New()

	var record [16]byte
	for {
		if _, err := io.ReadFull(r, record[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		key := binary.BigEndian.Uint64(record[0:8])
		move := decodePolyglotMove(binary.BigEndian.Uint16(record[8:10]))
		weight := binary.BigEndian.Uint16(record[10:12])

		if move != board.NoMove {
			b.entries[key] = append(b.entries[key], Entry{Move: move, Weight: weight})
		}
	}

	// Keep each candidate list sorted heaviest-first so deterministic
	// probes are O(1).
	for key := range b.entries {
		es := b.entries[key]
		sort.SliceStable(es, func(i, j int) bool { return es[i].Weight > es[j].Weight })
	}

	return b, nil
}

// decodePolyglotMove converts the Polyglot move encoding (to-square in
// bits 0-5, from-square in bits 6-11, promotion in bits 12-14) to a Move.
// Polyglot encodes castling as king-captures-rook; that is rewritten to
// the king's two-square path used everywhere else in this engine.
func decodePolyglotMove(data uint16) board.Move {
	from := board.NewSquare(int(data>>6&7), int(data>>9&7))
	to := board.NewSquare(int(data&7), int(data>>3&7))

	switch {
	case from == board.E1 && to == board.H1:
		to = board.G1
	case from == board.E1 && to == board.A1:
		to = board.C1
	case from == board.E8 && to == board.H8:
		to = board.G8
	case from == board.E8 && to == board.A8:
		to = board.C8
	}

	if promo := data >> 12 & 7; promo > 0 && promo <= 4 {
		promoTypes := [5]board.PieceType{0, board.Knight, board.Bishop, board.Rook, board.Queen}
		return board.NewPromotion(from, to, promoTypes[promo])
	}
	return board.NewMove(from, to)
}

// Probe returns a book move for pos, or false on a miss. The returned move
// is matched against the position's legal moves so special move flags
// (castling, en passant, promotion) come back correct.
func (b *Book) Probe(pos *board.Position) (board.Move, bool) {
	if b == nil {
		return board.NoMove, false
	}

	entries, ok := b.entries[pos.PolyglotHash()]
	if !ok || len(entries) == 0 {
		return board.NoMove, false
	}

	chosen := entries[0]
	if b.WeightedRandom {
		chosen = sampleByWeight(entries)
	}

	move := matchLegal(pos, chosen.Move)
	if move == board.NoMove {
		return board.NoMove, false
	}
	return move, true
}

// ProbeAll returns all book moves for the position, heaviest first.
func (b *Book) ProbeAll(pos *board.Position) []Entry {
	if b == nil {
		return nil
	}
	entries := b.entries[pos.PolyglotHash()]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// sampleByWeight picks an entry with probability proportional to its
// weight; zero-weight books fall back to the heaviest entry.
func sampleByWeight(entries []Entry) Entry {
	total := uint32(0)
	for _, e := range entries {
		total += uint32(e.Weight)
	}
	if total == 0 {
		return entries[0]
	}

	r := rand.Uint32() % total
	for _, e := range entries {
		if w := uint32(e.Weight); r < w {
			return e
		} else {
			r -= w
		}
	}
	return entries[0]
}

// matchLegal resolves a decoded book move against the position's legal
// moves, or NoMove if the book disagrees with the position.
func matchLegal(pos *board.Position, move board.Move) board.Move {
	legal := pos.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		lm := legal.Get(i)
		if lm.From() != move.From() || lm.To() != move.To() {
			continue
		}
		if lm.IsPromotion() != move.IsPromotion() {
			continue
		}
		if lm.IsPromotion() && lm.Promotion() != move.Promotion() {
			continue
		}
		return lm
	}
	return board.NoMove
}

// Size returns the number of unique positions in the book.
func (b *Book) Size() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
