package board

import "testing"

// TestZobristKeysAreDistinct checks that regenerating the key tables under a
// different seed produces no internal collisions among the piece keys,
// which would silently merge two distinct positions in the transposition
// table.
func TestZobristKeysAreDistinct(t *testing.T) {
	defer generateZobristKeys(zobristSeed) // restore the package's real keys

	generateZobristKeys(0xD1B54A32D192ED03)

	seen := make(map[uint64]bool)
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for sq := A1; sq <= H8; sq++ {
				k := zobristPiece[c][pt][sq]
				if seen[k] {
					t.Fatalf("duplicate zobrist key for color=%d piece=%d square=%d", c, pt, sq)
				}
				seen[k] = true
			}
		}
	}
}

// TestZobristSideToMoveKeyNonZero guards against a degenerate seed producing
// an all-zero side-to-move key, which would make Position.Hash blind to whose turn
// it is.
func TestZobristSideToMoveKeyNonZero(t *testing.T) {
	if zobristSideToMove == 0 {
		t.Fatal("zobristSideToMove key is zero")
	}
}
