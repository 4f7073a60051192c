// Package engine implements the search: iterative-deepening negamax with
// the classical pruning bundle, a shared transposition table, and a small
// tapered evaluator.
package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// Piece values in centipawns, matching board.PieceValue.
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 2000
)

var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

// Evaluation term weights. The evaluator is deliberately small: material
// and the incrementally maintained piece-square accumulators carry most of
// the signal, with pawn structure, mobility, and king safety layered on
// top. Everything is tapered between midgame and endgame by the position's
// phase counter.
const (
	tempoBonus = 10

	bishopPairMg = 30
	bishopPairEg = 45

	rookOpenFileMg     = 25
	rookOpenFileEg     = 15
	rookSemiOpenFileMg = 12
	rookSemiOpenFileEg = 8

	isolatedPawnMg = -12
	isolatedPawnEg = -16
	doubledPawnMg  = -8
	doubledPawnEg  = -14

	shieldPawnBonus  = 8
	openKingFileCost = 20
)

// Passed-pawn bonus by relative rank.
var passedPawnMg = [8]int{0, 5, 10, 20, 35, 60, 100, 0}
var passedPawnEg = [8]int{0, 10, 20, 40, 70, 120, 190, 0}

// Mobility: per-square bonus for each piece type beyond a baseline count.
var mobilityMg = [6]int{0, 4, 4, 2, 1, 0}
var mobilityEg = [6]int{0, 3, 4, 3, 2, 0}
var mobilityBase = [6]int{0, 3, 5, 6, 9, 0}

// King-zone attack weight per attacking piece type, scaled superlinearly
// by the number of attackers.
var kingAttackWeight = [6]int{0, 20, 20, 30, 50, 0}
var attackerScale = [8]int{0, 25, 60, 90, 100, 100, 100, 100}

// Evaluate returns the static evaluation of pos in centipawns from the
// side-to-move's perspective, without a pawn cache.
func Evaluate(pos *board.Position) int {
	return evaluate(pos, nil)
}

// EvaluateWithPawnTable is Evaluate with the pawn-structure terms cached
// under pos.PawnKey, the evaluator's one side channel.
func EvaluateWithPawnTable(pos *board.Position, pt *PawnTable) int {
	return evaluate(pos, pt)
}

func evaluate(pos *board.Position, pt *PawnTable) int {
	phase := pos.Phase
	if phase > board.MaxPhase {
		phase = board.MaxPhase
	}

	// Material and piece-square tables come straight off the position's
	// incremental accumulators.
	score := pos.Material[board.White] - pos.Material[board.Black]
	score += pos.PSQ()

	var pawnMg, pawnEg int
	if pt != nil {
		if mg, eg, ok := pt.Probe(pos.PawnKey); ok {
			pawnMg, pawnEg = mg, eg
		} else {
			pawnMg, pawnEg = pawnStructure(pos)
			pt.Store(pos.PawnKey, pawnMg, pawnEg)
		}
	} else {
		pawnMg, pawnEg = pawnStructure(pos)
	}

	mg, eg := pawnMg, pawnEg

	pm, pe := passedPawns(pos)
	mg += pm
	eg += pe

	mm, me := mobility(pos)
	mg += mm
	eg += me

	mg += kingSafety(pos, board.White) - kingSafety(pos, board.Black)

	bm, be := bishopPair(pos)
	mg += bm
	eg += be

	rm, re := rookFiles(pos)
	mg += rm
	eg += re

	score += (mg*phase + eg*(board.MaxPhase-phase)) / board.MaxPhase

	if pos.SideToMove == board.Black {
		score = -score
	}
	return score + tempoBonus
}

// pawnStructure scores isolated and doubled pawns, white-relative. Only
// terms derivable from the pawn bitboards alone may live here: the result
// is cached under the pawn key.
func pawnStructure(pos *board.Position) (mg, eg int) {
	for c := board.White; c <= board.Black; c++ {
		pawns := pos.Pieces[c][board.Pawn]
		sign := 1
		if c == board.Black {
			sign = -1
		}

		for f := 0; f < 8; f++ {
			onFile := (pawns & board.FileMask[f]).PopCount()
			if onFile == 0 {
				continue
			}

			if onFile > 1 {
				mg += sign * doubledPawnMg * (onFile - 1)
				eg += sign * doubledPawnEg * (onFile - 1)
			}

			var neighbors board.Bitboard
			if f > 0 {
				neighbors |= board.FileMask[f-1]
			}
			if f < 7 {
				neighbors |= board.FileMask[f+1]
			}
			if pawns&neighbors == 0 {
				mg += sign * isolatedPawnMg * onFile
				eg += sign * isolatedPawnEg * onFile
			}
		}
	}
	return mg, eg
}

// passedPawns scores pawns with no enemy pawn ahead on their own or
// adjacent files, by relative rank. Not cacheable under the pawn key
// because the endgame term consults the kings.
func passedPawns(pos *board.Position) (mg, eg int) {
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		them := c.Other()
		enemyPawns := pos.Pieces[them][board.Pawn]

		pawns := pos.Pieces[c][board.Pawn]
		for pawns != 0 {
			sq := pawns.PopLSB()
			if board.PassedPawnMask(sq, c)&enemyPawns != 0 {
				continue
			}
			rr := sq.RelativeRank(c)
			mg += sign * passedPawnMg[rr]
			eg += sign * passedPawnEg[rr]

			// A passer is worth more in the endgame when our king shepherds
			// it and the enemy king is far away.
			eg += sign * 5 * (sq.Distance(pos.KingSquare[them]) - sq.Distance(pos.KingSquare[c]))
		}
	}
	return mg, eg
}

// mobility counts attacked squares per piece beyond a per-type baseline,
// excluding squares occupied by own pieces.
func mobility(pos *board.Position) (mg, eg int) {
	occ := pos.AllOccupied

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		safe := ^pos.Occupied[c]

		for knights := pos.Pieces[c][board.Knight]; knights != 0; {
			sq := knights.PopLSB()
			n := (board.KnightAttacks(sq) & safe).PopCount() - mobilityBase[board.Knight]
			mg += sign * n * mobilityMg[board.Knight]
			eg += sign * n * mobilityEg[board.Knight]
		}
		for bishops := pos.Pieces[c][board.Bishop]; bishops != 0; {
			sq := bishops.PopLSB()
			n := (board.BishopAttacks(sq, occ) & safe).PopCount() - mobilityBase[board.Bishop]
			mg += sign * n * mobilityMg[board.Bishop]
			eg += sign * n * mobilityEg[board.Bishop]
		}
		for rooks := pos.Pieces[c][board.Rook]; rooks != 0; {
			sq := rooks.PopLSB()
			n := (board.RookAttacks(sq, occ) & safe).PopCount() - mobilityBase[board.Rook]
			mg += sign * n * mobilityMg[board.Rook]
			eg += sign * n * mobilityEg[board.Rook]
		}
		for queens := pos.Pieces[c][board.Queen]; queens != 0; {
			sq := queens.PopLSB()
			n := (board.QueenAttacks(sq, occ) & safe).PopCount() - mobilityBase[board.Queen]
			mg += sign * n * mobilityMg[board.Queen]
			eg += sign * n * mobilityEg[board.Queen]
		}
	}
	return mg, eg
}

// kingSafety scores the pawn shield around c's king, penalizes open files
// through it, and charges for enemy pieces bearing on the king zone.
// Returns the (midgame) score from c's perspective.
func kingSafety(pos *board.Position, c board.Color) int {
	ksq := pos.KingSquare[c]
	them := c.Other()
	score := 0

	shieldZone := board.KingAttacks(ksq)
	if c == board.White {
		shieldZone |= shieldZone.North()
	} else {
		shieldZone |= shieldZone.South()
	}
	score += shieldPawnBonus * (pos.Pieces[c][board.Pawn] & shieldZone).PopCount()

	kf := ksq.File()
	for f := kf - 1; f <= kf+1; f++ {
		if f < 0 || f > 7 {
			continue
		}
		if (pos.Pieces[c][board.Pawn]|pos.Pieces[them][board.Pawn])&board.FileMask[f] == 0 {
			score -= openKingFileCost
		}
	}

	zone := board.KingAttacks(ksq) | board.SquareBB(ksq)
	occ := pos.AllOccupied
	attackers := 0
	weight := 0

	for knights := pos.Pieces[them][board.Knight]; knights != 0; {
		sq := knights.PopLSB()
		if board.KnightAttacks(sq)&zone != 0 {
			attackers++
			weight += kingAttackWeight[board.Knight]
		}
	}
	for bishops := pos.Pieces[them][board.Bishop]; bishops != 0; {
		sq := bishops.PopLSB()
		if board.BishopAttacks(sq, occ)&zone != 0 {
			attackers++
			weight += kingAttackWeight[board.Bishop]
		}
	}
	for rooks := pos.Pieces[them][board.Rook]; rooks != 0; {
		sq := rooks.PopLSB()
		if board.RookAttacks(sq, occ)&zone != 0 {
			attackers++
			weight += kingAttackWeight[board.Rook]
		}
	}
	for queens := pos.Pieces[them][board.Queen]; queens != 0; {
		sq := queens.PopLSB()
		if board.QueenAttacks(sq, occ)&zone != 0 {
			attackers++
			weight += kingAttackWeight[board.Queen]
		}
	}

	if attackers > 7 {
		attackers = 7
	}
	score -= weight * attackerScale[attackers] / 100

	return score
}

func bishopPair(pos *board.Position) (mg, eg int) {
	if pos.Pieces[board.White][board.Bishop].PopCount() >= 2 {
		mg += bishopPairMg
		eg += bishopPairEg
	}
	if pos.Pieces[board.Black][board.Bishop].PopCount() >= 2 {
		mg -= bishopPairMg
		eg -= bishopPairEg
	}
	return mg, eg
}

// rookFiles rewards rooks on open files (no pawns) and semi-open files
// (no own pawns).
func rookFiles(pos *board.Position) (mg, eg int) {
	allPawns := pos.Pieces[board.White][board.Pawn] | pos.Pieces[board.Black][board.Pawn]

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		ownPawns := pos.Pieces[c][board.Pawn]

		rooks := pos.Pieces[c][board.Rook]
		for rooks != 0 {
			sq := rooks.PopLSB()
			file := board.FileMask[sq.File()]
			if allPawns&file == 0 {
				mg += sign * rookOpenFileMg
				eg += sign * rookOpenFileEg
			} else if ownPawns&file == 0 {
				mg += sign * rookSemiOpenFileMg
				eg += sign * rookSemiOpenFileEg
			}
		}
	}
	return mg, eg
}

// SEE statically evaluates the material outcome of the capture m by
// simulating the least-valuable-attacker exchange on the destination
// square, including x-ray attackers revealed as pieces are removed. The
// position is not modified.
func SEE(pos *board.Position, m board.Move) int {
	to := m.To()
	from := m.From()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var gain [32]int
	depth := 0

	occ := pos.AllOccupied
	var victimValue int
	if m.IsEnPassant() {
		victimValue = PawnValue
		var capSq board.Square
		if pos.SideToMove == board.White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		occ &^= board.SquareBB(capSq)
	} else if captured := pos.PieceAt(to); captured != board.NoPiece {
		victimValue = pieceValues[captured.Type()]
	}

	gain[0] = victimValue
	occ &^= board.SquareBB(from)
	side := pos.SideToMove.Other()
	onSquare := pieceValues[attacker.Type()]

	for {
		sq, pt := leastValuableAttacker(pos, to, side, occ)
		if sq == board.NoSquare {
			break
		}
		depth++
		gain[depth] = onSquare - gain[depth-1]
		// Neither side is forced to continue a losing exchange; once both
		// the current and previous gains are losing the rest is noise.
		if gain[depth] < 0 && gain[depth-1] > 0 {
			break
		}
		onSquare = pieceValues[pt]
		occ &^= board.SquareBB(sq)
		side = side.Other()
	}

	// Minimax the gain array back to the root.
	for depth > 0 {
		if -gain[depth] < gain[depth-1] {
			gain[depth-1] = -gain[depth]
		}
		depth--
	}
	return gain[0]
}

// leastValuableAttacker finds the cheapest piece of side attacking target
// under the given occupancy (pieces already exchanged are cleared from
// occ). Removing sliders from occ reveals x-ray attackers automatically.
func leastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occ board.Bitboard) (board.Square, board.PieceType) {
	if bb := board.PawnAttacks(target, side.Other()) & pos.Pieces[side][board.Pawn] & occ; bb != 0 {
		return bb.LSB(), board.Pawn
	}
	if bb := board.KnightAttacks(target) & pos.Pieces[side][board.Knight] & occ; bb != 0 {
		return bb.LSB(), board.Knight
	}
	if bb := board.BishopAttacks(target, occ) & pos.Pieces[side][board.Bishop] & occ; bb != 0 {
		return bb.LSB(), board.Bishop
	}
	if bb := board.RookAttacks(target, occ) & pos.Pieces[side][board.Rook] & occ; bb != 0 {
		return bb.LSB(), board.Rook
	}
	if bb := board.QueenAttacks(target, occ) & pos.Pieces[side][board.Queen] & occ; bb != 0 {
		return bb.LSB(), board.Queen
	}
	if bb := board.KingAttacks(target) & pos.Pieces[side][board.King] & occ; bb != 0 {
		return bb.LSB(), board.King
	}
	return board.NoSquare, board.Pawn
}
