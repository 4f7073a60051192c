package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTNone       TTFlag = iota // empty slot, no bound recorded
	TTExact                    // exact score
	TTLowerBound               // failed high (beta cutoff)
	TTUpperBound               // failed low
)

// TTEntry represents an entry in the transposition table (spec §4.F: 16
// bytes per slot in the reference layout; the fields below also total 16
// bytes).
type TTEntry struct {
	Key        uint32     // upper 32 bits of the zobrist key, for verification
	BestMove   board.Move // best move found, or NoMove
	Score      int16      // search score, mate-distance normalized (see AdjustScore*)
	StaticEval int16      // cached static evaluation at this node
	Depth      int8       // depth this entry was searched to
	Flag       TTFlag     // bound type
	MateThreat bool       // set when a null-move search revealed a mate threat
	Age        uint8      // search generation, for replacement
}

// TranspositionTable is a hash table for storing search results. Size 0
// disables it: Probe always misses and Store is a no-op (spec §4.F).
type TranspositionTable struct {
	entries []TTEntry
	size    uint64
	mask    uint64
	age     uint8

	hits   uint64
	probes uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB <= 0 {
		return &TranspositionTable{}
	}

	entrySize := uint64(16)
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}

	return &TranspositionTable{
		entries: make([]TTEntry, numEntries),
		size:    numEntries,
		mask:    numEntries - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up a position in the transposition table (T1: returns a slot
// whose stored key equals k, or no match).
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	if tt.size == 0 {
		return TTEntry{}, false
	}

	tt.probes++

	idx := hash & tt.mask
	entry := tt.entries[idx]

	if entry.Flag != TTNone && entry.Key == uint32(hash>>32) {
		tt.hits++
		return entry, true
	}

	return TTEntry{}, false
}

// Store saves a search result in the transposition table. Replacement
// prefers an empty slot, then an older-generation slot, then a
// shallower-depth slot, matching spec §4.F's ordering.
func (tt *TranspositionTable) Store(hash uint64, depth int, bestMove board.Move, score, staticEval int, flag TTFlag, mateThreat bool) {
	if tt.size == 0 {
		return
	}

	idx := hash & tt.mask
	entry := &tt.entries[idx]

	replace := entry.Flag == TTNone ||
		entry.Age != tt.age ||
		depth >= int(entry.Depth)

	if !replace {
		return
	}

	entry.Key = uint32(hash >> 32)
	entry.BestMove = bestMove
	entry.Score = int16(score)
	entry.StaticEval = int16(staticEval)
	entry.Depth = int8(depth)
	entry.Flag = flag
	entry.MateThreat = mateThreat
	entry.Age = tt.age
}

// NewSearch increments the age counter at the start of a new search
// (ageEntries in spec §4.F); stale entries remain probeable but become
// replacement candidates.
func (tt *TranspositionTable) NewSearch() {
	tt.age++
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.age = 0
	tt.hits = 0
	tt.probes = 0
}

// Resize rebuilds the table at a new size in MB. The caller must ensure no
// search is active (UCI "resize hash during search" is rejected upstream).
func (tt *TranspositionTable) Resize(sizeMB int) {
	*tt = *NewTranspositionTable(sizeMB)
}

// HashFull returns a permille occupancy estimate, sampling the first N
// buckets (spec §4.F hashFull).
func (tt *TranspositionTable) HashFull() int {
	if tt.size == 0 {
		return 0
	}

	sampleSize := 1000
	if uint64(sampleSize) > tt.size {
		sampleSize = int(tt.size)
	}

	used := 0
	for i := 0; i < sampleSize; i++ {
		if tt.entries[i].Flag != TTNone && tt.entries[i].Age == tt.age {
			used++
		}
	}

	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Size returns the number of entries in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// mateThreshold marks the boundary above which a score is considered a
// forced-mate score (spec §9: CHECKMATE - MAX_DEPTH - 1).
const mateThreshold = MateScore - MaxPly - 1

// AdjustScoreFromTT converts a stored mate score (distance from the TT
// entry's original node) back to a distance from the current root (P8).
func AdjustScoreFromTT(score int, ply int) int {
	if score == 0 {
		return 0
	}
	if score > mateThreshold {
		return score - ply
	}
	if score < -mateThreshold {
		return score + ply
	}
	return score
}

// AdjustScoreToTT normalizes a mate score to be independent of where in the
// tree it was found before storing it (spec §4.F, §9).
func AdjustScoreToTT(score int, ply int) int {
	if score == 0 {
		return 0
	}
	if score > mateThreshold {
		return score + ply
	}
	if score < -mateThreshold {
		return score - ply
	}
	return score
}

// IsMateScore reports whether score represents a forced mate.
func IsMateScore(score int) bool {
	return score > mateThreshold || score < -mateThreshold
}
