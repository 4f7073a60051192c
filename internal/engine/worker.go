package engine

import (
	"sync/atomic"

	"github.com/hailam/chessplay/internal/board"
)

// Pruning/reduction feature toggles (spec §6 "Use X" setoption knobs). One
// SearchConfig is shared by pointer between the Engine and its single
// worker (spec §5: no Lazy-SMP); the UCI layer flips these fields directly
// through Engine.Config().
type SearchConfig struct {
	UseAlphaBeta  bool
	UsePVS        bool
	UseAspiration bool

	UseHash             bool
	UseHashValue        bool
	UseHashPvMove       bool
	UseHashQuiescence   bool
	UseHashEval         bool
	UseKillerMoves      bool
	UseHistoryMoves     bool
	UseHistoryCounter   bool
	UseMateDistPruning  bool
	UseQuiescence       bool
	UseQuiescenceStandpat bool
	UseQuiescenceSEE    bool
	UseRazoring         bool
	RazorMargin         int
	UseReverseFutility  bool
	UseNullMove         bool
	NullMoveDepth       int
	NullDepthReduction  int
	UseIID              bool
	IIDMoveDepth        int
	IIDDepthReduction   int
}

// DefaultSearchConfig returns the engine's out-of-the-box pruning
// configuration, matching the classical bundle described in spec §4.G.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		UseAlphaBeta:  true,
		UsePVS:        true,
		UseAspiration: true,

		UseHash:             true,
		UseHashValue:        true,
		UseHashPvMove:       true,
		UseHashQuiescence:   true,
		UseHashEval:         true,
		UseKillerMoves:      true,
		UseHistoryMoves:     true,
		UseHistoryCounter:   true,
		UseMateDistPruning:  true,
		UseQuiescence:       true,
		UseQuiescenceStandpat: true,
		UseQuiescenceSEE:    false,
		UseRazoring:         true,
		RazorMargin:         300,
		UseReverseFutility:  true,
		UseNullMove:         true,
		NullMoveDepth:       3,
		NullDepthReduction:  3,
		UseIID:              true,
		IIDMoveDepth:        5,
		IIDDepthReduction:   2,
	}
}

// SearchStats carries the counters spec §4.G says must be exposed to the
// observer for a single search.
type SearchStats struct {
	Nodes             uint64
	LeafEvals         uint64
	BetaCuts          uint64
	FirstMoveBetaCuts uint64
	TTHits            uint64
	TTMisses          uint64
	TTCuts            uint64
	TTNoCuts          uint64
	PVSResearches     uint64
	NullMoveCuts      uint64
	Razorings         uint64
	MateDistPrunings  uint64
	CheckExtensions   uint64
	IIDSearches       uint64
	IIDMoves          uint64
	Depth             int
	SelDepth          int
	CurrentRootMove   board.Move
	CurrentRootIndex  int
	CurrentVariation  []board.Move
}

// Worker is the single search worker spec §5 describes: one recursive,
// synchronous negamax/PVS search over a dedicated Position copy, consulting
// a transposition table shared with the driver and owning its own move
// ordering and repetition-detection state.
type Worker struct {
	pos     *board.Position
	orderer *MoveOrderer
	tt      *TranspositionTable
	pawnTable *PawnTable
	corrHistory *CorrectionHistory
	cfg     *SearchConfig

	nodes    uint64
	stopFlag *atomic.Bool
	nodeLimit uint64

	pv PVTable

	undoStack [MaxPly]board.UndoInfo

	// posHistoryBuffer tracks zobrist hashes since the start of the game
	// (rootPosHashes) plus every ply made so far in the current search, so
	// isDraw can detect repetition without walking Position's own history.
	posHistoryBuffer [MaxPly + 1024]uint64
	posHistoryLen    int
	rootPosHashes    []uint64

	searchMoves []board.Move

	stats SearchStats
}

// NewWorker creates a search worker bound to the given shared resources.
func NewWorker(tt *TranspositionTable, pawnTable *PawnTable, cfg *SearchConfig, stopFlag *atomic.Bool) *Worker {
	return &Worker{
		orderer:     NewMoveOrderer(),
		tt:          tt,
		pawnTable:   pawnTable,
		corrHistory: NewCorrectionHistory(),
		cfg:         cfg,
		stopFlag:    stopFlag,
	}
}

// Reset prepares the worker for a new search.
func (w *Worker) Reset() {
	w.nodes = 0
	w.nodeLimit = 0
	w.orderer.Clear()
	w.stats = SearchStats{}
}

// SetNodeLimit bounds the number of nodes this worker will search before
// the stop flag is raised internally (spec P12: nodesVisited obedience).
func (w *Worker) SetNodeLimit(n uint64) {
	w.nodeLimit = n
}

// SetRootHistory sets the game's position history for repetition detection.
func (w *Worker) SetRootHistory(hashes []uint64) {
	w.rootPosHashes = make([]uint64, len(hashes))
	copy(w.rootPosHashes, hashes)
}

// SetSearchMoves restricts the root to the given candidates ("go
// searchmoves"). An empty slice lifts the restriction.
func (w *Worker) SetSearchMoves(moves []board.Move) {
	w.searchMoves = moves
}

// InitSearch binds the worker to the position it will search from. pos must
// be a dedicated copy owned by this search (spec §5: not aliased).
func (w *Worker) InitSearch(pos *board.Position) {
	w.pos = pos

	rootLen := len(w.rootPosHashes)
	if rootLen > 1024 {
		rootLen = 1024
		copy(w.posHistoryBuffer[:rootLen], w.rootPosHashes[len(w.rootPosHashes)-1024:])
	} else {
		copy(w.posHistoryBuffer[:rootLen], w.rootPosHashes)
	}
	w.posHistoryLen = rootLen
}

// Nodes returns the number of nodes searched so far.
func (w *Worker) Nodes() uint64 {
	return w.nodes
}

// Stats returns a copy of the current search statistics.
func (w *Worker) Stats() SearchStats {
	s := w.stats
	s.Nodes = w.nodes
	return s
}

// GetPV returns the principal variation from the last search.
func (w *Worker) GetPV() []board.Move {
	pv := make([]board.Move, w.pv.length[0])
	for i := 0; i < w.pv.length[0]; i++ {
		pv[i] = w.pv.moves[0][i]
	}
	return pv
}

func (w *Worker) stopped() bool {
	return w.stopFlag.Load()
}

func (w *Worker) isRootMoveAllowed(m board.Move) bool {
	if len(w.searchMoves) == 0 {
		return true
	}
	for _, allowed := range w.searchMoves {
		if board.Same(m, allowed) {
			return true
		}
	}
	return false
}

// evaluate returns the static evaluation from the side-to-move's
// perspective, adjusted by any correction-history term (spec §4.H: the
// evaluator interface, enriched here by the teacher's pawn-hash cache).
func (w *Worker) evaluate() int {
	w.stats.LeafEvals++
	score := EvaluateWithPawnTable(w.pos, w.pawnTable)
	return score + w.corrHistory.Get(w.pos)
}

// isDraw reports 50-move, insufficient-material, and repetition draws.
func (w *Worker) isDraw() bool {
	if w.pos.HalfMoveClock >= 100 {
		return true
	}
	if w.pos.IsInsufficientMaterial() {
		return true
	}

	if w.posHistoryLen > 0 {
		hash := w.pos.Hash
		count := 0
		for i := 0; i < w.posHistoryLen; i++ {
			if w.posHistoryBuffer[i] == hash {
				count++
				if count >= 2 {
					return true
				}
			}
		}
	}

	return false
}

func (w *Worker) pushHistory() {
	if w.posHistoryLen < len(w.posHistoryBuffer) {
		w.posHistoryBuffer[w.posHistoryLen] = w.pos.Hash
	}
	w.posHistoryLen++
}

func (w *Worker) popHistory() {
	w.posHistoryLen--
}

// SearchDepth runs one iterative-deepening iteration at the given depth and
// window, returning the root's best move and score. Aspiration widening, if
// enabled, is driven by the caller (Engine.iterativeDeepening).
func (w *Worker) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	w.pv.length[0] = 0
	w.stats.Depth = depth
	score := w.search(depth, 0, alpha, beta, true, true, board.NoMove)

	var bestMove board.Move
	if w.pv.length[0] > 0 {
		bestMove = w.pv.moves[0][0]
	}
	return bestMove, score
}

// search implements negamax with alpha-beta, PVS, and the classical
// pruning/reduction bundle from spec §4.G. ply 0 is the root; the same code
// path handles every depth, with root-only behavior (nothing here needs
// special-casing beyond the guards already keyed on ply > 0).
func (w *Worker) search(depth, ply int, alpha, beta int, isPv, doNull bool, prevMove board.Move) int {
	if ply >= MaxPly-1 {
		return w.evaluate()
	}

	if w.nodeLimit > 0 && w.nodes >= w.nodeLimit {
		w.stopFlag.Store(true)
		return abortScore
	}
	if w.nodes&2047 == 0 && w.stopped() {
		return abortScore
	}

	w.nodes++
	w.pv.length[ply] = ply
	if ply > w.stats.SelDepth {
		w.stats.SelDepth = ply
	}

	if ply > 0 && w.isDraw() {
		return 0
	}

	// Mate-distance pruning (spec §4.G, §9).
	if w.cfg.UseMateDistPruning {
		mdAlpha := -MateScore + ply
		mdBeta := MateScore - ply
		if alpha < mdAlpha {
			alpha = mdAlpha
		}
		if beta > mdBeta {
			beta = mdBeta
		}
		if alpha >= beta {
			w.stats.MateDistPrunings++
			return alpha
		}
	}

	if depth <= 0 {
		return w.qsearch(ply, alpha, beta, isPv)
	}

	var ttMove board.Move
	var ttStaticEval int
	haveTTStaticEval := false

	if w.cfg.UseHash {
		if entry, found := w.tt.Probe(w.pos.Hash); found {
			w.stats.TTHits++
			if w.cfg.UseHashPvMove {
				ttMove = entry.BestMove
			}
			if entry.Flag != TTNone {
				ttStaticEval = int(entry.StaticEval)
				haveTTStaticEval = true
			}

			if w.cfg.UseHashValue && int(entry.Depth) >= depth && !isPv {
				score := AdjustScoreFromTT(int(entry.Score), ply)
				switch entry.Flag {
				case TTExact:
					w.stats.TTCuts++
					return score
				case TTLowerBound:
					if score >= beta {
						w.stats.TTCuts++
						return score
					}
				case TTUpperBound:
					if score <= alpha {
						w.stats.TTCuts++
						return score
					}
				}
			}
			w.stats.TTNoCuts++
		} else {
			w.stats.TTMisses++
		}
	}

	inCheck := w.pos.InCheck()

	var staticEval int
	if inCheck {
		staticEval = -MateScore
	} else if w.cfg.UseHashEval && haveTTStaticEval {
		staticEval = ttStaticEval
	} else {
		staticEval = w.evaluate()
	}

	// Razoring: at depth 1, drop straight into quiescence when hopelessly
	// behind (spec §4.G, §9).
	if w.cfg.UseRazoring && depth == 1 && !inCheck && !isPv && staticEval+w.cfg.RazorMargin <= alpha {
		w.stats.Razorings++
		score := w.qsearch(ply, alpha, beta, false)
		if score <= alpha {
			return score
		}
	}

	// Reverse futility pruning: shallow depth, eval far above beta.
	if w.cfg.UseReverseFutility && depth <= 3 && !isPv && !inCheck && doNull {
		margin := 120 * depth
		if staticEval-margin >= beta {
			return staticEval - margin
		}
	}

	// Null-move pruning. A pass that still fails high proves the position
	// is good enough to cut; a pass that gets mated exposes a mate threat,
	// which both blocks the cut and is recorded in the TT entry.
	mateThreat := false
	if w.cfg.UseNullMove && doNull && !isPv && depth >= w.cfg.NullMoveDepth &&
		!inCheck && w.pos.HasNonPawnMaterial() {

		reduction := w.cfg.NullDepthReduction
		if depth > 8 || (depth > 6 && w.pos.Phase >= 3) {
			reduction++
		}
		newDepth := depth - 1 - reduction
		if newDepth < 0 {
			newDepth = 0
		}

		nullUndo := w.pos.MakeNullMove()
		w.pushHistory()
		nullScore := -w.search(newDepth, ply+1, -beta, -beta+1, false, false, board.NoMove)
		w.popHistory()
		w.pos.UnmakeNullMove(nullUndo)

		if w.stopped() {
			return abortScore
		}

		if nullScore < -mateThreshold {
			mateThreat = true
		} else if nullScore >= beta {
			if nullScore > mateThreshold {
				nullScore = beta
			}
			w.stats.NullMoveCuts++
			if w.cfg.UseHash {
				w.tt.Store(w.pos.Hash, depth, board.NoMove, AdjustScoreToTT(nullScore, ply), staticEval, TTLowerBound, false)
			}
			return nullScore
		}
	}

	// Internal iterative deepening: find a move to order first when the TT
	// has none.
	if w.cfg.UseIID && isPv && doNull && ttMove == board.NoMove && depth >= w.cfg.IIDMoveDepth {
		w.stats.IIDSearches++
		reduced := depth - w.cfg.IIDDepthReduction
		if reduced < 1 {
			reduced = 1
		}
		w.search(reduced, ply, alpha, beta, true, true, prevMove)
		if w.pv.length[ply] > ply {
			ttMove = w.pv.moves[ply][ply]
			w.stats.IIDMoves++
		}
	}

	// Pseudo-legal generation: while in check this is already restricted to
	// evasions, and each move is vetted by WasLegalMove after it is made.
	moves := w.pos.GeneratePseudoLegalMoves()

	w.orderer.ScoreMovesWithCounter(w.pos, moves, ply, ttMove, prevMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	legalCount := 0

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, i)
		move := moves.Get(i).Core()

		if ply == 0 && !w.isRootMoveAllowed(move) {
			continue
		}

		gives := w.pos.GivesCheck(move)

		w.undoStack[ply] = w.pos.MakeMove(move)
		if !w.undoStack[ply].Valid || !w.pos.WasLegalMove() {
			if w.undoStack[ply].Valid {
				w.pos.UnmakeMove(move, w.undoStack[ply])
			}
			continue
		}
		w.pushHistory()
		legalCount++

		if ply == 0 {
			w.stats.CurrentRootMove = move
			w.stats.CurrentRootIndex = legalCount
		}

		newDepth := depth - 1
		// Check extension: a move that gives check searches one ply deeper,
		// capped so it cannot runaway the search (spec §9 reserved hook).
		if gives && newDepth < MaxPly-ply-2 {
			newDepth++
			w.stats.CheckExtensions++
		}

		var score int
		if !w.cfg.UsePVS || legalCount == 1 {
			score = -w.search(newDepth, ply+1, -beta, -alpha, isPv, true, move)
		} else {
			score = -w.search(newDepth, ply+1, -alpha-1, -alpha, false, true, move)
			if score > alpha && score < beta && !w.stopped() {
				w.stats.PVSResearches++
				score = -w.search(newDepth, ply+1, -beta, -alpha, true, true, move)
			}
		}

		w.popHistory()
		w.pos.UnmakeMove(move, w.undoStack[ply])

		if w.stopped() {
			return abortScore
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				w.pv.moves[ply][ply] = move
				for j := ply + 1; j < w.pv.length[ply+1]; j++ {
					w.pv.moves[ply][j] = w.pv.moves[ply+1][j]
				}
				w.pv.length[ply] = w.pv.length[ply+1]
			}
		}

		if score >= beta && w.cfg.UseAlphaBeta {
			w.stats.BetaCuts++
			if legalCount == 1 {
				w.stats.FirstMoveBetaCuts++
			}

			if w.cfg.UseHash {
				w.tt.Store(w.pos.Hash, depth, bestMove, AdjustScoreToTT(score, ply), staticEval, TTLowerBound, mateThreat)
			}

			if move.IsCapture(w.pos) {
				w.updateCaptureHistory(move, depth, true)
			} else {
				if w.cfg.UseKillerMoves {
					w.orderer.UpdateKillers(move, ply)
				}
				if w.cfg.UseHistoryMoves {
					w.orderer.UpdateHistory(move, depth, true)
				}
				if w.cfg.UseHistoryCounter {
					w.orderer.UpdateCounterMove(prevMove, move, w.pos)
					w.updateCountermoveHistory(prevMove, move, depth, true)
				}
			}

			return score
		}

		if !move.IsCapture(w.pos) && move != bestMove && w.cfg.UseHistoryMoves {
			w.orderer.UpdateHistory(move, depth-1, false)
		}
	}

	if legalCount == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	if w.cfg.UseHash {
		w.tt.Store(w.pos.Hash, depth, bestMove, AdjustScoreToTT(bestScore, ply), staticEval, flag, mateThreat)
	}

	if ply == 0 {
		w.corrHistory.Update(w.pos, bestScore, staticEval, depth)
	}

	return bestScore
}

// qsearch extends the search with captures (and, while in check, evasions)
// until the position is quiet, to avoid the horizon effect (spec §4.G).
func (w *Worker) qsearch(ply int, alpha, beta int, isPv bool) int {
	if ply >= MaxPly-1 {
		return w.evaluate()
	}

	if !w.cfg.UseQuiescence {
		return w.evaluate()
	}

	if w.nodeLimit > 0 && w.nodes >= w.nodeLimit {
		w.stopFlag.Store(true)
		return abortScore
	}
	if w.nodes&2047 == 0 && w.stopped() {
		return abortScore
	}
	w.nodes++
	w.pv.length[ply] = ply
	if ply > w.stats.SelDepth {
		w.stats.SelDepth = ply
	}

	if w.cfg.UseMateDistPruning {
		mdAlpha := -MateScore + ply
		mdBeta := MateScore - ply
		if alpha < mdAlpha {
			alpha = mdAlpha
		}
		if beta > mdBeta {
			beta = mdBeta
		}
		if alpha >= beta {
			return alpha
		}
	}

	inCheck := w.pos.InCheck()

	var ttMove board.Move
	if w.cfg.UseHash && w.cfg.UseHashQuiescence {
		if entry, found := w.tt.Probe(w.pos.Hash); found {
			ttMove = entry.BestMove
			if w.cfg.UseHashValue {
				score := AdjustScoreFromTT(int(entry.Score), ply)
				switch entry.Flag {
				case TTExact:
					return score
				case TTLowerBound:
					if score >= beta {
						return score
					}
				case TTUpperBound:
					if score <= alpha {
						return score
					}
				}
			}
		}
	}

	bestScore := -Infinity
	if !inCheck {
		standPat := w.evaluate()
		if w.cfg.UseQuiescenceStandpat {
			if standPat >= beta {
				if w.cfg.UseHash {
					w.tt.Store(w.pos.Hash, 0, board.NoMove, AdjustScoreToTT(standPat, ply), standPat, TTUpperBound, false)
				}
				return standPat
			}
			if standPat > alpha {
				alpha = standPat
			}
		}
		bestScore = standPat
	}

	var moves *board.MoveList
	if inCheck {
		moves = w.pos.GenerateLegalMoves()
	} else {
		moves = w.pos.GenerateCaptures()
	}

	w.orderer.ScoreMoves(w.pos, moves, ply, ttMove)
	moves.SortDescending()

	searched := 0
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i).Core()

		if !inCheck && !w.isGoodCapture(move) {
			continue
		}

		undo := w.pos.MakeMove(move)
		if !undo.Valid {
			w.pos.UnmakeMove(move, undo)
			continue
		}
		w.pushHistory()
		searched++

		score := -w.qsearch(ply+1, -beta, -alpha, isPv)

		w.popHistory()
		w.pos.UnmakeMove(move, undo)

		if w.stopped() {
			return abortScore
		}

		if score > bestScore {
			bestScore = score
			if score > alpha {
				alpha = score
				w.pv.moves[ply][ply] = move
				for j := ply + 1; j < w.pv.length[ply+1]; j++ {
					w.pv.moves[ply][j] = w.pv.moves[ply+1][j]
				}
				w.pv.length[ply] = w.pv.length[ply+1]
			}
		}

		if score >= beta {
			return score
		}
	}

	if searched == 0 && inCheck {
		return -MateScore + ply
	}

	return bestScore
}

// updateCaptureHistory reinforces the [attacker][to][victim] capture table
// on a capture cutoff; PieceAt must be called after the move is unmade,
// which the beta-cut path guarantees (the move is already undone there, so
// the position still holds both pieces).
func (w *Worker) updateCaptureHistory(move board.Move, depth int, good bool) {
	attacker := w.pos.PieceAt(move.From())
	var victim board.PieceType
	if move.IsEnPassant() {
		victim = board.Pawn
	} else if captured := w.pos.PieceAt(move.To()); captured != board.NoPiece {
		victim = captured.Type()
	} else {
		return
	}
	w.orderer.UpdateCaptureHistory(attacker, move.To(), victim, depth, good)
}

// updateCountermoveHistory reinforces the two-move continuation table on a
// quiet cutoff.
func (w *Worker) updateCountermoveHistory(prevMove, move board.Move, depth int, good bool) {
	if prevMove == board.NoMove {
		return
	}
	prevPiece := w.pos.PieceAt(prevMove.To())
	movePiece := w.pos.PieceAt(move.From())
	w.orderer.UpdateCountermoveHistory(prevMove, move, prevPiece, movePiece, depth, good)
}

// isGoodCapture filters quiescence captures per spec §4.G. With
// UseQuiescenceSEE on, a non-negative SEE alone decides. Otherwise accept
// when the victim outweighs the attacker by more than 100, when the move
// recaptures on the square of the opponent's last capture, when the
// destination is undefended, and failing those when SEE is non-negative.
func (w *Worker) isGoodCapture(move board.Move) bool {
	if w.cfg.UseQuiescenceSEE {
		return SEE(w.pos, move) >= 0
	}

	var victimValue, attackerValue int
	attackerPiece := w.pos.PieceAt(move.From())
	if attackerPiece != board.NoPiece {
		attackerValue = pieceValues[attackerPiece.Type()]
	}

	if move.IsEnPassant() {
		victimValue = PawnValue
	} else if captured := w.pos.PieceAt(move.To()); captured != board.NoPiece {
		victimValue = pieceValues[captured.Type()]
	}
	if move.IsPromotion() {
		victimValue += QueenValue - PawnValue
	}

	if victimValue > attackerValue+100 {
		return true
	}

	// Recapture chain: the opponent just captured on this square.
	if last := w.pos.GetLastMove(); last != board.NoMove &&
		last.To() == move.To() && w.pos.GetLastCapturedPiece() != board.NoPiece {
		return true
	}

	if !w.isDefended(move.To(), w.pos.SideToMove.Other()) {
		return true
	}

	return SEE(w.pos, move) >= 0
}

func (w *Worker) isDefended(sq board.Square, by board.Color) bool {
	return w.pos.IsSquareAttacked(sq, by)
}
