package engine

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/book"
	"github.com/hailam/chessplay/internal/storage"
)

// SearchInfo reports one iteration of progress to the observer.
type SearchInfo struct {
	Depth    int
	SelDepth int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int
}

// SearchResult is the final outcome of one search, published exactly once.
type SearchResult struct {
	BestMove  board.Move
	Ponder    board.Move
	Score     int
	Depth     int
	SelDepth  int
	Nodes     uint64
	Time      time.Duration
	PV        []board.Move
	BookMove  bool
	MateFound bool
}

// ErrSearching is returned by operations that require an idle engine.
var ErrSearching = errors.New("engine: search already running")

// Engine drives exactly one Worker through iterative deepening. One search
// worker goroutine and one watchdog goroutine exist per running search; the
// recursive search itself is single-threaded.
type Engine struct {
	worker    *Worker
	tt        *TranspositionTable
	pawnTable *PawnTable
	cfg       *SearchConfig

	ttSizeMB    int
	initialized bool

	stopFlag   atomic.Bool
	ponderFlag atomic.Bool
	searching  atomic.Bool
	done       chan struct{}

	tm          *TimeManager
	book        *book.Book
	bookEnabled bool
	learning    *storage.LearningStore
	wasInBook   bool

	rootPosHashes []uint64
	lastResult    SearchResult

	// OnInfo fires after every completed iteration; OnCurrMove fires
	// periodically with the root move currently being searched; OnBestMove
	// fires exactly once when the search publishes its result.
	OnInfo     func(SearchInfo)
	OnCurrMove func(move board.Move, number int)
	OnBestMove func(SearchResult)
}

// NewEngine creates an engine whose transposition table will hold sizeMB
// megabytes. The table itself is allocated lazily by IsReady (or the first
// search), so constructing an Engine is cheap.
func NewEngine(ttSizeMB int) *Engine {
	cfg := DefaultSearchConfig()
	e := &Engine{
		ttSizeMB:    ttSizeMB,
		tt:          NewTranspositionTable(0),
		pawnTable:   NewPawnTable(1),
		cfg:         cfg,
		bookEnabled: true,
	}
	e.worker = NewWorker(e.tt, e.pawnTable, cfg, &e.stopFlag)
	return e
}

// IsReady finishes deferred initialization (transposition table sizing) and
// returns once the engine can accept a search.
func (e *Engine) IsReady() {
	if !e.initialized && !e.searching.Load() {
		e.tt.Resize(e.ttSizeMB)
		e.initialized = true
	}
}

// Config returns the engine's pruning/search configuration, which the UCI
// layer mutates in response to "setoption".
func (e *Engine) Config() *SearchConfig {
	return e.cfg
}

// IsSearching reports whether a search is currently running.
func (e *Engine) IsSearching() bool {
	return e.searching.Load()
}

// ResizeHash rebuilds the transposition table at a new size in MB. Rejected
// while a search is running.
func (e *Engine) ResizeHash(sizeMB int) error {
	if e.searching.Load() {
		return ErrSearching
	}
	e.ttSizeMB = sizeMB
	e.tt.Resize(sizeMB)
	e.initialized = true
	return nil
}

// LoadBook loads an opening book from a Polyglot file.
func (e *Engine) LoadBook(filename string) error {
	b, err := book.LoadPolyglot(filename)
	if err != nil {
		return err
	}
	e.book = b
	return nil
}

// SetBook sets the opening book.
func (e *Engine) SetBook(b *book.Book) {
	e.book = b
}

// SetBookEnabled toggles opening-book probing without discarding a loaded
// book (UCI "OwnBook").
func (e *Engine) SetBookEnabled(enabled bool) {
	e.bookEnabled = enabled
}

// HasBook returns true if an opening book is loaded.
func (e *Engine) HasBook() bool {
	return e.book != nil
}

// ProbeBook looks up the current position in the opening book without
// running a search.
func (e *Engine) ProbeBook(pos *board.Position) (board.Move, bool) {
	if e.book == nil {
		return board.NoMove, false
	}
	return e.book.Probe(pos)
}

// LoadLearning opens the persistent correction-history store and restores
// any previously saved corrections into the running worker. Call once at
// startup; a missing database is created fresh.
func (e *Engine) LoadLearning() error {
	store, err := storage.NewLearningStore()
	if err != nil {
		return err
	}
	e.learning = store

	table, err := store.LoadCorrectionHistory()
	if err != nil {
		return err
	}
	if table != nil {
		e.worker.corrHistory.Restore(table)
	}
	return nil
}

// SaveLearning persists the current correction-history table. No-op if
// LoadLearning was never called.
func (e *Engine) SaveLearning() error {
	if e.learning == nil {
		return nil
	}
	return e.learning.SaveCorrectionHistory(e.worker.corrHistory.Snapshot())
}

// CloseLearning flushes and closes the learning store, if open.
func (e *Engine) CloseLearning() error {
	if e.learning == nil {
		return nil
	}
	err := e.learning.Close()
	e.learning = nil
	return err
}

// SetPositionHistory sets the position history for repetition detection.
// Call before StartSearch with the game's zobrist trail.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.rootPosHashes = make([]uint64, len(hashes))
	copy(e.rootPosHashes, hashes)
	e.worker.SetRootHistory(hashes)
}

// NewGame stops any running search and resets all learned per-game state.
func (e *Engine) NewGame() {
	e.StopSearch()
	e.IsReady()
	e.tt.Clear()
	e.pawnTable.Clear()
	e.worker.orderer.Clear()
	e.wasInBook = false
}

// StartSearch launches the search worker for pos under limits. It returns
// once the worker has completed initialization: by then the stop flag is
// clear, the transposition table is aged, and the previous search (if any)
// has fully exited. The final result is published through OnBestMove and
// retrievable via LastResult.
func (e *Engine) StartSearch(pos *board.Position, limits Limits) error {
	if !e.searching.CompareAndSwap(false, true) {
		return ErrSearching
	}
	e.IsReady()
	e.stopFlag.Store(false)
	e.ponderFlag.Store(limits.Ponder)
	e.done = make(chan struct{})

	ready := make(chan struct{})
	go e.runSearch(pos.Copy(), limits, ready)
	<-ready
	return nil
}

// StopSearch raises the stop flag and waits for the worker to publish its
// result. Idempotent; safe to call with no search running.
func (e *Engine) StopSearch() {
	e.stopFlag.Store(true)
	e.ponderFlag.Store(false)
	if e.done != nil {
		<-e.done
	}
}

// PonderHit converts a pondering search into a normally timed one: the
// clock starts now, and the result will be published when the search
// naturally finishes (or the budget runs out).
func (e *Engine) PonderHit() {
	if e.tm != nil && !e.tm.Started() {
		e.tm.Start()
	}
	e.ponderFlag.Store(false)
}

// Stop is a lighter cousin of StopSearch that only raises the flag, for
// callers that must not block.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
	e.ponderFlag.Store(false)
}

// WaitSearch blocks until the current search (if any) has finished.
func (e *Engine) WaitSearch() {
	if e.done != nil {
		<-e.done
	}
}

// LastResult returns the most recently published search result.
func (e *Engine) LastResult() SearchResult {
	return e.lastResult
}

// runSearch is the worker goroutine body: initialization, optional book
// probe, iterative deepening, the ponder/infinite hold, and result
// publication. ready is closed as soon as initialization is complete.
func (e *Engine) runSearch(pos *board.Position, limits Limits, ready chan struct{}) {
	defer close(e.done)
	defer e.searching.Store(false)

	e.worker.Reset()
	e.worker.SetNodeLimit(limits.Nodes)
	e.worker.SetSearchMoves(limits.Moves)
	e.worker.InitSearch(pos)
	e.tt.NewSearch()

	var tm *TimeManager
	if limits.MoveTime > 0 || limits.TimeControl {
		tm = NewTimeManager(&limits, pos.SideToMove, pos.Phase)
		if !limits.Ponder {
			tm.Start()
		}
	}
	e.tm = tm
	startTime := time.Now()
	close(ready)

	if e.book != nil && e.bookEnabled && tm != nil && !limits.Ponder {
		if move, ok := e.book.Probe(pos); ok {
			e.wasInBook = true
			e.publish(SearchResult{BestMove: move, BookMove: true})
			return
		}
	}
	if e.wasInBook {
		// First move out of book: the hash table and history are cold,
		// grant a double budget.
		e.wasInBook = false
		if tm != nil {
			tm.AddExtraTime(2.0)
		}
	}

	watchdogDone := make(chan struct{})
	go e.watchdog(watchdogDone, tm)

	result := e.iterativeDeepening(pos, &limits, tm, startTime)

	// A ponder or infinite search that finishes early must hold its result
	// until "stop" or "ponderhit" arrives.
	for (limits.Infinite || e.ponderFlag.Load()) && !e.stopFlag.Load() {
		time.Sleep(timerSlice)
	}

	close(watchdogDone)
	e.publish(result)
}

// watchdog flips the stop flag when the time budget is spent, checking in
// 5ms slices, and relays the current root move to the observer about twice
// a second.
func (e *Engine) watchdog(done chan struct{}, tm *TimeManager) {
	ticks := 0
	for {
		select {
		case <-done:
			return
		default:
		}
		time.Sleep(timerSlice)
		if tm != nil && tm.Expired() {
			e.stopFlag.Store(true)
		}
		ticks++
		if ticks%100 == 0 && e.OnCurrMove != nil {
			stats := e.worker.Stats()
			if stats.CurrentRootMove != board.NoMove {
				e.OnCurrMove(stats.CurrentRootMove, stats.CurrentRootIndex)
			}
		}
	}
}

func (e *Engine) publish(result SearchResult) {
	e.lastResult = result
	if e.OnBestMove != nil {
		e.OnBestMove(result)
	}
}

// iterativeDeepening runs depth 1..max with aspiration windows, reporting
// progress through OnInfo and honoring every stop condition in limits.
func (e *Engine) iterativeDeepening(pos *board.Position, limits *Limits, tm *TimeManager, startTime time.Time) SearchResult {
	result := SearchResult{}

	// A root position that is already drawn needs no tree: report any
	// legal move with a draw score.
	rootMoves := pos.GenerateLegalMoves()
	if rootMoves.Len() == 0 {
		if pos.InCheck() {
			result.Score = -MateScore
		}
		return result
	}
	if pos.IsRepetitionDraw() || pos.HalfMoveClock >= 100 {
		result.BestMove = rootMoves.Get(0)
		result.PV = []board.Move{result.BestMove}
		return result
	}

	maxDepth := MaxPly - 1
	if limits.Depth > 0 && limits.Depth < maxDepth {
		maxDepth = limits.Depth
	}

	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move

	for depth := 1; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			break
		}

		var move board.Move
		var score int
		if e.cfg.UseAspiration && depth > 3 {
			move, score = e.aspirationSearch(depth, bestScore)
		} else {
			move, score = e.worker.SearchDepth(depth, -Infinity, Infinity)
		}

		// An interrupted iteration still yields a usable move (every pv
		// update is guarded against the stop flag inside the worker), but
		// its score is not trustworthy and is never reported.
		stopped := e.stopFlag.Load()
		if move != board.NoMove && (!stopped || bestMove == board.NoMove) {
			bestMove = move
			bestPV = e.worker.GetPV()

			if !stopped {
				bestScore = score
				if e.OnInfo != nil {
					stats := e.worker.Stats()
					e.OnInfo(SearchInfo{
						Depth:    depth,
						SelDepth: stats.SelDepth,
						Score:    bestScore,
						Nodes:    e.worker.Nodes(),
						Time:     time.Since(startTime),
						PV:       bestPV,
						HashFull: e.tt.HashFull(),
					})
				}
			}
		}

		if stopped {
			break
		}

		// Mate-target limit: stop once a mate within the requested number
		// of half-moves is proven.
		if limits.Mate > 0 && IsMateScore(bestScore) && MateScore-iabs(bestScore) <= limits.Mate {
			break
		}
		if IsMateScore(bestScore) && tm != nil {
			break
		}
		if rootMoves.Len() == 1 && tm != nil {
			break
		}
		if tm != nil && tm.Started() && tm.Elapsed() >= tm.HardLimit()/2 {
			// The next iteration typically costs more than all previous
			// ones combined; starting it now would overshoot the budget.
			break
		}
		if limits.Nodes > 0 && e.worker.Nodes() >= limits.Nodes {
			break
		}
	}

	if bestMove == board.NoMove {
		// Stopped before the first iteration produced anything: fall back
		// to the first legal root move rather than resigning.
		bestMove = rootMoves.Get(0)
		bestPV = []board.Move{bestMove}
	}

	result.BestMove = bestMove
	result.Score = bestScore
	result.PV = bestPV
	result.Nodes = e.worker.Nodes()
	result.Time = time.Since(startTime)
	result.MateFound = IsMateScore(bestScore)
	stats := e.worker.Stats()
	result.Depth = stats.Depth
	result.SelDepth = stats.SelDepth

	if len(bestPV) > 1 {
		result.Ponder = bestPV[1]
	} else if bestMove != board.NoMove {
		result.Ponder = e.ponderFromTT(pos, bestMove)
	}

	return result
}

// aspirationSearch re-searches around the previous iteration's score with
// a window that doubles on every fail until the true value is bracketed.
func (e *Engine) aspirationSearch(depth, prevScore int) (board.Move, int) {
	window := 25
	alpha := prevScore - window
	beta := prevScore + window

	for {
		move, score := e.worker.SearchDepth(depth, alpha, beta)
		if e.stopFlag.Load() {
			return move, score
		}
		if score <= alpha {
			window *= 2
			alpha = score - window
		} else if score >= beta {
			window *= 2
			beta = score + window
		} else {
			return move, score
		}
		if alpha < -Infinity {
			alpha = -Infinity
		}
		if beta > Infinity {
			beta = Infinity
		}
	}
}

// ponderFromTT recovers a ponder move by probing the transposition table
// for the best reply to our chosen move.
func (e *Engine) ponderFromTT(pos *board.Position, bestMove board.Move) board.Move {
	child := pos.Copy()
	undo := child.MakeMove(bestMove)
	if !undo.Valid {
		return board.NoMove
	}
	entry, found := e.tt.Probe(child.Hash)
	if !found || entry.BestMove == board.NoMove {
		return board.NoMove
	}
	if child.ValidateMove(entry.BestMove) {
		return entry.BestMove
	}
	return board.NoMove
}

// Search finds a best move for pos with a default three-second budget.
func (e *Engine) Search(pos *board.Position) board.Move {
	return e.SearchSync(pos, Limits{MoveTime: 3 * time.Second})
}

// SearchSync runs a search to completion and returns the best move; a
// convenience wrapper over StartSearch/WaitSearch for tests and tools.
func (e *Engine) SearchSync(pos *board.Position, limits Limits) board.Move {
	if err := e.StartSearch(pos, limits); err != nil {
		return board.NoMove
	}
	e.WaitSearch()
	return e.lastResult.BestMove
}

// Clear clears the transposition table, pawn hash table, and move ordering
// heuristics (UCI "Clear Hash").
func (e *Engine) Clear() {
	e.tt.Clear()
	e.pawnTable.Clear()
	e.worker.orderer.Clear()
}

// Perft counts leaf nodes of the legal move tree to the given depth,
// exercising the same generator the search uses.
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}

	return nodes
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// ScoreToString renders a score the way a human reads it ("Mate in 3",
// "+1.32").
func ScoreToString(score int) string {
	if score > mateThreshold {
		return "Mate in " + itoa((MateScore-score+1)/2)
	}
	if score < -mateThreshold {
		return "Mated in " + itoa((MateScore+score+1)/2)
	}

	sign := "+"
	if score < 0 {
		sign = "-"
		score = -score
	}
	return sign + itoa(score/100) + "." + pad2(score%100)
}

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// itoa is a small integer-to-string helper kept free of fmt so the hot
// UCI info-output path allocates as little as possible.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}

func pad2(n int) string {
	if n < 10 {
		return "0" + itoa(n)
	}
	return itoa(n)
}
