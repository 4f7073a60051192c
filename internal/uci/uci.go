// Package uci binds the engine to the Universal Chess Interface protocol.
// It is a thin observer: it parses commands, forwards them to the search
// driver, and renders the driver's events back as UCI text.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/engine"
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	position *board.Position

	// positionHashes is the zobrist trail of the game so far, handed to the
	// engine for repetition detection.
	positionHashes []uint64

	ownBook bool
	ponder  bool

	profileFile *os.File
}

// New creates a new UCI protocol handler.
func New(eng *engine.Engine) *UCI {
	u := &UCI{
		engine:   eng,
		position: board.NewPosition(),
		ownBook:  true,
	}
	eng.OnInfo = u.sendInfo
	eng.OnCurrMove = u.sendCurrMove
	eng.OnBestMove = u.sendBestMove
	return u
}

// Run reads commands from stdin until "quit" or EOF.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.engine.IsReady()
			fmt.Println("readyok")
		case "ucinewgame":
			u.engine.NewGame()
			u.position = board.NewPosition()
			u.positionHashes = []uint64{u.position.Hash}
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.engine.StopSearch()
		case "ponderhit":
			u.engine.PonderHit()
		case "quit":
			u.handleQuit()
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.position.String())
		case "perft":
			u.handlePerft(args)
		}
	}
}

// handleUCI advertises the identity and the full option table.
func (u *UCI) handleUCI() {
	fmt.Println("id name ChessPlay")
	fmt.Println("id author ChessPlay Team")
	fmt.Println()

	fmt.Println("option name Hash type spin default 64 min 1 max 4096")
	fmt.Println("option name Clear Hash type button")
	fmt.Println("option name OwnBook type check default true")
	fmt.Println("option name Ponder type check default false")

	fmt.Println("option name Use AlphaBeta type check default true")
	fmt.Println("option name Use Pvs type check default true")
	fmt.Println("option name Use Aspiration type check default true")

	fmt.Println("option name Use Hash type check default true")
	fmt.Println("option name Use Hash Value type check default true")
	fmt.Println("option name Use Hash PvMove type check default true")
	fmt.Println("option name Use Hash Quiescence type check default true")
	fmt.Println("option name Use Hash Eval type check default true")

	fmt.Println("option name Use Killer Moves type check default true")
	fmt.Println("option name Use History Moves type check default true")
	fmt.Println("option name Use History Counter type check default true")

	fmt.Println("option name Use Mate Distance Pruning type check default true")

	fmt.Println("option name Use Quiescence type check default true")
	fmt.Println("option name Use Quiescence Standpat type check default true")
	fmt.Println("option name Use Quiescence SEE type check default false")

	fmt.Println("option name Use Razoring type check default true")
	fmt.Println("option name Razor Margin type spin default 300 min 0 max 1000")

	fmt.Println("option name Use Reverse Futility Pruning type check default true")

	fmt.Println("option name Use Null Move Pruning type check default true")
	fmt.Println("option name Null Move Depth type spin default 3 min 1 max 10")
	fmt.Println("option name Null Depth Reduction type spin default 3 min 1 max 10")

	fmt.Println("option name Use IID type check default true")
	fmt.Println("option name IID Move Depth type spin default 5 min 1 max 16")
	fmt.Println("option name IID Depth Reduction type spin default 2 min 1 max 8")

	fmt.Println("uciok")
}

// handlePosition rebuilds the game position from "startpos" or a FEN,
// then applies any trailing move list.
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	movesIdx := len(args)
	for i, arg := range args {
		if arg == "moves" {
			movesIdx = i
			break
		}
	}

	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
	case "fen":
		pos, err := board.ParseFEN(strings.Join(args[1:movesIdx], " "))
		if err != nil {
			u.sendString("Invalid FEN: %v", err)
			return
		}
		u.position = pos
	default:
		return
	}

	u.positionHashes = []uint64{u.position.Hash}

	for i := movesIdx + 1; i < len(args); i++ {
		move := u.matchLegalMove(u.position, args[i])
		if move == board.NoMove {
			u.sendString("Invalid move: %s", args[i])
			return
		}
		u.position.MakeMove(move)
		u.positionHashes = append(u.positionHashes, u.position.Hash)
	}
}

// matchLegalMove parses a UCI move string and matches it against the legal
// moves of pos, so special move types (castling, ep, promotion) come back
// correctly flagged.
func (u *UCI) matchLegalMove(pos *board.Position, s string) board.Move {
	parsed, err := board.ParseMove(s, pos)
	if err != nil {
		return board.NoMove
	}

	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.From() != parsed.From() || m.To() != parsed.To() {
			continue
		}
		if m.IsPromotion() != parsed.IsPromotion() {
			continue
		}
		if m.IsPromotion() && m.Promotion() != parsed.Promotion() {
			continue
		}
		return m
	}
	return board.NoMove
}

// handleGo validates the "go" arguments, builds the search limits, and
// starts the search. Invalid arguments reject the whole command.
func (u *UCI) handleGo(args []string) {
	limits, err := u.parseGoLimits(args)
	if err != nil {
		u.sendString("%v", err)
		return
	}
	if limits.Ponder && !u.ponder {
		u.sendString("go ponder requires setoption Ponder")
		return
	}

	u.engine.SetBookEnabled(u.ownBook)
	u.engine.SetPositionHistory(u.positionHashes)
	if err := u.engine.StartSearch(u.position, limits); err != nil {
		u.sendString("%v", err)
	}
}

// parseGoLimits parses and validates "go" arguments. Each numeric must be
// positive (winc/binc may be zero); depth and mate are bounded by the
// maximum search depth; a command with no limit at all is only accepted
// with "infinite" or "ponder".
func (u *UCI) parseGoLimits(args []string) (engine.Limits, error) {
	limits := engine.Limits{}

	takeInt := func(i int) (int, error) {
		if i+1 >= len(args) {
			return 0, fmt.Errorf("go: %s needs a value", args[i])
		}
		n, err := strconv.Atoi(args[i+1])
		if err != nil {
			return 0, fmt.Errorf("go: bad value for %s: %s", args[i], args[i+1])
		}
		return n, nil
	}

	for i := 0; i < len(args); i++ {
		var n int
		var err error

		switch args[i] {
		case "infinite":
			limits.Infinite = true
			continue
		case "ponder":
			limits.Ponder = true
			continue
		case "searchmoves":
			for i+1 < len(args) {
				move := u.matchLegalMove(u.position, args[i+1])
				if move == board.NoMove {
					break
				}
				limits.Moves = append(limits.Moves, move)
				i++
			}
			continue
		case "depth", "nodes", "mate", "movetime", "wtime", "btime", "winc", "binc", "movestogo":
			if n, err = takeInt(i); err != nil {
				return limits, err
			}
		default:
			continue
		}

		name := args[i]
		i++

		if n < 0 || (n == 0 && name != "winc" && name != "binc") {
			return limits, fmt.Errorf("go: %s must be positive", name)
		}

		switch name {
		case "depth":
			if n > engine.MaxPly {
				return limits, fmt.Errorf("go: depth above limit %d", engine.MaxPly)
			}
			limits.Depth = n
		case "nodes":
			limits.Nodes = uint64(n)
		case "mate":
			if n > engine.MaxPly {
				return limits, fmt.Errorf("go: mate above limit %d", engine.MaxPly)
			}
			limits.Mate = n
		case "movetime":
			limits.MoveTime = time.Duration(n) * time.Millisecond
		case "wtime":
			limits.WhiteTime = time.Duration(n) * time.Millisecond
			limits.TimeControl = true
		case "btime":
			limits.BlackTime = time.Duration(n) * time.Millisecond
			limits.TimeControl = true
		case "winc":
			limits.WhiteInc = time.Duration(n) * time.Millisecond
		case "binc":
			limits.BlackInc = time.Duration(n) * time.Millisecond
		case "movestogo":
			limits.MovesToGo = n
		}
	}

	if !limits.Infinite && !limits.Ponder && !limits.TimeControl &&
		limits.Depth == 0 && limits.Nodes == 0 && limits.Mate == 0 && limits.MoveTime == 0 {
		return limits, fmt.Errorf("go: no limit given")
	}
	return limits, nil
}

// sendInfo renders one iteration's progress line.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var b strings.Builder

	fmt.Fprintf(&b, "info depth %d", info.Depth)
	if info.SelDepth > 0 {
		fmt.Fprintf(&b, " seldepth %d", info.SelDepth)
	}
	b.WriteString(" multipv 1 score ")
	b.WriteString(formatScore(info.Score))
	fmt.Fprintf(&b, " nodes %d", info.Nodes)
	if info.Time > 0 {
		fmt.Fprintf(&b, " nps %d", uint64(float64(info.Nodes)/info.Time.Seconds()))
	}
	fmt.Fprintf(&b, " time %d", info.Time.Milliseconds())
	if info.HashFull > 0 {
		fmt.Fprintf(&b, " hashfull %d", info.HashFull)
	}

	if len(info.PV) > 0 {
		b.WriteString(" pv")
		for _, move := range info.PV {
			b.WriteByte(' ')
			b.WriteString(move.String())
		}
	}

	fmt.Println(b.String())
}

func (u *UCI) sendCurrMove(move board.Move, number int) {
	fmt.Printf("info currmove %s currmovenumber %d\n", move.String(), number)
}

// sendBestMove emits the one "bestmove" line every search ends with.
func (u *UCI) sendBestMove(result engine.SearchResult) {
	best := result.BestMove
	if best == board.NoMove {
		// Mated or stalemated at the root; the protocol still wants a line.
		fmt.Println("bestmove 0000")
		return
	}
	if result.Ponder != board.NoMove {
		fmt.Printf("bestmove %s ponder %s\n", best.String(), result.Ponder.String())
	} else {
		fmt.Printf("bestmove %s\n", best.String())
	}
}

func formatScore(score int) string {
	if score > engine.MateScore-engine.MaxPly {
		return fmt.Sprintf("mate %d", (engine.MateScore-score+1)/2)
	}
	if score < -engine.MateScore+engine.MaxPly {
		return fmt.Sprintf("mate %d", -(engine.MateScore+score+1)/2)
	}
	return fmt.Sprintf("cp %d", score)
}

// sendString reports a recoverable problem to the GUI without aborting.
func (u *UCI) sendString(format string, args ...any) {
	fmt.Printf("info string %s\n", fmt.Sprintf(format, args...))
}

// handleQuit exits the program after stopping the search and flushing the
// learning store.
func (u *UCI) handleQuit() {
	u.engine.StopSearch()
	if err := u.engine.SaveLearning(); err != nil {
		u.sendString("failed to save learning data: %v", err)
	}
	u.engine.CloseLearning()
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
	}
	os.Exit(0)
}

// handleSetOption maps each "setoption" name onto the engine's search
// configuration. Unknown options are ignored, as the protocol requires.
func (u *UCI) handleSetOption(args []string) {
	name, value := splitOption(args)

	cfg := u.engine.Config()
	boolVal := strings.EqualFold(value, "true")
	intVal, _ := strconv.Atoi(value)

	switch strings.ToLower(name) {
	case "hash":
		if intVal > 0 {
			if err := u.engine.ResizeHash(intVal); err != nil {
				u.sendString("cannot resize hash: %v", err)
			}
		}
	case "clear hash":
		if u.engine.IsSearching() {
			u.sendString("cannot clear hash during search")
		} else {
			u.engine.Clear()
		}
	case "ownbook":
		u.ownBook = boolVal
	case "ponder":
		u.ponder = boolVal

	case "use alphabeta":
		cfg.UseAlphaBeta = boolVal
	case "use pvs":
		cfg.UsePVS = boolVal
	case "use aspiration":
		cfg.UseAspiration = boolVal

	case "use hash":
		cfg.UseHash = boolVal
	case "use hash value":
		cfg.UseHashValue = boolVal
	case "use hash pvmove":
		cfg.UseHashPvMove = boolVal
	case "use hash quiescence":
		cfg.UseHashQuiescence = boolVal
	case "use hash eval":
		cfg.UseHashEval = boolVal

	case "use killer moves":
		cfg.UseKillerMoves = boolVal
	case "use history moves":
		cfg.UseHistoryMoves = boolVal
	case "use history counter":
		cfg.UseHistoryCounter = boolVal

	case "use mate distance pruning":
		cfg.UseMateDistPruning = boolVal

	case "use quiescence":
		cfg.UseQuiescence = boolVal
	case "use quiescence standpat":
		cfg.UseQuiescenceStandpat = boolVal
	case "use quiescence see":
		cfg.UseQuiescenceSEE = boolVal

	case "use razoring":
		cfg.UseRazoring = boolVal
	case "razor margin":
		cfg.RazorMargin = intVal

	case "use reverse futility pruning":
		cfg.UseReverseFutility = boolVal

	case "use null move pruning":
		cfg.UseNullMove = boolVal
	case "null move depth":
		cfg.NullMoveDepth = intVal
	case "null depth reduction":
		cfg.NullDepthReduction = intVal

	case "use iid":
		cfg.UseIID = boolVal
	case "iid move depth":
		cfg.IIDMoveDepth = intVal
	case "iid depth reduction":
		cfg.IIDDepthReduction = intVal

	case "cpuprofile":
		u.toggleProfile(value)
	}
}

// splitOption splits "name X value V" where both halves may contain
// spaces.
func splitOption(args []string) (name, value string) {
	var nameParts, valueParts []string
	target := &nameParts

	for _, arg := range args {
		switch arg {
		case "name":
			target = &nameParts
		case "value":
			target = &valueParts
		default:
			*target = append(*target, arg)
		}
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " ")
}

func (u *UCI) toggleProfile(value string) {
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		u.profileFile = nil
	}
	if value == "" || value == "stop" {
		return
	}
	f, err := os.Create(value)
	if err != nil {
		u.sendString("failed to create profile: %v", err)
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		u.sendString("failed to start profile: %v", err)
		return
	}
	u.profileFile = f
}

// handlePerft runs a perft count over the current position.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position.Copy(), depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}
