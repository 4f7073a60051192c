package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/hailam/chessplay/internal/engine"
	"github.com/hailam/chessplay/internal/uci"
)

// defaultBookName is the Polyglot opening book file the engine looks for
// next to the binary, and in the user's data directory, on startup.
const defaultBookName = "book.bin"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	eng := engine.NewEngine(64)

	if err := autoLoadBook(eng); err != nil {
		log.Printf("No opening book loaded: %v", err)
	}
	if err := eng.LoadLearning(); err != nil {
		log.Printf("Learning store unavailable: %v", err)
	}
	defer eng.CloseLearning()

	protocol := uci.New(eng)
	protocol.Run()
}

// autoLoadBook looks for a Polyglot opening book in a few standard
// locations and loads the first one found.
func autoLoadBook(eng *engine.Engine) error {
	searchPaths := []string{
		".",
		filepath.Join(getHomeDir(), ".chessplay"),
	}

	for _, dir := range searchPaths {
		path := filepath.Join(dir, defaultBookName)
		if fileExists(path) {
			if err := eng.LoadBook(path); err != nil {
				log.Printf("Failed to load book from %s: %v", path, err)
				continue
			}
			log.Printf("Opening book loaded from %s", path)
			return nil
		}
	}

	return os.ErrNotExist
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
