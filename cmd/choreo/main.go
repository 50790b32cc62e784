package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/choreo/internal/clip"
	"github.com/ivlev/choreo/internal/config"
	"github.com/ivlev/choreo/internal/director"
	"github.com/ivlev/choreo/internal/library"
	"github.com/ivlev/choreo/internal/playback"
	"github.com/ivlev/choreo/internal/player"
	"github.com/ivlev/choreo/internal/system"
)

func main() {
	configPtr := flag.String("config", "", "Path to a YAML config file (optional)")
	libraryPtr := flag.String("library", "", "Path to the library snapshot JSON (default: data/library.json)")
	remotePtr := flag.String("remote", "", "Remote snapshot URL used when the local cache is empty")
	sqlitePtr := flag.String("sqlite", "", "SQLite database path; replaces the file-backed snapshot cache")

	generatePtr := flag.Bool("generate", false, "Generate one choreography and store it in the library")
	durationPtr := flag.Int("duration", 30000, "Choreography duration (ms)")
	namePtr := flag.String("name", "", "Choreography name (default: generated from the timestamp)")
	stylePtr := flag.String("style", "", "Style, e.g. hip-hop, house, freestyle")
	moodPtr := flag.String("mood", "", "Mood, e.g. energetic, chill")
	intensityPtr := flag.String("intensity", "", "Intensity: low, medium, high")
	bpmPtr := flag.Float64("bpm", 0, "Target tempo for speed sync (0 = off)")
	seedPtr := flag.Int64("seed", 0, "Random seed (0 = time-based)")
	batchPtr := flag.Int("batch", 0, "Generate N choreographies concurrently")
	scenarioOutPtr := flag.String("scenario-out", "", "Write the generated choreography to this YAML file")

	importPtr := flag.String("import", "", "Import a library snapshot from a JSON file")
	exportPtr := flag.String("export", "", "Export the library snapshot to a JSON file")
	playPtr := flag.String("play", "", "Trace a stored choreography id through the log player")
	statsPtr := flag.Bool("stats", false, "Print library and host statistics")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Config error: %v", err)
		}
		cfg = loaded
	}
	if *libraryPtr != "" {
		cfg.LibraryPath = *libraryPtr
	}
	if *remotePtr != "" {
		cfg.RemoteURL = *remotePtr
	}
	if *sqlitePtr != "" {
		cfg.SQLitePath = *sqlitePtr
	}
	if *stylePtr != "" {
		cfg.Style = *stylePtr
	}
	if *moodPtr != "" {
		cfg.Mood = *moodPtr
	}
	if *intensityPtr != "" {
		cfg.Intensity = *intensityPtr
	}
	if *bpmPtr > 0 {
		cfg.BPM = *bpmPtr
	}

	ctx := context.Background()

	var cache library.Cache
	if cfg.SQLitePath != "" {
		sc, err := library.NewSQLiteCache(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("[-] SQLite cache error: %v", err)
		}
		defer sc.Close()
		cache = sc
		fmt.Printf("[*] Snapshot cache: sqlite %s\n", cfg.SQLitePath)
	} else {
		cache = library.NewFileCache(cfg.LibraryPath)
	}

	var fetcher library.Fetcher
	if cfg.RemoteURL != "" {
		fetcher = library.NewHTTPFetcher(cfg.RemoteURL)
	}

	lib := library.New(library.Options{Cache: cache, Fetcher: fetcher})
	lib.Load(ctx)

	if *importPtr != "" {
		data, err := os.ReadFile(*importPtr)
		if err != nil {
			log.Fatalf("[-] Import read error: %v", err)
		}
		if err := lib.Import(data); err != nil {
			log.Fatalf("[-] Import rejected: %v", err)
		}
		lib.Save()
		fmt.Printf("[*] Imported library from %s\n", *importPtr)
	}

	if *exportPtr != "" {
		data, err := lib.Export()
		if err != nil {
			log.Fatalf("[-] Export error: %v", err)
		}
		if err := os.WriteFile(*exportPtr, data, 0644); err != nil {
			log.Fatalf("[-] Export write error: %v", err)
		}
		fmt.Printf("[*] Exported library to %s\n", *exportPtr)
	}

	dcfg := director.Config{
		Style:            cfg.Style,
		Mood:             cfg.Mood,
		Intensity:        clip.Intensity(cfg.Intensity),
		BPM:              cfg.BPM,
		AllowTransitions: cfg.AllowTransitions,
		MinClipMs:        cfg.MinClipMs,
		MaxClipMs:        cfg.MaxClipMs,
	}

	switch {
	case *batchPtr > 0:
		runBatch(lib, dcfg, cfg, *batchPtr, *durationPtr, *namePtr, *seedPtr)
	case *generatePtr:
		runGenerate(lib, dcfg, cfg, *durationPtr, *namePtr, *seedPtr, *scenarioOutPtr)
	}

	if *playPtr != "" {
		runPlay(lib, cfg, *playPtr)
	}

	if *statsPtr {
		st := lib.Stats()
		fmt.Printf("[*] Library: %d animations, %d poses, %d choreographies (updated %s)\n",
			st.Animations, st.Poses, st.Choreographies, st.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Print(system.Capture().Report())
	}
}

func newDirector(lib *library.Library, dcfg director.Config, seed int64) *director.Director {
	if seed == 0 {
		return director.New(lib, dcfg)
	}
	return director.NewWithRand(lib, dcfg, rand.New(rand.NewSource(seed)))
}

func runGenerate(lib *library.Library, dcfg director.Config, cfg config.Config, durationMs int, name string, seed int64, scenarioOut string) {
	if name == "" {
		name = fmt.Sprintf("choreography_%s", time.Now().Format("2006-01-02_15-04-05"))
	}

	d := newDirector(lib, dcfg, seed)
	ch := d.GenerateChoreography(durationMs, name)
	if len(ch.Steps) == 0 {
		log.Fatalf("[-] No matching clips for style=%q mood=%q; nothing generated", dcfg.Style, dcfg.Mood)
	}

	stored := lib.AddChoreography(ch)
	lib.Save()
	fmt.Printf("[*] Generated %q: %d steps, %d ms (id %s)\n", stored.Name, len(stored.Steps), stored.DurationMs, stored.ID)

	out := scenarioOut
	if out == "" && cfg.ScenarioDir != "" {
		out = director.GenerateChoreographyPath(cfg.ScenarioDir)
	}
	if out != "" {
		if err := director.WriteChoreography(&stored, out); err != nil {
			log.Fatalf("[-] Scenario write error: %v", err)
		}
		fmt.Printf("[+++] Scenario saved: %s\n", out)
	}
}

// runBatch generates n choreographies concurrently. Each worker owns its
// Director and random source; the single-writer library is only touched
// after all workers finish.
func runBatch(lib *library.Library, dcfg director.Config, cfg config.Config, n, durationMs int, name string, seed int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if name == "" {
		name = "batch"
	}

	results := make([]clip.Choreography, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			d := director.NewWithRand(lib, dcfg, rand.New(rand.NewSource(seed+int64(i))))
			ch := d.GenerateChoreography(durationMs, fmt.Sprintf("%s_%02d", name, i+1))
			if len(ch.Steps) == 0 {
				return fmt.Errorf("no matching clips for %q", ch.Name)
			}
			results[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("[-] Batch error: %v", err)
	}

	for i, ch := range results {
		stored := lib.AddChoreography(ch)
		path := filepath.Join(cfg.ScenarioDir, fmt.Sprintf("%s_%02d.yaml", name, i+1))
		if err := director.WriteChoreography(&stored, path); err != nil {
			log.Fatalf("[-] Scenario write error: %v", err)
		}
		fmt.Printf("[>] Ready: %d/%d %s\n", i+1, n, path)
	}
	lib.Save()
	fmt.Printf("[+++] Batch complete: %d choreographies\n", n)
}

// runPlay drives a stored choreography through the state machine with the
// log player and blocks until the machine settles back to idle.
func runPlay(lib *library.Library, cfg config.Config, id string) {
	ch, ok := lib.Choreography(id)
	if !ok {
		log.Fatalf("[-] Choreography %q not found", id)
	}

	opts := playback.Options{
		AutoReturnToIdle:  cfg.AutoReturnToIdle,
		IdleReturnDelayMs: cfg.IdleReturnDelayMs,
	}
	if cfg.IdleClipID != "" {
		if idle, ok := lib.Animation(cfg.IdleClipID); ok {
			opts.IdleClip = &idle
		} else {
			fmt.Printf("[!] Idle clip %q not found, skipping idle motion\n", cfg.IdleClipID)
		}
	}

	m := playback.New(player.NewLogPlayer(nil), lib.Animation, opts)
	done := make(chan struct{}, 1)
	m.Subscribe(func(e playback.Event) {
		if e.Type == playback.EventStateChange && e.State == playback.StateIdle {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})

	fmt.Printf("[*] Playing %q: %d steps, %d ms\n", ch.Name, len(ch.Steps), ch.DurationMs)
	m.PlayChoreography(ch)

	timeout := time.Duration(ch.DurationMs+cfg.IdleReturnDelayMs+2000) * time.Millisecond
	select {
	case <-done:
		fmt.Printf("[+++] Playback finished: %s\n", ch.Name)
	case <-time.After(timeout):
		m.Stop()
		fmt.Printf("[!] Playback timed out after %s\n", timeout)
	}
}
