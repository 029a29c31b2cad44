package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"meeting-scribe/scribe"
)

func main() {
	var configPath string
	var dbPath string
	var capacity int
	var logLevel string
	var decisionMode string
	var exportDir string
	var listEntries bool
	var deleteFingerprint string
	var clearAll bool
	var resummarize string
	var exportFingerprint string
	var watch bool

	flag.StringVar(&configPath, "config", "", "YAML config file path.")
	flag.StringVar(&dbPath, "db", "", "History database path (overrides config).")
	flag.IntVar(&capacity, "capacity", 0, "History capacity bound (overrides config).")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config).")
	flag.StringVar(&decisionMode, "decision", "ask", "Cache-hit decision: ask, reuse, or reprocess.")
	flag.StringVar(&exportDir, "export-dir", "", "Write a .docx per processed file into this directory (overrides config).")
	flag.BoolVar(&listEntries, "list", false, "List cached entries and exit.")
	flag.StringVar(&deleteFingerprint, "delete", "", "Delete the entry with this fingerprint and exit.")
	flag.BoolVar(&clearAll, "clear", false, "Delete all cached entries and exit.")
	flag.StringVar(&resummarize, "resummarize", "", "Append a fresh summary version to the entry with this fingerprint and exit.")
	flag.StringVar(&exportFingerprint, "export", "", "Export the entry with this fingerprint to .docx and exit.")
	flag.BoolVar(&watch, "watch", false, "Watch the intake directory and process new recordings.")
	flag.Parse()

	visited := map[string]bool{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})

	cfg := scribe.DefaultConfig()
	if configPath != "" {
		loaded, err := scribe.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if visited["db"] {
		cfg.Database.Path = dbPath
	}
	if visited["capacity"] {
		cfg.Database.Capacity = capacity
	}
	if visited["log-level"] {
		cfg.Logging.Level = logLevel
	}
	if visited["export-dir"] {
		cfg.Paths.Export = exportDir
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "scribe.db"
	}

	logger := scribe.NewLogger(os.Stderr, cfg.Logging.Level)
	ctx := context.Background()
	store := scribe.NewHistoryStore(cfg.Database.Path, cfg.Database.Capacity, logger)

	switch {
	case listEntries:
		if err := printEntries(ctx, store); err != nil {
			log.Fatalf("list: %v", err)
		}
		return
	case deleteFingerprint != "":
		if err := store.Delete(ctx, deleteFingerprint); err != nil {
			log.Fatalf("delete: %v", err)
		}
		return
	case clearAll:
		if err := store.Clear(ctx); err != nil {
			log.Fatalf("clear: %v", err)
		}
		return
	case exportFingerprint != "":
		dir := cfg.Paths.Export
		if dir == "" {
			dir = "."
		}
		entry, err := store.Get(ctx, exportFingerprint)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		out := filepath.Join(dir, strings.TrimSuffix(entry.FileName, filepath.Ext(entry.FileName))+".docx")
		if err := scribe.WriteMeetingDocx(entry, out); err != nil {
			log.Fatalf("export: %v", err)
		}
		fmt.Println(out)
		return
	}

	runner, err := scribe.NewRunner(scribe.RunnerConfig{
		DBPath:      cfg.Database.Path,
		Capacity:    cfg.Database.Capacity,
		Whisper:     cfg.Whisper,
		Gemini:      cfg.Gemini,
		ExportDir:   cfg.Paths.Export,
		ArchivedDir: cfg.Paths.Archived,
		Decide:      decisionFunc(decisionMode),
	}, logger)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	if resummarize != "" {
		entry, err := runner.Resummarize(ctx, resummarize)
		if err != nil {
			log.Fatalf("resummarize: %v", err)
		}
		versions, _ := entry.DecodeSummaries()
		fmt.Printf("%s now has %d summary version(s)\n", entry.FileName, len(versions))
		return
	}

	if watch {
		if cfg.Paths.Intake == "" {
			log.Fatalf("watch mode requires paths.intake in the config")
		}
		runWatch(ctx, cfg, runner, logger)
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no input files (pass audio files, or use -watch / -list / -export)")
		os.Exit(2)
	}
	for _, path := range files {
		entry, err := runner.ProcessFile(ctx, path)
		if err != nil {
			log.Fatalf("process %s: %v", path, err)
		}
		if entry == nil {
			continue
		}
		printEntrySummary(entry)
	}
}

func runWatch(ctx context.Context, cfg *scribe.FileConfig, runner *scribe.Runner, logger scribe.Logger) {
	if err := os.MkdirAll(cfg.Paths.Intake, 0o755); err != nil {
		log.Fatalf("create intake dir: %v", err)
	}
	w, err := scribe.NewWatcher(cfg.Paths.Intake, runner.HandleIntake, logger, cfg.MaxConcurrent)
	if err != nil {
		log.Fatalf("init watcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := w.Start(ctx); err != nil && err != context.Canceled {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info(ctx, "shutdown signal received")
	case err := <-errChan:
		logger.Error(ctx, "watcher error: %v", err)
	}
	cancel()
}

func decisionFunc(mode string) scribe.DecisionFunc {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "reuse":
		return func(*scribe.HistoryEntry) scribe.Decision { return scribe.DecisionReuse }
	case "reprocess":
		return func(*scribe.HistoryEntry) scribe.Decision { return scribe.DecisionReprocess }
	default:
		return promptDecision
	}
}

// promptDecision surfaces the cached entry's metadata and reads the user's
// choice from stdin.
func promptDecision(entry *scribe.HistoryEntry) scribe.Decision {
	meta, _ := entry.DecodeMetadata()
	versions, _ := entry.DecodeSummaries()
	processed := time.UnixMilli(entry.ProcessedAt).Format("2006-01-02 15:04")
	fmt.Printf("\n%s was already processed on %s\n", entry.FileName, processed)
	fmt.Printf("  transcription: %s, speakers: %d, words: %d, summaries: %d\n",
		meta.TranscriptionModel, meta.SpeakerCount, meta.WordCount, len(versions))
	if meta.LLMModel != "" {
		fmt.Printf("  last summarized by: %s\n", meta.LLMModel)
	}
	fmt.Print("[r]euse cached results, re[p]rocess, or [c]ancel? ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "p", "reprocess":
		return scribe.DecisionReprocess
	case "c", "cancel":
		return scribe.DecisionCancel
	default:
		return scribe.DecisionReuse
	}
}

func printEntries(ctx context.Context, store *scribe.HistoryStore) error {
	entries, err := store.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("history is empty")
		return nil
	}
	for _, e := range entries {
		meta, _ := e.DecodeMetadata()
		versions, _ := e.DecodeSummaries()
		fmt.Printf("%s  %s  %s  %d summaries  %d words\n",
			e.Fingerprint[:12],
			time.UnixMilli(e.ProcessedAt).Format("2006-01-02 15:04"),
			e.FileName,
			len(versions),
			meta.WordCount,
		)
	}
	return nil
}

func printEntrySummary(entry *scribe.HistoryEntry) {
	versions, _ := entry.DecodeSummaries()
	if len(versions) == 0 {
		fmt.Printf("%s: processed, no summary\n", entry.FileName)
		return
	}
	notes := versions[len(versions)-1].Summary.Notes
	fmt.Printf("\n%s\n%s\n", entry.FileName, notes.Summary)
	for _, a := range notes.ActionItems {
		line := "  - " + a.Item
		if a.Owner != "" {
			line += " (" + a.Owner + ")"
		}
		fmt.Println(line)
	}
}
