package scribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DecisionFunc resolves a cache hit: it receives the entry matching the
// selected file's fingerprint and answers reuse, reprocess, or cancel.
type DecisionFunc func(entry *HistoryEntry) Decision

type RunnerConfig struct {
	DBPath   string
	Capacity int
	Whisper  WhisperConfig
	Gemini   GeminiConfig
	// ExportDir receives a .docx per processed entry. Empty disables export.
	ExportDir string
	// ArchivedDir receives intake files after watch-mode processing.
	ArchivedDir string
	// Decide resolves cache hits. Defaults to always reuse.
	Decide DecisionFunc
}

// Runner ties the cache-consult workflow to the transcribe/summarize
// pipeline and the docx export.
type Runner struct {
	store       *HistoryStore
	transcriber Transcriber
	summarizer  Summarizer
	decide      DecisionFunc
	exportDir   string
	archivedDir string
	log         Logger
}

func NewRunner(cfg RunnerConfig, log Logger) (*Runner, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("DBPath is required")
	}
	if strings.TrimSpace(cfg.Whisper.BinaryPath) == "" {
		return nil, fmt.Errorf("whisper binary_path is required")
	}
	if strings.TrimSpace(cfg.Whisper.ModelPath) == "" {
		return nil, fmt.Errorf("whisper model_path is required")
	}
	summarizer, err := NewGeminiSummarizer(cfg.Gemini, log)
	if err != nil {
		return nil, err
	}
	decide := cfg.Decide
	if decide == nil {
		decide = func(*HistoryEntry) Decision { return DecisionReuse }
	}
	return &Runner{
		store:       NewHistoryStore(cfg.DBPath, cfg.Capacity, log),
		transcriber: NewWhisperTranscriber(cfg.Whisper, NewExecutor(), log),
		summarizer:  summarizer,
		decide:      decide,
		exportDir:   cfg.ExportDir,
		archivedDir: cfg.ArchivedDir,
		log:         log,
	}, nil
}

// Store exposes the history store for list/delete/clear commands.
func (r *Runner) Store() *HistoryStore {
	return r.store
}

// ProcessFile runs the cache-consult workflow for one file and, when
// processing is needed, the full transcribe/summarize pipeline. Returns the
// resulting entry (cached or fresh), or nil when the selection was cancelled.
// History read/write failures degrade to in-memory results; they never fail
// the processing itself.
func (r *Runner) ProcessFile(ctx context.Context, path string) (*HistoryEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	consult := NewConsult(r.store, r.log)
	state, err := consult.SelectFile(ctx, filepath.Base(path), content)
	if err != nil {
		return nil, err
	}
	if state == StateAwaitingDecision {
		cached := consult.Entry()
		r.log.Info(ctx, "%s was already processed (fingerprint %s)", consult.FileName(), shortFingerprint(consult.Fingerprint()))
		state, err = consult.Decide(r.decide(cached))
		if err != nil {
			return nil, err
		}
	}

	switch state {
	case StateLoadedFromCache:
		r.log.Info(ctx, "reusing cached results for %s", consult.FileName())
		return consult.Entry(), nil
	case StateIdle:
		r.log.Info(ctx, "selection cancelled for %s", path)
		return nil, nil
	case StateReadyToProcess:
	default:
		return nil, fmt.Errorf("unexpected consult state %s", state)
	}

	transcript, duration, err := r.transcriber.Transcribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", path, err)
	}

	entry := &HistoryEntry{
		Fingerprint: consult.Fingerprint(),
		FileName:    consult.FileName(),
		FileSize:    int64(len(content)),
		Duration:    duration,
		ProcessedAt: nowMillis(),
	}
	if err := entry.SetTranscript(transcript); err != nil {
		return nil, err
	}
	if err := entry.SetSummaries(nil); err != nil {
		return nil, err
	}
	meta := ComputeMetadata(transcript, nil)
	if err := entry.SetMetadata(meta); err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, entry); err != nil {
		r.log.Warn(ctx, "history write failed for %s, continuing without it: %v", path, err)
	}

	summary, err := r.summarizer.Summarize(ctx, transcript.Text, "")
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", path, err)
	}

	generatedAt := nowMillis()
	updated, err := r.store.AppendSummaryVersion(ctx, entry.Fingerprint, summary, generatedAt)
	if err != nil {
		r.log.Warn(ctx, "history append failed for %s, keeping results in memory: %v", path, err)
		versions := []SummaryVersion{{Summary: summary, GeneratedAt: generatedAt, Version: 1}}
		_ = entry.SetSummaries(versions)
		meta.LLMModel = summary.LLMModel
		_ = entry.SetMetadata(meta)
		updated = entry
	}
	_ = consult.MarkPersisted()

	if r.exportDir != "" {
		if err := r.exportEntry(ctx, updated); err != nil {
			r.log.Warn(ctx, "docx export failed for %s: %v", path, err)
		}
	}
	return updated, nil
}

// Resummarize generates a fresh summary revision for an already-cached entry
// without touching the stored transcript or earlier revisions.
func (r *Runner) Resummarize(ctx context.Context, fingerprint string) (*HistoryEntry, error) {
	entry, err := r.store.Get(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	t, err := entry.DecodeTranscript()
	if err != nil {
		return nil, err
	}
	summary, err := r.summarizer.Summarize(ctx, t.Text, "")
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", fingerprint, err)
	}
	return r.store.AppendSummaryVersion(ctx, fingerprint, summary, nowMillis())
}

// HandleIntake is the watch-mode handler: process the file, then move it to
// the archived directory so it is not picked up again.
func (r *Runner) HandleIntake(ctx context.Context, path string) error {
	if _, err := r.ProcessFile(ctx, path); err != nil {
		return err
	}
	if r.archivedDir == "" {
		return nil
	}
	dst, err := MoveFileToDir(path, r.archivedDir)
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	r.log.Debug(ctx, "archived %s -> %s", path, dst)
	return nil
}

// ExportEntry writes the docx for a cached entry into dir.
func (r *Runner) ExportEntry(ctx context.Context, fingerprint string, dir string) (string, error) {
	entry, err := r.store.Get(ctx, fingerprint)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, docxName(entry.FileName))
	if err := WriteMeetingDocx(entry, out); err != nil {
		return "", err
	}
	return out, nil
}

func (r *Runner) exportEntry(ctx context.Context, entry *HistoryEntry) error {
	if err := os.MkdirAll(r.exportDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(r.exportDir, docxName(entry.FileName))
	if err := WriteMeetingDocx(entry, out); err != nil {
		return err
	}
	r.log.Info(ctx, "exported %s", out)
	return nil
}

func docxName(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if base == "" {
		base = "meeting-notes"
	}
	return base + ".docx"
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
