package scribe

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

func newTestLogger() Logger {
	return NewLogger(io.Discard, "error")
}

func newTestStore(t *testing.T, capacity int) *HistoryStore {
	t.Helper()
	return NewHistoryStore(filepath.Join(t.TempDir(), "scribe.db"), capacity, newTestLogger())
}

func makeEntry(t *testing.T, fingerprint string, fileName string, processedAt int64) *HistoryEntry {
	t.Helper()
	e := &HistoryEntry{
		Fingerprint: fingerprint,
		FileName:    fileName,
		FileSize:    1024,
		Duration:    60,
		ProcessedAt: processedAt,
	}
	if err := e.SetTranscript(Transcript{
		Text: "hello from the meeting",
		Segments: []TranscriptSegment{
			{Speaker: "S1", Text: "hello from"},
			{Speaker: "S2", Text: "the meeting"},
		},
		Model: "whisper.cpp/ggml-base.bin",
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.SetSummaries(nil); err != nil {
		t.Fatal(err)
	}
	if err := e.SetMetadata(EntryMetadata{TranscriptionModel: "whisper.cpp/ggml-base.bin", SpeakerCount: 2, WordCount: 4}); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestHistoryStore_PutGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	e := makeEntry(t, "fp-1", "standup.wav", 100)
	if err := store.Put(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "fp-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FileName != "standup.wav" || got.ProcessedAt != 100 || got.FileSize != 1024 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	transcript, err := got.DecodeTranscript()
	if err != nil {
		t.Fatal(err)
	}
	if transcript.Text != "hello from the meeting" || len(transcript.Segments) != 2 {
		t.Fatalf("transcript mismatch: %+v", transcript)
	}
}

func TestHistoryStore_GetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	_, err := store.Get(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestHistoryStore_UpsertReplacesByFingerprint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	// Two uploads with identical content but different names: one entry,
	// file name from whichever was stored last.
	first := makeEntry(t, "fp-same", "monday.wav", 100)
	second := makeEntry(t, "fp-same", "tuesday.wav", 200)
	if err := store.Put(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, second); err != nil {
		t.Fatal(err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry after upsert, got %d", count)
	}
	got, err := store.Get(ctx, "fp-same")
	if err != nil {
		t.Fatal(err)
	}
	if got.FileName != "tuesday.wav" || got.ProcessedAt != 200 {
		t.Fatalf("expected last write to win, got %+v", got)
	}
}

func TestHistoryStore_EvictionKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	for i, processedAt := range []int64{100, 200, 300} {
		e := makeEntry(t, string(rune('a'+i))+"-fp", "rec.wav", processedAt)
		if err := store.Put(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected capacity bound 2, got %d", count)
	}
	entries, err := store.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].ProcessedAt != 300 || entries[1].ProcessedAt != 200 {
		got := make([]int64, 0, len(entries))
		for _, e := range entries {
			got = append(got, e.ProcessedAt)
		}
		t.Fatalf("expected processed_at {300, 200}, got %v", got)
	}
}

func TestHistoryStore_AppendSummaryVersionMonotonic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	if err := store.Put(ctx, makeEntry(t, "fp-v", "retro.wav", 100)); err != nil {
		t.Fatal(err)
	}

	const n = 3
	for i := 0; i < n; i++ {
		summary := SummaryResult{
			Notes:    MeetingNotes{Summary: "revision"},
			LLMModel: "gemini-2.5-flash",
		}
		if _, err := store.AppendSummaryVersion(ctx, "fp-v", summary, int64(1000+i)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Get(ctx, "fp-v")
	if err != nil {
		t.Fatal(err)
	}
	versions, err := got.DecodeSummaries()
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != n {
		t.Fatalf("expected %d versions, got %d", n, len(versions))
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Fatalf("expected versions[%d].version == %d, got %d", i, i+1, v.Version)
		}
	}
	meta, err := got.DecodeMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.LLMModel != "gemini-2.5-flash" {
		t.Fatalf("expected metadata llm_model refreshed, got %q", meta.LLMModel)
	}
	// ProcessedAt stays the first-processed time.
	if got.ProcessedAt != 100 {
		t.Fatalf("append must not touch processed_at, got %d", got.ProcessedAt)
	}
}

func TestHistoryStore_AppendToUnknownFingerprint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	_, err := store.AppendSummaryVersion(ctx, "nope", SummaryResult{}, 1)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestHistoryStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	// Deleting an absent fingerprint is a no-op, not an error.
	if err := store.Delete(ctx, "absent"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		e := makeEntry(t, string(rune('a'+i)), "rec.wav", int64(100*(i+1)))
		if err := store.Put(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 after delete, got %d", count)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	count, err = store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected empty store after clear, got %d", count)
	}
}

func TestHistoryStore_GetAllDropsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 10)

	if err := store.Put(ctx, makeEntry(t, "good", "ok.wav", 200)); err != nil {
		t.Fatal(err)
	}
	// Write a row whose summaries column is garbage, bypassing Put.
	err := store.withDB(ctx, func(db *gorm.DB) error {
		return db.Create(&HistoryEntry{
			Fingerprint:   "broken",
			FileName:      "bad.wav",
			ProcessedAt:   100,
			SummariesJSON: "{definitely not json",
		}).Error
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := store.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Fingerprint != "good" {
		t.Fatalf("expected only the good entry, got %+v", entries)
	}

	// Single-record get of the malformed row reads as not-found, not a panic.
	if _, err := store.Get(ctx, "broken"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound for malformed row, got %v", err)
	}
}

func TestHistoryStore_OpenFailureIsStoreOpenError(t *testing.T) {
	ctx := context.Background()
	// A directory is not a usable database file.
	store := NewHistoryStore(t.TempDir(), 10, newTestLogger())

	_, err := store.Get(ctx, "anything")
	if !errors.Is(err, ErrStoreOpen) {
		t.Fatalf("expected ErrStoreOpen, got %v", err)
	}
	if err := store.Put(ctx, makeEntry(t, "x", "x.wav", 1)); !errors.Is(err, ErrStoreOpen) {
		t.Fatalf("expected ErrStoreOpen from put, got %v", err)
	}
}
