package scribe

import (
	"strings"
	"testing"
)

func TestParseNotes(t *testing.T) {
	body := `{
		"summary": "Planning sync about the Q3 roadmap.",
		"participants": ["Ana", "Ben"],
		"conclusions": ["Scope is final"],
		"decisions": ["Ship in September"],
		"action_items": [{"item": "Draft the announcement", "owner": "Ana", "due_date": "2026-09-15"}]
	}`

	tests := []struct {
		name string
		raw  string
	}{
		{name: "bare json", raw: body},
		{name: "fenced json", raw: "```json\n" + body + "\n```"},
		{name: "surrounding prose", raw: "Here are the notes you asked for:\n" + body + "\nLet me know!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := parseNotes(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(notes.Summary, "Planning sync") {
				t.Fatalf("unexpected summary: %q", notes.Summary)
			}
			if len(notes.Participants) != 2 || len(notes.ActionItems) != 1 {
				t.Fatalf("unexpected notes: %+v", notes)
			}
			if notes.ActionItems[0].Owner != "Ana" {
				t.Fatalf("unexpected action item: %+v", notes.ActionItems[0])
			}
		})
	}
}

func TestParseNotes_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no json", raw: "I could not summarize this."},
		{name: "broken json", raw: `{"summary": "x",`},
		{name: "empty summary", raw: `{"summary": "  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseNotes(tt.raw); err == nil {
				t.Fatalf("expected error for %q", tt.raw)
			}
		})
	}
}

func TestNewGeminiSummarizer_RequiresKeys(t *testing.T) {
	if _, err := NewGeminiSummarizer(GeminiConfig{}, newTestLogger()); err == nil {
		t.Fatal("expected error without api keys")
	}
	s, err := NewGeminiSummarizer(GeminiConfig{APIKeys: []string{"k1", "k2"}}, newTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	g, ok := s.(*geminiSummarizer)
	if !ok {
		t.Fatalf("unexpected summarizer type %T", s)
	}
	if g.model != "gemini-2.5-flash" {
		t.Fatalf("expected default model, got %q", g.model)
	}
	g.rotateKey()
	g.rotateKey()
	if g.currentKey != 0 {
		t.Fatalf("rotation must wrap, got index %d", g.currentKey)
	}
}
