package scribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

const fixtureSRT = `1
00:00:00,000 --> 00:00:02,500
Good morning everyone.

2
00:00:02,500 --> 00:00:05,000
Let's get started with the roadmap.

3
00:00:05,000 --> 00:00:07,250
S2: I have one addition.
`

// mockExecutor stands in for whisper and ffprobe. The whisper call writes
// the SRT fixture to the requested output prefix.
type mockExecutor struct {
	mu        sync.Mutex
	calls     [][]string
	srt       string
	ffprobe   string
	failProbe bool
}

func (m *mockExecutor) Execute(_ context.Context, name string, args ...string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string{name}, args...))
	m.mu.Unlock()

	if name == "ffprobe" {
		if m.failProbe {
			return "", fmt.Errorf("mock ffprobe failure")
		}
		return m.ffprobe, nil
	}
	for i, a := range args {
		if a == "--output-file" && i+1 < len(args) {
			return "", os.WriteFile(args[i+1]+".srt", []byte(m.srt), 0o644)
		}
	}
	return "", fmt.Errorf("no --output-file argument in %v", args)
}

func TestWhisperTranscriber_Transcribe(t *testing.T) {
	exec := &mockExecutor{srt: fixtureSRT, ffprobe: "42.5\n"}
	tr := NewWhisperTranscriber(WhisperConfig{
		BinaryPath: "/opt/whisper/main",
		ModelPath:  "/opt/whisper/ggml-base.bin",
		Language:   "en",
		Threads:    4,
	}, exec, newTestLogger())

	transcript, duration, err := tr.Transcribe(context.Background(), "meeting.wav")
	if err != nil {
		t.Fatal(err)
	}
	if duration != 42.5 {
		t.Fatalf("expected ffprobe duration 42.5, got %v", duration)
	}
	if len(transcript.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(transcript.Segments))
	}
	if transcript.Segments[0].Speaker != "UU" {
		t.Fatalf("expected unknown speaker label, got %q", transcript.Segments[0].Speaker)
	}
	if transcript.Segments[2].Speaker != "S2" || transcript.Segments[2].Text != "I have one addition." {
		t.Fatalf("speaker prefix not parsed: %+v", transcript.Segments[2])
	}
	if !strings.Contains(transcript.Text, "Good morning everyone.") {
		t.Fatalf("transcript text missing segment text: %q", transcript.Text)
	}
	if transcript.Model != "whisper.cpp/ggml-base.bin" {
		t.Fatalf("unexpected model identifier %q", transcript.Model)
	}
}

func TestWhisperTranscriber_DurationFallsBackToLastSegment(t *testing.T) {
	exec := &mockExecutor{srt: fixtureSRT, failProbe: true}
	tr := NewWhisperTranscriber(WhisperConfig{
		BinaryPath: "/opt/whisper/main",
		ModelPath:  "/opt/whisper/ggml-base.bin",
		Language:   "en",
		Threads:    1,
	}, exec, newTestLogger())

	_, duration, err := tr.Transcribe(context.Background(), "meeting.wav")
	if err != nil {
		t.Fatal(err)
	}
	if duration != 7.25 {
		t.Fatalf("expected last segment end 7.25, got %v", duration)
	}
}

func TestParseSRT(t *testing.T) {
	segments := parseSRT(fixtureSRT)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	first := segments[0]
	if first.StartTime == nil || *first.StartTime != 0 {
		t.Fatalf("unexpected start time: %+v", first.StartTime)
	}
	if first.EndTime == nil || *first.EndTime != 2.5 {
		t.Fatalf("unexpected end time: %+v", first.EndTime)
	}

	// Garbage in, nothing out.
	if got := parseSRT("no srt here"); len(got) != 0 {
		t.Fatalf("expected no segments, got %+v", got)
	}
	if got := parseSRT(""); len(got) != 0 {
		t.Fatalf("expected no segments for empty input, got %+v", got)
	}
}

func TestParseSRTTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "00:00:00,000", want: 0, ok: true},
		{in: "00:01:02,500", want: 62.5, ok: true},
		{in: "01:00:00,000", want: 3600, ok: true},
		{in: "62,5", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseSRTTimestamp(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseSRTTimestamp(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
