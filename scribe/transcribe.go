package scribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Transcriber produces a transcript and the audio duration in seconds.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, float64, error)
}

type whisperTranscriber struct {
	cfg  WhisperConfig
	exec Executor
	log  Logger
}

// NewWhisperTranscriber runs a whisper.cpp binary against the audio file and
// parses its SRT output. Duration comes from ffprobe, falling back to the
// last segment's end time.
func NewWhisperTranscriber(cfg WhisperConfig, exec Executor, log Logger) Transcriber {
	return &whisperTranscriber{cfg: cfg, exec: exec, log: log}
}

func (w *whisperTranscriber) Transcribe(ctx context.Context, audioPath string) (Transcript, float64, error) {
	workDir, err := os.MkdirTemp("", "scribe-whisper-*")
	if err != nil {
		return Transcript{}, 0, err
	}
	defer os.RemoveAll(workDir)
	outputPrefix := filepath.Join(workDir, "transcript")

	// -osrt emits <prefix>.srt; -ml/-mc 0 lift segment limits for long audio.
	args := []string{
		"-m", w.cfg.ModelPath,
		"-f", audioPath,
		"-osrt",
		"-l", w.cfg.Language,
		"-t", strconv.Itoa(w.cfg.Threads),
		"-ml", "0",
		"-mc", "0",
		"--output-file", outputPrefix,
	}
	w.log.Info(ctx, "transcribing %s with %d threads", audioPath, w.cfg.Threads)
	if _, err := w.exec.Execute(ctx, w.cfg.BinaryPath, args...); err != nil {
		return Transcript{}, 0, fmt.Errorf("whisper transcribe: %w", err)
	}

	srt, err := os.ReadFile(outputPrefix + ".srt")
	if err != nil {
		return Transcript{}, 0, fmt.Errorf("read whisper output: %w", err)
	}
	segments := parseSRT(string(srt))

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	t := Transcript{
		Text:     strings.Join(texts, " "),
		Segments: segments,
		Model:    "whisper.cpp/" + filepath.Base(w.cfg.ModelPath),
	}

	duration := w.probeDuration(ctx, audioPath)
	if duration == 0 && len(segments) > 0 {
		if end := segments[len(segments)-1].EndTime; end != nil {
			duration = *end
		}
	}
	return t, duration, nil
}

func (w *whisperTranscriber) probeDuration(ctx context.Context, audioPath string) float64 {
	out, err := w.exec.Execute(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		w.log.Warn(ctx, "ffprobe duration failed for %s: %v", audioPath, err)
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		w.log.Warn(ctx, "ffprobe duration unparseable for %s: %q", audioPath, out)
		return 0
	}
	return d
}

// parseSRT converts SRT subtitle content into transcript segments. Whisper
// does no diarization, so every segment gets the unknown-speaker label "UU"
// unless the text itself carries an "S<n>:" prefix.
func parseSRT(content string) []TranscriptSegment {
	var segments []TranscriptSegment
	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}
		i := 0
		// Optional sequence-number line.
		if _, err := strconv.Atoi(strings.TrimSpace(lines[i])); err == nil {
			i++
		}
		if i >= len(lines) || !strings.Contains(lines[i], "-->") {
			continue
		}
		start, end, ok := parseSRTTimes(lines[i])
		i++
		text := strings.TrimSpace(strings.Join(lines[i:], " "))
		if text == "" {
			continue
		}
		speaker := "UU"
		if m := srtSpeakerPrefix(text); m != "" {
			speaker = m
			text = strings.TrimSpace(strings.TrimPrefix(text, m+":"))
		}
		seg := TranscriptSegment{Speaker: speaker, Text: text}
		if ok {
			s, e := start, end
			seg.StartTime = &s
			seg.EndTime = &e
		}
		segments = append(segments, seg)
	}
	return segments
}

// parseSRTTimes parses a "00:01:02,500 --> 00:01:04,000" line into seconds.
func parseSRTTimes(line string) (float64, float64, bool) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok1 := parseSRTTimestamp(strings.TrimSpace(parts[0]))
	end, ok2 := parseSRTTimestamp(strings.TrimSpace(parts[1]))
	return start, end, ok1 && ok2
}

func parseSRTTimestamp(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return float64(h)*3600 + float64(m)*60 + sec, true
}

func srtSpeakerPrefix(text string) string {
	idx := strings.Index(text, ":")
	if idx <= 0 || idx > 4 {
		return ""
	}
	label := text[:idx]
	if !strings.HasPrefix(label, "S") {
		return ""
	}
	if _, err := strconv.Atoi(label[1:]); err != nil {
		return ""
	}
	return label
}
