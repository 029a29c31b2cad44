package scribe

import (
	"context"
	"io"
	"log"
	"strings"
)

// Logger is the leveled observability sink used across the package. History
// read failures are reported here instead of being surfaced as fatal errors.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

type stdLogger struct {
	logger *log.Logger
	level  int
}

// NewLogger creates a Logger writing to w at the given minimum level
// (debug, info, warn, error). Unknown levels default to info.
func NewLogger(w io.Writer, level string) Logger {
	return &stdLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  parseLevel(level),
	}
}

func parseLevel(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *stdLogger) logf(level int, tag string, msg string, args ...any) {
	if level < l.level {
		return
	}
	l.logger.Printf(tag+" "+msg, args...)
}

func (l *stdLogger) Debug(_ context.Context, msg string, args ...any) {
	l.logf(levelDebug, "[DEBUG]", msg, args...)
}

func (l *stdLogger) Info(_ context.Context, msg string, args ...any) {
	l.logf(levelInfo, "[INFO]", msg, args...)
}

func (l *stdLogger) Warn(_ context.Context, msg string, args ...any) {
	l.logf(levelWarn, "[WARN]", msg, args...)
}

func (l *stdLogger) Error(_ context.Context, msg string, args ...any) {
	l.logf(levelError, "[ERROR]", msg, args...)
}
