package scribe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchHandler processes one newly detected audio file.
type WatchHandler func(ctx context.Context, path string) error

// Watcher monitors an intake directory and hands new audio files to a
// handler, bounded by a semaphore.
type Watcher struct {
	dir           string
	handler       WatchHandler
	log           Logger
	fs            *fsnotify.Watcher
	maxConcurrent int
	semaphore     chan struct{}
	wg            sync.WaitGroup
}

func NewWatcher(dir string, handler WatchHandler, log Logger, maxConcurrent int) (*Watcher, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:           dir,
		handler:       handler,
		log:           log,
		fs:            fs,
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
	}, nil
}

// Start blocks until ctx is cancelled, processing create events for audio
// files. In-flight handlers are waited for on shutdown.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info(ctx, "watching %s (max concurrent: %d)", w.dir, w.maxConcurrent)

	for {
		select {
		case <-ctx.Done():
			w.log.Info(ctx, "waiting for in-flight processing to finish")
			w.wg.Wait()
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !isAudioFile(event.Name) {
				w.log.Debug(ctx, "ignoring non-audio file: %s", event.Name)
				continue
			}
			w.log.Info(ctx, "new recording detected: %s", event.Name)

			// Small delay so the file is fully written before we read it.
			time.Sleep(500 * time.Millisecond)

			select {
			case w.semaphore <- struct{}{}:
				w.wg.Add(1)
				go func(path string) {
					defer w.wg.Done()
					defer func() { <-w.semaphore }()
					if err := w.handler(ctx, path); err != nil {
						w.log.Error(ctx, "failed to process %s: %v", path, err)
					}
				}(event.Name)
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Error(ctx, "watcher error: %v", err)
		}
	}
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.fs.Close()
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".m4a", ".mp4", ".aac", ".flac", ".ogg", ".webm":
		return true
	}
	return false
}
