package control

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a config file and invokes a callback when it changes,
// so a strategy edit on disk acts as a set-strategy command without a
// restart. The parent directory is watched rather than the file itself:
// editors that write via rename would otherwise detach the watch.
type Watcher struct {
	path     string
	onChange func(ctx context.Context)
	logger   *slog.Logger
	fs       *fsnotify.Watcher
}

// NewWatcher creates a Watcher for path. onChange runs on the watcher
// goroutine; keep it short or hand off.
func NewWatcher(path string, logger *slog.Logger, onChange func(ctx context.Context)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}

	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{path: abs, onChange: onChange, logger: logger, fs: fs}, nil
}

// Run blocks processing filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.DebugContext(ctx, "config file changed",
				slog.String("path", w.path),
				slog.String("op", event.Op.String()),
			)
			w.onChange(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watcher error", slog.String("error", err.Error()))
		}
	}
}
