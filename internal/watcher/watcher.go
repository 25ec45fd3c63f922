// Package watcher reports changes to the corpus file.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"assistant/internal/logging"
)

// Operation is the kind of change observed.
type Operation int

const (
	Created Operation = iota
	Modified
	Deleted
)

func (o Operation) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Event describes a change to the watched file.
type Event struct {
	Path      string
	Operation Operation
}

// FileWatcher watches a single file. It watches the parent directory so
// editors that replace the file on save are still seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  *slog.Logger
}

// New creates a watcher for path.
func New(path string, logger *slog.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		watcher: w,
		path:    filepath.Clean(abs),
		logger:  logging.Component(logger, "watcher"),
	}, nil
}

// Watch starts monitoring and emits events until ctx is done or Stop is called.
func (w *FileWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return nil, err
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}

				var op Operation
				switch {
				case event.Has(fsnotify.Create):
					op = Created
				case event.Has(fsnotify.Write):
					op = Modified
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					op = Deleted
				default:
					continue
				}

				select {
				case events <- Event{Path: w.path, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", slog.Any("error", err))
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FileWatcher) Stop() error {
	return w.watcher.Close()
}
