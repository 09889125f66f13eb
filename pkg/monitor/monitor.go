// Package monitor watches the memory directory and reports when persisted
// knowledge files change on disk.
package monitor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sipeed/picomind/pkg/logger"
)

// Change describes one observed file modification.
type Change struct {
	Path    string
	Op      string
	ModTime time.Time
}

// Watcher reports write and create events under a directory. It never reads
// or modifies the files it watches.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func(Change)
}

// New creates a watcher for dir, creating dir if needed. onChange may be nil.
func New(dir string, onChange func(Change)) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, watcher: w, onChange: onChange}, nil
}

// Run blocks, dispatching events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	logger.InfoCF("monitor", "Watching memory directory", map[string]interface{}{
		"dir": w.dir,
	})

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.WarnCF("monitor", "Watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var op string
	switch {
	case event.Has(fsnotify.Create):
		op = "create"
	case event.Has(fsnotify.Write):
		op = "write"
	default:
		return
	}

	change := Change{Path: event.Name, Op: op}
	if info, err := os.Stat(event.Name); err == nil {
		change.ModTime = info.ModTime()
	}

	logger.DebugCF("monitor", "Memory file changed", map[string]interface{}{
		"path": change.Path,
		"op":   change.Op,
	})
	if w.onChange != nil {
		w.onChange(change)
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
