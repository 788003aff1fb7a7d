// Package watch notifies observers when the persisted step state of a
// task changes on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hochfrequenz/cargo-for-each/internal/state"
)

// Callback fires once a burst of state changes has settled.
type Callback func()

// StateWatcher monitors a task's state subtree. Step directories are
// created while a run is in progress, so newly appearing directories are
// added to the watch on the fly. Recording casts receive a continuous
// stream of writes; those are ignored so they cannot starve the debounce.
type StateWatcher struct {
	watcher  *fsnotify.Watcher
	callback Callback
	logger   *slog.Logger

	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer

	cancel context.CancelFunc
}

// NewStateWatcher watches the state subtree rooted at root. The root is
// created if it does not exist yet, so a watcher can be attached to a task
// before its first step has run.
func NewStateWatcher(root string, callback Callback, logger *slog.Logger) (*StateWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sw := &StateWatcher{
		watcher:  watcher,
		callback: callback,
		logger:   logger,
		debounce: 250 * time.Millisecond,
	}
	if err := sw.addRecursive(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return sw, nil
}

// Start begins delivering change notifications until ctx is done or Stop
// is called.
func (sw *StateWatcher) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sw.watcher.Events:
				if !ok {
					return
				}
				sw.handleEvent(event)
			case err, ok := <-sw.watcher.Errors:
				if !ok {
					return
				}
				sw.logger.Warn("state watcher error", "error", err)
			}
		}
	}()
}

// Stop ends watching and releases the underlying watcher.
func (sw *StateWatcher) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.watcher.Close()
}

// SetDebounce sets how long changes must settle before the callback fires.
func (sw *StateWatcher) SetDebounce(d time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.debounce = d
}

func (sw *StateWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Directories can vanish between listing and visiting while
			// a task is being removed.
			return nil
		}
		if info.IsDir() {
			return sw.watcher.Add(path)
		}
		return nil
	})
}

func (sw *StateWatcher) handleEvent(event fsnotify.Event) {
	relevant := false

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// A target or step directory appeared mid-run; watch it and
			// anything already created beneath it.
			if err := sw.addRecursive(event.Name); err != nil {
				sw.logger.Warn("could not watch new state directory", "path", event.Name, "error", err)
			}
			relevant = true
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0 {
		switch filepath.Base(event.Name) {
		case state.ExitStatusFile, state.ConfirmedFile:
			relevant = true
		}
	}
	if event.Op&fsnotify.Remove != 0 {
		// Removing a directory (task removal) changes completion too.
		relevant = true
	}

	if !relevant || sw.callback == nil {
		return
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.timer != nil {
		sw.timer.Stop()
	}
	sw.timer = time.AfterFunc(sw.debounce, sw.callback)
}
