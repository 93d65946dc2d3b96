// Package reload watches the configuration file and applies the settings
// that can change without a restart.
package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventType describes a configuration file change.
type EventType string

// EventModified is sent when the file is written or replaced.
const EventModified EventType = "modified"

// Event is a configuration file change notification.
type Event struct {
	Type       EventType
	ConfigPath string
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	ConfigPath string
}

// Watcher reports changes of one configuration file. The parent directory
// is watched so editors that replace the file on save are seen too.
// Bursts are coalesced: at most one event is pending at a time.
type Watcher struct {
	cfg    WatcherConfig
	events chan Event

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher. Nothing is watched until Start.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:    cfg,
		events: make(chan Event, 1),
	}
}

// Start begins watching. Later calls are no-ops.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.cfg.ConfigPath)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("reload: watching %s: %w", w.cfg.ConfigPath, err)
	}
	w.fsw = fsw
	w.stopped = make(chan struct{})
	go w.loop(ctx, fsw, w.stopped)
	return nil
}

// Events returns the channel of change notifications.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops watching and waits for the loop to exit. Safe to call
// multiple times and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw, stopped := w.fsw, w.stopped
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	w.stopOnce.Do(func() { _ = fsw.Close() })
	<-stopped
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, stopped chan struct{}) {
	defer close(stopped)
	target := filepath.Clean(w.cfg.ConfigPath)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			select {
			case w.events <- Event{Type: EventModified, ConfigPath: w.cfg.ConfigPath}:
			default:
			}
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}
