// Package watcher monitors the dumped tree and reports batches of relevant
// changes after a quiet period.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/CageChen/repodump/internal/logger"
	"github.com/CageChen/repodump/internal/scan"
)

// EventType represents the type of file system event
type EventType int

// File system event types.
const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	}
	return "unknown"
}

// Event represents a file system change event
type Event struct {
	Type EventType
	// Path is relative to the watched root, with forward slashes.
	Path string
}

// Callback receives the events collected during one debounce window.
type Callback func([]Event)

// Watcher monitors file system changes under a root directory. Changes the
// rules would never dump (excluded directories, the output file, unknown
// extensions) are ignored.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	rules    *scan.Rules
	debounce time.Duration
	log      logger.Logger

	callbacks []Callback
	mu        sync.RWMutex

	pendingMu sync.Mutex
	pending   []Event
	timer     *time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new file system watcher
func New(root string, rules *scan.Rules, debounce time.Duration, log logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		watcher:  w,
		root:     root,
		rules:    rules,
		debounce: debounce,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// OnChange registers a callback for debounced change batches
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start watches every non-excluded directory under the root and begins
// processing events in the background.
func (w *Watcher) Start() error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	go w.eventLoop()
	return nil
}

// Stop stops the watcher. Pending batches are dropped.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pending = nil
		w.pendingMu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.log.LogWarn(fmt.Sprintf("cannot walk %s: %v", path, err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.rules.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.LogWarn(fmt.Sprintf("cannot watch %s: %v", path, err))
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
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
			w.log.LogError(fmt.Sprintf("watcher error: %v", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}

	dir := isDir(event.Name)
	if dir && eventType == EventCreate {
		if w.rules.SkipDir(filepath.Base(event.Name)) {
			return
		}
		// New directories may arrive already populated.
		if err := w.addTree(event.Name); err != nil {
			w.log.LogWarn(fmt.Sprintf("cannot watch %s: %v", event.Name, err))
		}
	}
	if !dir && !w.rules.Include(rel) {
		return
	}

	w.log.LogDebug(fmt.Sprintf("change: %s %s", eventType, rel))
	w.schedule(Event{Type: eventType, Path: rel})
}

// schedule queues e and restarts the debounce timer.
func (w *Watcher) schedule(e Event) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	w.pending = append(w.pending, e)
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	batch := w.pending
	w.pending = nil
	w.pendingMu.Unlock()

	if len(batch) == 0 {
		return
	}

	w.mu.RLock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(batch)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
