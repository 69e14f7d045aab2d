package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Tracker watches a workspace root and accumulates the set of files
// modified since they were last marked clean. The auto-checkpoint path
// marks a file clean whenever it is snapshotted, so Dirty() is the set of
// candidates for the next automatic checkpoint.
type Tracker struct {
	root     string
	debounce time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	started bool
	closed  bool
	mu      sync.Mutex

	dirty   map[string]time.Time
	dirtyMu sync.Mutex

	timers   map[string]*time.Timer
	timersMu sync.Mutex
}

// NewTracker creates a Tracker for the given workspace root. Existing
// subdirectories are watched immediately; directories created later are
// picked up from their create events.
func NewTracker(root string, debounce time.Duration) (*Tracker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	t := &Tracker{
		root:     abs,
		debounce: debounce,
		watcher:  watcher,
		done:     make(chan struct{}),
		dirty:    make(map[string]time.Time),
		timers:   make(map[string]*time.Timer),
	}

	if err := t.watchTree(abs); err != nil {
		watcher.Close()
		return nil, err
	}

	return t, nil
}

// watchTree adds root and every subdirectory to the watch set
func (t *Tracker) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return t.watcher.Add(path)
		}
		return nil
	})
}

// Start begins processing events
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("tracker is closed")
	}
	if t.started {
		return fmt.Errorf("tracker already started")
	}
	t.started = true

	go t.run()

	return nil
}

// Close stops the tracker and releases its resources
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.started {
		close(t.done)
	}

	t.timersMu.Lock()
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = make(map[string]*time.Timer)
	t.timersMu.Unlock()

	return t.watcher.Close()
}

// run is the event loop
func (t *Tracker) run() {
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleEvent(event)

		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}

		case <-t.done:
			return
		}
	}
}

// handleEvent debounces write/create events into the dirty set
func (t *Tracker) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			t.watcher.Add(event.Name)
			return
		}
	}

	path := event.Name

	t.timersMu.Lock()
	defer t.timersMu.Unlock()

	if timer, exists := t.timers[path]; exists {
		timer.Stop()
	}
	t.timers[path] = time.AfterFunc(t.debounce, func() {
		t.dirtyMu.Lock()
		t.dirty[path] = time.Now()
		t.dirtyMu.Unlock()

		t.timersMu.Lock()
		delete(t.timers, path)
		t.timersMu.Unlock()
	})
}

// Dirty returns the files modified since they were last marked clean,
// sorted for stable iteration
func (t *Tracker) Dirty() []string {
	t.dirtyMu.Lock()
	defer t.dirtyMu.Unlock()

	paths := make([]string, 0, len(t.dirty))
	for path := range t.dirty {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return paths
}

// MarkClean removes a file from the dirty set, typically right after it
// has been checkpointed
func (t *Tracker) MarkClean(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	t.dirtyMu.Lock()
	delete(t.dirty, abs)
	t.dirtyMu.Unlock()
}

// Reset clears the entire dirty set
func (t *Tracker) Reset() {
	t.dirtyMu.Lock()
	t.dirty = make(map[string]time.Time)
	t.dirtyMu.Unlock()
}
