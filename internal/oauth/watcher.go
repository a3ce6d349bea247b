package oauth

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long to wait after the last file event
// before firing OnChange. Atomic saves produce a create+rename burst.
const DefaultDebounceInterval = 500 * time.Millisecond

// StoreWatcher watches the token file for external changes, so a running
// server picks up a credential written by a separate 'smartthings-mcp login'
// process without a restart.
//
// The watch is on the parent directory rather than the file itself: atomic
// saves replace the file, which would silently drop a file-level watch.
type StoreWatcher struct {
	mu sync.Mutex

	path     string
	onChange func()
	debounce time.Duration

	fsWatcher     *fsnotify.Watcher
	stopCh        chan struct{}
	running       bool
	debounceTimer *time.Timer
}

// NewStoreWatcher creates a watcher for the token file at path. onChange is
// called (debounced) whenever the file is created, replaced, or modified.
func NewStoreWatcher(path string, onChange func()) *StoreWatcher {
	return &StoreWatcher{
		path:     path,
		onChange: onChange,
		debounce: DefaultDebounceInterval,
	}
}

// Start begins watching. It is a no-op if already running.
func (w *StoreWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.loop()

	slog.Debug("Watching token file for changes", "path", w.path)
	return nil
}

func (w *StoreWatcher) loop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.scheduleChange()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Token file watcher error", "error", err.Error())
		case <-w.stopCh:
			return
		}
	}
}

// scheduleChange fires onChange after the debounce interval, resetting the
// timer on each new event.
func (w *StoreWatcher) scheduleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		slog.Info("Token file changed on disk, reloading credential", "path", w.path)
		w.onChange()
	})
}

// Stop stops watching. Safe to call multiple times.
func (w *StoreWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	_ = w.fsWatcher.Close()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
}
