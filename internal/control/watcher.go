// Package control handles out-of-band run control via the .foreman
// directory. A running foreman watches its signals directory; dropping a
// cancel file there stops the run from another terminal.
package control

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// cancelFile is the signal file name that cancels the active run.
const cancelFile = "cancel"

// Watcher monitors the signals directory for a cancel file. It prefers
// fsnotify for immediate delivery and falls back to a direct stat check
// in ShouldCancel in case the watcher missed the event.
type Watcher struct {
	dir string

	mu       sync.RWMutex
	canceled bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher rooted at dir (the .foreman directory).
// The signals directory is created if it does not exist. Watcher setup
// failures are not fatal: the stat fallback still works without one.
func NewWatcher(dir string) (*Watcher, error) {
	signalsDir := filepath.Join(dir, "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:  dir,
		done: make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fsw.Add(signalsDir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw

	go w.watchSignals()
	return w, nil
}

// watchSignals monitors the signals directory for the cancel file.
func (w *Watcher) watchSignals() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == cancelFile &&
				(event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				w.mu.Lock()
				w.canceled = true
				w.mu.Unlock()
			}
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// ShouldCancel returns true once a cancel signal has been received.
func (w *Watcher) ShouldCancel() bool {
	if _, err := os.Stat(filepath.Join(w.dir, "signals", cancelFile)); err == nil {
		w.mu.Lock()
		w.canceled = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.canceled
}

// SendCancel creates the cancel signal file.
func (w *Watcher) SendCancel() error {
	path := filepath.Join(w.dir, "signals", cancelFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the cancel file and resets the watcher's state, so a
// fresh run can start in the same directory.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.canceled = false
	os.Remove(filepath.Join(w.dir, "signals", cancelFile))
}

// Bind invokes cancel when a cancel signal arrives. It polls until the
// returned stop function is called; the poll covers the case where the
// fsnotify watcher could not be set up.
func (w *Watcher) Bind(cancel func(), interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				if w.ShouldCancel() {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(stopCh) }
}

// Close shuts down the watcher.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}
