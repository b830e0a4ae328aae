package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to a single file. Bursts of events within the
// debounce window are coalesced into one update; a nil value on Update means
// the file changed, a non-nil value is a watch error.
type Watcher struct {
	watcher  *fsnotify.Watcher
	filename string
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	updates chan error
	Update  <-chan error
}

// WatchFile starts watching filename. The parent directory is watched so that
// editors replacing the file through a rename are still seen.
func WatchFile(filename string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", filename, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filename, err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	updates := make(chan error, 1)
	w := &Watcher{
		watcher:  watcher,
		filename: abs,
		debounce: debounce,
		updates:  updates,
		Update:   updates,
	}

	go w.process()

	return w, nil
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) debounceUpdate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.send(nil)
	})
}

// send drops the value when an update is already pending.
func (w *Watcher) send(err error) {
	select {
	case w.updates <- err:
	default:
	}
}

func (w *Watcher) process() {
	for {
		select {
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.filename {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.debounceUpdate()
			}
		}
	}
}
