package signal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches a burst of enqueue events into one wake-up.
const DefaultDebounce = 500 * time.Millisecond

// Watcher is the consumer side of the signal: an fsnotify subscription on
// the queue directory. Create and write events (commit renames and wake-file
// bumps) are debounced into handler invocations.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  func()

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewWatcher creates a watcher that calls handler after each debounced burst
// of directory activity. A non-positive debounce falls back to the default.
func NewWatcher(dir string, debounce time.Duration, handler func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, handler: handler}
}

// Start creates the directory if needed and begins watching. The handler is
// invoked from a timer goroutine, never concurrently with Start.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends the subscription. Pending debounce timers are cancelled; a
// handler invocation already in flight runs to completion.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()

	w.timerMu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.kick()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// kick resets the debounce timer so a burst of events collapses into a
// single handler call.
func (w *Watcher) kick() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.handler)
}
