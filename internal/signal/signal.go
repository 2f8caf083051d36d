// Package signal implements the payload-free cross-process wake-up between
// producers and the consumer. Producers bump a well-known file inside the
// queue directory; the consumer watches the directory with fsnotify. The
// signal is a hint, not a guarantee: multiple notifications coalesce, and a
// wake-up may arrive with nothing to drain.
package signal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WakeFileName is the signal channel: one dot-prefixed file per bridge
// instance, excluded from drain enumeration by its leading dot.
const WakeFileName = ".wake"

// Notifier is the producer side of the signal.
type Notifier struct {
	dir string
}

func NewNotifier(dir string) *Notifier {
	return &Notifier{dir: dir}
}

// Notify broadcasts a wake-up by rewriting the wake file, which raises a
// write event for any watcher of the directory. Fire-and-forget: callers log
// the returned error at most; a lost signal only delays discovery until the
// consumer's next lifecycle-triggered drain.
func (n *Notifier) Notify() error {
	path := filepath.Join(n.dir, WakeFileName)
	stamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.WriteFile(path, []byte(stamp+"\n"), 0644); err != nil {
		return fmt.Errorf("write wake file: %w", err)
	}
	return nil
}
