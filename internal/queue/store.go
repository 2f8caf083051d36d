// Package queue implements the durable queue store: a directory of immutable,
// uniquely named files, one per pending action, shared between producer and
// consumer processes.
package queue

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/adhanhq/actionbridge/internal/action"
	"github.com/adhanhq/actionbridge/internal/coord"
)

// Store is the durable queue over one shared directory. All mutation is
// file create/rename/delete through the coordinator; the Store itself holds
// no cross-process state.
type Store struct {
	dir    string
	coord  coord.Coordinator
	logger *log.Logger
}

// NewStore creates a store over dir. The directory itself is created lazily
// on first enqueue.
func NewStore(dir string, c coord.Coordinator, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Store{dir: dir, coord: c, logger: logger}
}

// Dir returns the queue directory path.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the queue directory if missing. Two producers racing to
// create it both succeed: MkdirAll treats "already exists" as success.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}
	return nil
}

// Pending counts committed queue items without reading them.
func (s *Store) Pending() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("enumerate queue: %w", err)
	}

	n := 0
	for _, e := range entries {
		if !e.IsDir() && action.IsItemName(e.Name()) {
			n++
		}
	}
	return n, nil
}

// Put writes an action directly under its final committed name, bypassing
// the staging step. Only migration uses this: the legacy format has no
// concurrent producers, so the staging dance buys nothing there.
func (s *Store) Put(a action.Action) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	data, err := action.Encode(a)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, action.ItemName(a.CompletedAt))
	if err := s.coord.Write(path, data); err != nil {
		return fmt.Errorf("write queue item: %w", err)
	}
	return nil
}
