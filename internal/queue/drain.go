package queue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adhanhq/actionbridge/internal/action"
)

// Drain enumerates committed queue items and returns the actions that were
// both successfully read and successfully deleted, in enumeration order.
//
// An item that reads but fails to delete stays on disk and is excluded from
// the result: it must not be counted as delivered before its removal is
// confirmed. A delete failure usually means another drain got there first,
// so it is logged and otherwise ignored. A payload that fails to decode can
// never succeed; the corrupt file is deleted on the spot so it cannot block
// the queue.
func (s *Store) Drain() ([]action.Action, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerate queue: %w", err)
	}

	var drained []action.Action
	for _, e := range entries {
		if e.IsDir() || !action.IsItemName(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())

		data, err := s.coord.Read(path)
		if err != nil {
			s.logger.Printf("drain: read %s failed, leaving for retry: %v", e.Name(), err)
			continue
		}

		a, err := action.Decode(data)
		if err != nil {
			s.logger.Printf("drain: corrupt item %s, removing: %v", e.Name(), err)
			if rmErr := s.coord.Remove(path); rmErr != nil {
				s.logger.Printf("drain: remove corrupt item %s failed: %v", e.Name(), rmErr)
			}
			continue
		}

		if err := s.coord.Remove(path); err != nil {
			s.logger.Printf("drain: delete %s failed, leaving for later drain: %v", e.Name(), err)
			continue
		}

		drained = append(drained, a)
	}

	return drained, nil
}
