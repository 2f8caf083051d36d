package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhanhq/actionbridge/internal/action"
)

// DefaultStaleWindow is how long an uncommitted staging file may sit in the
// directory before the janitor reclaims it.
const DefaultStaleWindow = time.Hour

// PurgeStale removes staging files older than the given window, recovering
// from producers that died between staging write and commit. Only
// staging-prefixed entries are eligible; committed items are never purged by
// age. Returns the number of files removed.
func (s *Store) PurgeStale(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("enumerate queue: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !action.IsStagingName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Printf("janitor: remove stale staging file %s failed: %v", e.Name(), err)
			continue
		}
		s.logger.Printf("janitor: removed stale staging file %s", e.Name())
		removed++
	}

	return removed, nil
}
