package queue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adhanhq/actionbridge/internal/action"
)

// Enqueue durably appends one action to the store.
//
// The write happens in two steps: the payload goes to a dot-prefixed staging
// file first, then a coordinated atomic rename commits it under its final
// name. A drain enumeration therefore observes the item either not at all or
// fully written — never truncated. The producer process may be killed at any
// point after Enqueue returns without corrupting the store.
func (s *Store) Enqueue(a action.Action) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}

	data, err := action.Encode(a)
	if err != nil {
		return err
	}

	staging := filepath.Join(s.dir, action.StagingName(a.CompletedAt))
	if err := s.writeStaging(staging, data); err != nil {
		// The staging file may be half-written; remove it rather than leave
		// it for the janitor.
		_ = os.Remove(staging)
		return err
	}

	final := filepath.Join(s.dir, action.ItemName(a.CompletedAt))
	if err := s.coord.Move(staging, final); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("commit queue item: %w", err)
	}

	return nil
}

func (s *Store) writeStaging(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	return nil
}
