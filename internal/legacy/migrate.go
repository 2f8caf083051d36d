// Package legacy converts the older single-blob queue representation into
// the per-item file format. Migration is one-time, best-effort, and runs off
// the enqueue/drain critical path.
package legacy

import (
	"log"
	"os"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/adhanhq/actionbridge/internal/action"
	"github.com/adhanhq/actionbridge/internal/queue"
)

// BlobFileName is the legacy representation: one JSON array of actions,
// living at the root of the shared container.
const BlobFileName = "legacy_queue.json"

// Migrator performs the one-time migration. Concurrent first accesses within
// a process collapse to a single attempt; once an attempt finishes, further
// calls return immediately for the rest of the process lifetime. Two separate
// processes can still both migrate before the first blob deletion lands —
// an accepted rare-duplicate risk.
type Migrator struct {
	blobPath string
	store    *queue.Store
	logger   *log.Logger

	group singleflight.Group
	done  atomic.Bool
}

func NewMigrator(blobPath string, store *queue.Store, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Migrator{blobPath: blobPath, store: store, logger: logger}
}

// Done reports whether a migration attempt has completed in this process.
func (m *Migrator) Done() bool {
	return m.done.Load()
}

// Run migrates the legacy blob if present. Safe to call before every enqueue
// and drain; after the first completed attempt it is a cheap no-op.
func (m *Migrator) Run() {
	if m.done.Load() {
		return
	}
	m.group.Do("migrate", func() (any, error) {
		m.migrate()
		m.done.Store(true)
		return nil, nil
	})
}

// RunAsync triggers Run on a background goroutine, keeping migration off the
// caller's latency path. After the latch is set it spawns nothing.
func (m *Migrator) RunAsync() {
	if m.done.Load() {
		return
	}
	go m.Run()
}

func (m *Migrator) migrate() {
	data, err := os.ReadFile(m.blobPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Printf("migration: read legacy blob failed: %v", err)
		}
		return
	}

	actions, err := action.DecodeList(data)
	if err != nil {
		// A corrupt blob can never be migrated; delete it rather than retry
		// forever.
		m.logger.Printf("migration: legacy blob corrupt, deleting: %v", err)
		if rmErr := os.Remove(m.blobPath); rmErr != nil {
			m.logger.Printf("migration: delete corrupt blob failed: %v", rmErr)
		}
		return
	}

	migrated := 0
	for _, a := range actions {
		if err := m.store.Put(a); err != nil {
			m.logger.Printf("migration: write item for %s failed: %v", a.SubjectID, err)
			continue
		}
		migrated++
	}

	// The blob is only deleted once every action made it into the store;
	// otherwise it stays for a retry by a later process.
	if migrated < len(actions) {
		m.logger.Printf("migration: partial (%d/%d), leaving legacy blob in place", migrated, len(actions))
		return
	}

	if err := os.Remove(m.blobPath); err != nil {
		m.logger.Printf("migration: delete legacy blob failed: %v", err)
		return
	}
	m.logger.Printf("migration: converted %d legacy actions", migrated)
}
