// Package bridge wires the durable queue store, the cross-process signal,
// the janitor and the legacy migration into the producer- and consumer-facing
// API. A Bridge is an explicitly constructed object owned by the process's
// composition root; there is no ambient shared instance.
package bridge

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhanhq/actionbridge/internal/action"
	"github.com/adhanhq/actionbridge/internal/coord"
	"github.com/adhanhq/actionbridge/internal/legacy"
	"github.com/adhanhq/actionbridge/internal/queue"
	"github.com/adhanhq/actionbridge/internal/signal"
)

// Layout of the shared container:
//
//	queue/                  durable queue store (plus the .wake signal file)
//	locks/coordination.lock cross-process file coordination
//	locks/watcher.lock      consumer daemon singleton guard
//	logs/                   consumer daemon log
//	legacy_queue.json       pre-migration single-blob queue, if any
//	bridge.yaml             configuration
const (
	QueueDirName = "queue"
	LocksDirName = "locks"
	LogsDirName  = "logs"

	coordLockName = "coordination.lock"
)

// Handler receives each batch of drained actions. Delivery is at-most-once:
// items are deleted from the store before the handler runs, so a crash inside
// the handler loses that batch.
type Handler func(actions []action.Action)

// Options tune a Bridge. Zero values select defaults.
type Options struct {
	// StaleWindow overrides the janitor's staging-file expiration window.
	StaleWindow time.Duration
	// Logger receives operational messages. Defaults to stderr.
	Logger *log.Logger
}

// Bridge is one durable cross-process action mailbox rooted at a shared
// container directory.
type Bridge struct {
	dir         string
	staleWindow time.Duration
	logger      *log.Logger

	store    *queue.Store
	notifier *signal.Notifier
	migrator *legacy.Migrator

	// drainMu serializes drains within this process; concurrent drains in
	// other processes are tolerated, not prevented.
	drainMu sync.Mutex

	handlerMu sync.Mutex
	handler   Handler
}

// New creates a Bridge over the shared container at dir, creating the
// container and its locks directory if missing.
func New(dir string, opts Options) (*Bridge, error) {
	if opts.StaleWindow <= 0 {
		opts.StaleWindow = queue.DefaultStaleWindow
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	locksDir := filepath.Join(dir, LocksDirName)
	if err := os.MkdirAll(locksDir, 0755); err != nil {
		return nil, fmt.Errorf("create locks directory: %w", err)
	}

	coordinator := coord.NewFileCoordinator(filepath.Join(locksDir, coordLockName))
	queueDir := filepath.Join(dir, QueueDirName)
	store := queue.NewStore(queueDir, coordinator, opts.Logger)

	return &Bridge{
		dir:         dir,
		staleWindow: opts.StaleWindow,
		logger:      opts.Logger,
		store:       store,
		notifier:    signal.NewNotifier(queueDir),
		migrator:    legacy.NewMigrator(filepath.Join(dir, legacy.BlobFileName), store, opts.Logger),
	}, nil
}

// Dir returns the shared container root.
func (b *Bridge) Dir() string {
	return b.dir
}

// QueueDir returns the queue store directory, for signal watchers.
func (b *Bridge) QueueDir() string {
	return b.store.Dir()
}

// Pending counts committed items awaiting drain.
func (b *Bridge) Pending() (int, error) {
	return b.store.Pending()
}

// PurgeStale runs the janitor with an explicit window, for the CLI. Enqueue
// runs it automatically with the configured window.
func (b *Bridge) PurgeStale(olderThan time.Duration) (int, error) {
	return b.store.PurgeStale(olderThan)
}

// Migrate runs the legacy blob migration synchronously. Enqueue and Drain
// trigger it in the background on their own; this entry point exists for the
// CLI and tests.
func (b *Bridge) Migrate() {
	b.migrator.Run()
}

// Enqueue durably records one action and signals the consumer. Failures are
// absorbed and logged: the return value is the only indication, and the worst
// outcome is a delayed or dropped action, never a crash of the producer.
func (b *Bridge) Enqueue(subjectID string, at time.Time, source string) bool {
	b.migrator.RunAsync()

	if _, err := b.store.PurgeStale(b.staleWindow); err != nil {
		b.logger.Printf("enqueue: janitor pass failed: %v", err)
	}

	a := action.Action{SubjectID: subjectID, CompletedAt: at, Source: source}
	if err := b.store.Enqueue(a); err != nil {
		b.logger.Printf("enqueue: %v", err)
		return false
	}

	// Fire-and-forget: a lost signal only delays discovery until the
	// consumer's next lifecycle drain.
	if err := b.notifier.Notify(); err != nil {
		b.logger.Printf("enqueue: signal broadcast failed: %v", err)
	}
	return true
}

// Drain removes and returns all currently committed actions. Items that fail
// to delete stay on disk and are excluded from the result.
func (b *Bridge) Drain() []action.Action {
	b.migrator.RunAsync()

	b.drainMu.Lock()
	defer b.drainMu.Unlock()

	actions, err := b.store.Drain()
	if err != nil {
		b.logger.Printf("drain: %v", err)
	}
	return actions
}

// RegisterConsumer installs handler as this process's consumer, replacing any
// prior registration, and immediately drains so pending items do not wait for
// the next external signal. At most one handler is active per process.
func (b *Bridge) RegisterConsumer(handler Handler) {
	b.handlerMu.Lock()
	b.handler = handler
	b.handlerMu.Unlock()

	b.Deliver()
}

// UnregisterConsumer clears the registration. A delivery already in flight
// still completes against the old handler.
func (b *Bridge) UnregisterConsumer() {
	b.handlerMu.Lock()
	b.handler = nil
	b.handlerMu.Unlock()
}

// Deliver drains the store and hands the batch to the registered handler.
// With no handler registered it touches nothing, so a stray wake-up cannot
// discard actions. Returns the number of actions delivered.
func (b *Bridge) Deliver() int {
	b.handlerMu.Lock()
	handler := b.handler
	b.handlerMu.Unlock()

	if handler == nil {
		return 0
	}

	actions := b.Drain()
	if len(actions) == 0 {
		return 0
	}
	handler(actions)
	return len(actions)
}
