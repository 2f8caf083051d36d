package queue

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adhanhq/actionbridge/internal/action"
	"github.com/adhanhq/actionbridge/internal/coord"
)

// faultCoordinator wraps a real coordinator and fails selected operations,
// simulating cross-process contention and induced crashes.
type faultCoordinator struct {
	inner      coord.Coordinator
	failRead   bool
	failMove   bool
	failRemove bool
}

var errInjected = errors.New("injected coordination failure")

func (f *faultCoordinator) Read(path string) ([]byte, error) {
	if f.failRead {
		return nil, errInjected
	}
	return f.inner.Read(path)
}

func (f *faultCoordinator) Write(path string, data []byte) error {
	return f.inner.Write(path, data)
}

func (f *faultCoordinator) Move(oldpath, newpath string) error {
	if f.failMove {
		return errInjected
	}
	return f.inner.Move(oldpath, newpath)
}

func (f *faultCoordinator) Remove(path string) error {
	if f.failRemove {
		return errInjected
	}
	return f.inner.Remove(path)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "queue")
	c := coord.NewFileCoordinator(filepath.Join(root, "coordination.lock"))
	return NewStore(dir, c, log.New(io.Discard, "", 0)), dir
}

func newFaultStore(t *testing.T) (*Store, *faultCoordinator, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "queue")
	fc := &faultCoordinator{inner: coord.NewFileCoordinator(filepath.Join(root, "coordination.lock"))}
	return NewStore(dir, fc, log.New(io.Discard, "", 0)), fc, dir
}

func testAction(subject string, at time.Time) action.Action {
	return action.Action{SubjectID: subject, CompletedAt: at, Source: "overlay"}
}

func listEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEnqueue_CreatesSingleCommittedItem(t *testing.T) {
	s, dir := newTestStore(t)

	if err := s.Enqueue(testAction("fajr", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	names := listEntries(t, dir)
	if len(names) != 1 {
		t.Fatalf("expected exactly 1 file, got %v", names)
	}
	if !action.IsItemName(names[0]) {
		t.Errorf("expected a committed item name, got %q", names[0])
	}
}

func TestEnqueue_CommitFailureLeavesNothing(t *testing.T) {
	s, fc, dir := newFaultStore(t)
	fc.failMove = true

	if err := s.Enqueue(testAction("fajr", time.Now())); err == nil {
		t.Fatal("expected enqueue to fail when commit rename fails")
	}

	// Neither a staging file nor a committed item may remain.
	if names := listEntries(t, dir); len(names) != 0 {
		t.Errorf("expected empty directory after failed commit, got %v", names)
	}
}

func TestEnqueue_ConcurrentProducers(t *testing.T) {
	s, dir := newTestStore(t)
	at := time.Now()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			done <- s.Enqueue(testAction("dhuhr", at))
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent enqueue failed: %v", err)
		}
	}

	// Identical timestamps must still yield ten distinct files.
	if names := listEntries(t, dir); len(names) != 10 {
		t.Errorf("expected 10 items, got %d: %v", len(names), names)
	}
}

func TestDrain_ReturnsAllAndEmptiesStore(t *testing.T) {
	s, dir := newTestStore(t)
	base := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)

	subjects := []string{"fajr", "dhuhr", "asr"}
	for i, subject := range subjects {
		if err := s.Enqueue(testAction(subject, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Enqueue %s failed: %v", subject, err)
		}
	}

	drained, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(drained) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(drained))
	}

	got := make(map[string]bool)
	for _, a := range drained {
		got[a.SubjectID] = true
	}
	for _, subject := range subjects {
		if !got[subject] {
			t.Errorf("missing subject %q in drain result", subject)
		}
	}

	if names := listEntries(t, dir); len(names) != 0 {
		t.Errorf("expected empty store after drain, got %v", names)
	}

	// Second drain is an empty no-op.
	again, err := s.Drain()
	if err != nil {
		t.Fatalf("second Drain failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected empty second drain, got %d actions", len(again))
	}
}

func TestDrain_EmptyStoreIsIdempotent(t *testing.T) {
	s, dir := newTestStore(t)

	drained, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(drained) != 0 {
		t.Errorf("expected no actions, got %d", len(drained))
	}

	// Draining a store whose directory was never created mutates nothing.
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("drain of empty store created the directory")
	}
}

func TestDrain_SkipsStagingFiles(t *testing.T) {
	s, dir := newTestStore(t)

	if err := s.Enqueue(testAction("fajr", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	staging := filepath.Join(dir, action.StagingName(time.Now()))
	if err := os.WriteFile(staging, []byte("half-written"), 0644); err != nil {
		t.Fatalf("write staging failed: %v", err)
	}

	drained, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(drained) != 1 {
		t.Fatalf("expected 1 action, got %d", len(drained))
	}

	// The staging file must survive the drain untouched.
	if _, err := os.Stat(staging); err != nil {
		t.Errorf("staging file missing after drain: %v", err)
	}
}

func TestDrain_RemovesCorruptItems(t *testing.T) {
	s, dir := newTestStore(t)

	if err := s.Enqueue(testAction("asr", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	corrupt := filepath.Join(dir, action.ItemName(time.Now()))
	if err := os.WriteFile(corrupt, []byte("{garbage"), 0644); err != nil {
		t.Fatalf("write corrupt item failed: %v", err)
	}

	drained, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(drained) != 1 || drained[0].SubjectID != "asr" {
		t.Fatalf("expected only the valid action, got %v", drained)
	}

	// The corrupt file is self-healed away, not left to block the queue.
	if _, err := os.Stat(corrupt); !os.IsNotExist(err) {
		t.Error("corrupt item still present after drain")
	}
}

func TestDrain_DeleteFailureExcludesItem(t *testing.T) {
	s, fc, dir := newFaultStore(t)

	if err := s.Enqueue(testAction("maghrib", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	fc.failRemove = true
	drained, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(drained) != 0 {
		t.Errorf("item with failed delete must not be reported as delivered, got %v", drained)
	}

	// The item stays on disk for a later drain.
	if names := listEntries(t, dir); len(names) != 1 {
		t.Fatalf("expected item left on disk, got %v", names)
	}

	fc.failRemove = false
	drained, err = s.Drain()
	if err != nil {
		t.Fatalf("retry Drain failed: %v", err)
	}
	if len(drained) != 1 || drained[0].SubjectID != "maghrib" {
		t.Errorf("expected the item on retry, got %v", drained)
	}
}

func TestDrain_ReadFailureLeavesItem(t *testing.T) {
	s, fc, dir := newFaultStore(t)

	if err := s.Enqueue(testAction("isha", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	fc.failRead = true
	drained, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(drained) != 0 {
		t.Errorf("unreadable item must not be delivered, got %v", drained)
	}
	if names := listEntries(t, dir); len(names) != 1 {
		t.Errorf("expected item left for retry, got %v", names)
	}
}

func TestPurgeStale_AgeWindow(t *testing.T) {
	s, dir := newTestStore(t)
	if err := s.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	old := filepath.Join(dir, action.StagingName(time.Now()))
	if err := os.WriteFile(old, []byte("abandoned"), 0644); err != nil {
		t.Fatalf("write old staging failed: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	fresh := filepath.Join(dir, action.StagingName(time.Now()))
	if err := os.WriteFile(fresh, []byte("in flight"), 0644); err != nil {
		t.Fatalf("write fresh staging failed: %v", err)
	}

	committed := filepath.Join(dir, action.ItemName(time.Now()))
	if err := os.WriteFile(committed, []byte("{}"), 0644); err != nil {
		t.Fatalf("write committed item failed: %v", err)
	}
	if err := os.Chtimes(committed, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	removed, err := s.PurgeStale(time.Hour)
	if err != nil {
		t.Fatalf("PurgeStale failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale staging file not purged")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh staging file must be preserved")
	}
	// Committed items are never purged by age.
	if _, err := os.Stat(committed); err != nil {
		t.Error("committed item must never be age-purged")
	}
}

func TestPurgeStale_MissingDirectory(t *testing.T) {
	s, _ := newTestStore(t)

	removed, err := s.PurgeStale(time.Hour)
	if err != nil {
		t.Fatalf("PurgeStale on missing dir failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected 0 removals, got %d", removed)
	}
}

func TestPut_WritesCommittedItem(t *testing.T) {
	s, dir := newTestStore(t)

	if err := s.Put(testAction("fajr", time.Now())); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	names := listEntries(t, dir)
	if len(names) != 1 || !action.IsItemName(names[0]) {
		t.Fatalf("expected one committed item, got %v", names)
	}
	if strings.HasPrefix(names[0], ".") {
		t.Errorf("Put must not leave staging artifacts: %v", names)
	}
}

func TestPending_CountsCommittedOnly(t *testing.T) {
	s, dir := newTestStore(t)

	n, err := s.Pending()
	if err != nil || n != 0 {
		t.Fatalf("Pending on missing dir: got %d, %v", n, err)
	}

	if err := s.Enqueue(testAction("fajr", time.Now())); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	staging := filepath.Join(dir, action.StagingName(time.Now()))
	if err := os.WriteFile(staging, []byte("x"), 0644); err != nil {
		t.Fatalf("write staging failed: %v", err)
	}

	n, err = s.Pending()
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pending item, got %d", n)
	}
}
