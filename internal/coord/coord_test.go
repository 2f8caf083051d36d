package coord

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestCoordinator(t *testing.T) (*FileCoordinator, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileCoordinator(filepath.Join(dir, "coordination.lock")), dir
}

func TestFileCoordinator_WriteRead(t *testing.T) {
	c, dir := newTestCoordinator(t)
	path := filepath.Join(dir, "item.json")

	if err := c.Write(path, []byte(`{"subject_id":"fajr"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := c.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != `{"subject_id":"fajr"}` {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestFileCoordinator_Move(t *testing.T) {
	c, dir := newTestCoordinator(t)
	staging := filepath.Join(dir, ".staging-item.json")
	final := filepath.Join(dir, "item.json")

	if err := os.WriteFile(staging, []byte("payload"), 0644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	if err := c.Move(staging, final); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Error("staging file still present after move")
	}
	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read final failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("unexpected content after move: %s", data)
	}
}

func TestFileCoordinator_Remove(t *testing.T) {
	c, dir := newTestCoordinator(t)
	path := filepath.Join(dir, "item.json")

	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}
	if err := c.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still present after remove")
	}

	// Removing again is an error: only one concurrent delete can win.
	if err := c.Remove(path); err == nil {
		t.Error("expected error removing missing file")
	}
}

func TestFileCoordinator_ConcurrentWrites(t *testing.T) {
	c, dir := newTestCoordinator(t)
	path := filepath.Join(dir, "shared.json")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Write(path, []byte("content")); err != nil {
				t.Errorf("concurrent write failed: %v", err)
			}
		}()
	}
	wg.Wait()

	data, err := c.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestFileLock_TryLock(t *testing.T) {
	dir := t.TempDir()
	fl := NewFileLock(filepath.Join(dir, "watcher.lock"))

	if err := fl.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer fl.Unlock()
}

func TestFileLock_UnlockWithoutLock(t *testing.T) {
	fl := NewFileLock(filepath.Join(t.TempDir(), "watcher.lock"))
	if err := fl.Unlock(); err != nil {
		t.Errorf("Unlock without lock should be a no-op, got: %v", err)
	}
}

func TestFileLock_RelockAfterUnlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watcher.lock")

	fl := NewFileLock(path)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("first TryLock failed: %v", err)
	}
	if err := fl.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	fl2 := NewFileLock(path)
	if err := fl2.TryLock(); err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	defer fl2.Unlock()
}
