package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirLockAcquireRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scoped")
	l := newDirLock(dir)

	unlock, err := l.acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, statErr := os.Stat(l.dir); statErr != nil {
		t.Fatalf("expected lock directory to exist: %v", statErr)
	}
	unlock()
	if _, statErr := os.Stat(l.dir); !os.IsNotExist(statErr) {
		t.Fatalf("expected lock directory removed after unlock, stat err = %v", statErr)
	}
}

func TestDirLockReapsStaleOwner(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scoped")
	l := newDirLock(dir)

	if err := os.Mkdir(l.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	desc := ownerDescriptor{PID: 999999, Timestamp: time.Now()}
	data, _ := json.Marshal(desc)
	if err := os.WriteFile(filepath.Join(l.dir, "lock_info.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	unlock, err := l.acquire()
	if err != nil {
		t.Fatalf("expected stale lock to be reaped and re-acquired, got: %v", err)
	}
	unlock()
}

func TestDirLockReapsAgedOwner(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scoped")
	l := newDirLock(dir)

	if err := os.Mkdir(l.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	desc := ownerDescriptor{PID: 999998, Timestamp: time.Now().Add(-2 * lockStaleAfter)}
	data, _ := json.Marshal(desc)
	if err := os.WriteFile(filepath.Join(l.dir, "lock_info.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	unlock, err := l.acquire()
	if err != nil {
		t.Fatalf("expected aged lock to be reaped, got: %v", err)
	}
	unlock()
}

func TestDirLockSameProcessReentryFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scoped")
	l := newDirLock(dir)

	unlock, err := l.acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	_, err = l.acquire()
	if err != ErrReentrantLock {
		t.Fatalf("expected ErrReentrantLock, got %v", err)
	}
}
