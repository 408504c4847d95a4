package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrReentrantLock is returned when a process tries to acquire a lock it
// already holds. The spec treats this as a fatal programming error rather
// than a self-deadlock (spec §4.A).
var ErrReentrantLock = errors.New("cc-sessions: state lock re-entered by the same process")

// ErrLockTimeout is returned when the lock cannot be acquired within the
// acquisition budget.
var ErrLockTimeout = errors.New("cc-sessions: timed out acquiring state lock")

const (
	lockPollInterval = 50 * time.Millisecond
	lockAcquireBudget = 1 * time.Second
	lockStaleAfter    = 30 * time.Second
)

// ownerDescriptor identifies who holds a lock, written inside the lock
// directory so a second process can judge staleness without IPC.
type ownerDescriptor struct {
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
	Hostname  string    `json:"host"`
}

// dirLock is the advisory lock implemented as the atomic creation of a
// named directory containing an owner descriptor. This mirrors spec §4.A's
// locking protocol exactly: Mkdir is the atomicity primitive (unlike a
// single lock *file*, a directory lets us keep lock_info.json inside it
// without a second atomic step).
type dirLock struct {
	dir string
}

func newDirLock(stateDir string) *dirLock {
	return &dirLock{dir: stateDir + ".lock"}
}

// acquire polls every lockPollInterval up to lockAcquireBudget. It reaps a
// stale lock (dead owner, or owner descriptor older than lockStaleAfter)
// and retries once reaped. It fails immediately, without retrying, if the
// existing owner is this same process.
func (l *dirLock) acquire() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.dir), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock parent directory %s: %w", filepath.Dir(l.dir), err)
	}
	deadline := time.Now().Add(lockAcquireBudget)
	for {
		if err := os.Mkdir(l.dir, 0o755); err == nil {
			if writeErr := l.writeOwner(); writeErr != nil {
				os.RemoveAll(l.dir)
				return nil, writeErr
			}
			return func() { os.RemoveAll(l.dir) }, nil
		} else if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock directory %s: %w", l.dir, err)
		}

		owner, readErr := l.readOwner()
		if readErr == nil {
			if owner.PID == os.Getpid() {
				return nil, ErrReentrantLock
			}
			if l.isStale(owner) {
				os.RemoveAll(l.dir)
				continue
			}
		} else {
			// Lock directory exists but descriptor is unreadable/missing
			// (crash mid-acquire) — treat as stale and reap.
			os.RemoveAll(l.dir)
			continue
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *dirLock) writeOwner() error {
	host, _ := os.Hostname()
	desc := ownerDescriptor{PID: os.Getpid(), Timestamp: time.Now(), Hostname: host}
	data, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.dir, "lock_info.json"), data, 0o644)
}

func (l *dirLock) readOwner() (ownerDescriptor, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, "lock_info.json"))
	if err != nil {
		return ownerDescriptor{}, err
	}
	var desc ownerDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return ownerDescriptor{}, err
	}
	return desc, nil
}

// isStale reports whether the owner process is dead or its descriptor has
// aged past lockStaleAfter.
func (l *dirLock) isStale(owner ownerDescriptor) bool {
	if time.Since(owner.Timestamp) > lockStaleAfter {
		return true
	}
	return !processAlive(owner.PID)
}

// processAlive checks liveness via signal 0, matching the teacher's
// session/pidtrack.go liveness check (proc.Signal(syscall.Signal(0))).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
