// Package lock provides a general-purpose cross-process exclusive lock
// backed by gofrs/flock. It underlies the daemon's single-instance guard
// and the sub-agent dispatcher's per-target transcript lock (spec §4.G);
// the state store's own advisory lock (spec §4.A) needs a readable owner
// descriptor a second process can inspect to judge staleness, which a bare
// flock cannot expose, and is implemented separately in internal/state.
// Grounded on the teacher's internal/doltserver/doltserver.go, which uses
// the same library the same way: flock.New(path).TryLock() guarding a
// singleton start.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout is returned when FlockTryAcquire's budget elapses without
// acquiring the lock.
var ErrTimeout = errors.New("cc-sessions: timed out acquiring lock")

// FlockAcquire blocks until the exclusive lock at path is acquired. Returns
// a release function that unlocks and closes the underlying file.
func FlockAcquire(path string) (func(), error) {
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// FlockTryAcquire retries acquiring the exclusive lock at path every
// pollInterval until it succeeds or timeout elapses, whichever comes
// first. Returns ErrTimeout on expiry.
func FlockTryAcquire(ctx context.Context, path string, timeout, pollInterval time.Duration) (func(), error) {
	fl := flock.New(path)

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, pollInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
	}
	return func() { _ = fl.Unlock() }, nil
}
