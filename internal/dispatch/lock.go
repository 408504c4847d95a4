package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xcawolfe-amzn/cc-sessions/internal/lock"
)

// targetLockWait is the budget for acquiring a per-target transcript lock
// before failing loudly (spec §4.G pre-dispatch step 5).
const targetLockWait = 8 * time.Second

const targetLockPoll = 50 * time.Millisecond

// acquireTargetLock takes the exclusive flock on locksDir/target.lock,
// stamping the file with the owning pid for diagnostics (spec §4.G: "an
// O_EXCL-created file whose content is the owning pid" — mutual exclusion
// itself is delegated to flock, per this module's lock package, rather
// than a bare O_EXCL race that can't auto-release on a crashed owner).
func acquireTargetLock(ctx context.Context, locksDir, target string) (func(), error) {
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating locks directory %s: %w", locksDir, err)
	}
	lockPath := filepath.Join(locksDir, target+".lock")

	release, err := lock.FlockTryAcquire(ctx, lockPath, targetLockWait, targetLockPoll)
	if err != nil {
		return nil, fmt.Errorf("acquiring sub-agent target lock for %q: %w", target, err)
	}
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		release()
		return nil, fmt.Errorf("stamping lock file %s: %w", lockPath, err)
	}
	return release, nil
}
