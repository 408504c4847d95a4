package daemon

import (
	"os"
	"sync"
	"time"

	"github.com/xcawolfe-amzn/cc-sessions/internal/bookkeep"
	"github.com/xcawolfe-amzn/cc-sessions/internal/config"
	"github.com/xcawolfe-amzn/cc-sessions/internal/dispatch"
	"github.com/xcawolfe-amzn/cc-sessions/internal/gate"
)

// taskListingTTL bounds how long a directory listing of a project's task
// files is reused before re-reading the directory (spec §4.H: listings are
// cheap but still a syscall per hook invocation otherwise).
const taskListingTTL = 5 * time.Second

// components bundles the per-project engines the daemon dispatches hook
// calls into. Building these is cheap (no I/O beyond path arithmetic) but
// it is still one fewer allocation per request to keep them warm, and it
// keeps each engine (with its own *gitsnap.Cache and *state.Store) alive
// for a given project so those internal caches stay effective across
// requests — the entire point of running as a daemon instead of a
// fresh process per hook.
type components struct {
	gate      *gate.Gate
	bookkeep  *bookkeep.Bookkeeper
	dispatch  *dispatch.Dispatcher
	configs   *config.Store
}

// componentCache memoizes one components bundle per canonicalized project
// root, mirroring the teacher's NotificationManager's per-key cache map
// (internal/daemon/notification.go) but holding engines instead of
// notification cooldown timestamps.
type componentCache struct {
	mu    sync.Mutex
	byRoot map[string]*components
}

func newComponentCache() *componentCache {
	return &componentCache{byRoot: make(map[string]*components)}
}

func (c *componentCache) get(root string) *components {
	c.mu.Lock()
	defer c.mu.Unlock()
	if comp, ok := c.byRoot[root]; ok {
		return comp
	}
	comp := &components{
		gate:     gate.New(root),
		bookkeep: bookkeep.New(root),
		dispatch: dispatch.New(root),
		configs:  config.New(root),
	}
	c.byRoot[root] = comp
	return comp
}

// invalidate drops a project's cached components, forcing fresh engines
// (and therefore fresh internal caches) on the next request. Not currently
// wired to anything — projects rarely move — but kept as the natural
// escape hatch the teacher's NotificationManager exposes via its own
// per-key eviction.
func (c *componentCache) invalidate(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byRoot, root)
}

// taskListing is one cached os.ReadDir result for a project's task
// directory.
type taskListing struct {
	names     []string
	takenAt   time.Time
}

// taskListingCache memoizes directory listings per task directory path.
type taskListingCache struct {
	mu      sync.Mutex
	entries map[string]taskListing
}

func newTaskListingCache() *taskListingCache {
	return &taskListingCache{entries: make(map[string]taskListing)}
}

func (c *taskListingCache) list(dir string) ([]string, error) {
	c.mu.Lock()
	if cached, ok := c.entries[dir]; ok && time.Since(cached.takenAt) < taskListingTTL {
		c.mu.Unlock()
		return cached.names, nil
	}
	c.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	c.mu.Lock()
	c.entries[dir] = taskListing{names: names, takenAt: time.Now()}
	c.mu.Unlock()
	return names, nil
}
