// Package gitsnap reads branch and working-tree status through a single
// `git status --porcelain=2 --branch` invocation, cached for a short TTL
// keyed by working directory (spec §4.E: the gate needs branch info on
// every file-writing tool call it checks against the current task and
// cannot afford a fresh git process per call). Grounded on the teacher's pruned internal/git package (its
// GitError/NewGit shape, visible in internal/git/git_test.go), narrowed
// from that package's full worktree/branch-management surface to the
// read-only snapshot this system actually needs.
package gitsnap

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// GitError wraps a failed git invocation with its raw stderr, so callers
// can decide for themselves whether "not a git repository" etc. matters —
// mirrors the teacher's GitError contract.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Stderr))
}

func (e *GitError) Unwrap() error { return e.Err }

// Snapshot is a point-in-time view of a working tree's branch and status.
type Snapshot struct {
	Branch      string
	Clean       bool
	Staged      []string
	Unstaged    []string
	Untracked   []string
	AheadBehind string
	takenAt     time.Time
}

// TTL is how long a cached snapshot is reused before a fresh git call runs.
const TTL = 2 * time.Second

// Cache memoizes the most recent snapshot per working directory.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Snapshot
}

// NewCache returns an empty, ready-to-use cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Snapshot)}
}

// Snapshot returns dir's cached snapshot if it is younger than TTL,
// otherwise it runs git and refreshes the cache entry.
func (c *Cache) Snapshot(ctx context.Context, dir string) (Snapshot, error) {
	c.mu.Lock()
	if snap, ok := c.entries[dir]; ok && time.Since(snap.takenAt) < TTL {
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	snap, err := takeSnapshot(ctx, dir)
	if err != nil {
		return Snapshot{}, err
	}
	snap.takenAt = time.Now()

	c.mu.Lock()
	c.entries[dir] = snap
	c.mu.Unlock()
	return snap, nil
}

// Invalidate drops any cached snapshot for dir, forcing the next
// Snapshot call to re-run git instead of waiting out the TTL.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	delete(c.entries, dir)
	c.mu.Unlock()
}

func takeSnapshot(ctx context.Context, dir string) (Snapshot, error) {
	args := []string{"status", "--porcelain=2", "--branch"}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Snapshot{}, &GitError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return parsePorcelainV2(stdout.String()), nil
}

// parsePorcelainV2 interprets `git status --porcelain=2 --branch` output.
// Branch header lines start with "# branch.", file entries start with
// "1 " (ordinary changed), "2 " (renamed/copied), or "?" (untracked).
func parsePorcelainV2(out string) Snapshot {
	var snap Snapshot
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "# branch.head "):
			snap.Branch = strings.TrimPrefix(line, "# branch.head ")
		case strings.HasPrefix(line, "# branch.ab "):
			snap.AheadBehind = strings.TrimPrefix(line, "# branch.ab ")
		case strings.HasPrefix(line, "1 ") || strings.HasPrefix(line, "2 "):
			fields := strings.SplitN(line, " ", 9)
			if len(fields) < 9 {
				continue
			}
			path := fields[8]
			xy := fields[1]
			if xy[0] != '.' {
				snap.Staged = append(snap.Staged, path)
			}
			if len(xy) > 1 && xy[1] != '.' {
				snap.Unstaged = append(snap.Unstaged, path)
			}
		case strings.HasPrefix(line, "? "):
			snap.Untracked = append(snap.Untracked, strings.TrimPrefix(line, "? "))
		}
	}
	snap.Clean = len(snap.Staged) == 0 && len(snap.Unstaged) == 0 && len(snap.Untracked) == 0
	return snap
}
