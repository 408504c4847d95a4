// Package orchpath resolves a path candidate against a project root and
// decides whether it names one of this system's own protected state files
// (spec §4.D). Grounded on the teacher's internal/util path-canonicalization
// helpers (internal/util/path.go's ExpandHome), generalized here to a
// non-strict resolve that tolerates paths that do not yet exist on disk —
// a pre-dispatch write target often doesn't exist until the tool actually
// runs.
package orchpath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xcawolfe-amzn/cc-sessions/internal/util"
)

// Resolve expands a leading "~", makes candidate absolute against root,
// cleans ".." components, and resolves symlinks along the existing prefix
// of the path (spec §4.D steps 1-2). It never fails on a path that does
// not yet exist: it walks up to the deepest existing ancestor, resolves
// symlinks on that prefix, and re-appends the non-existent tail
// uninterpreted — a write target rarely exists yet when the gate runs.
func Resolve(root, candidate string) (string, error) {
	expanded := util.ExpandHome(candidate)
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(root, expanded)
	}
	return nonStrictResolve(filepath.Clean(expanded))
}

func nonStrictResolve(abs string) (string, error) {
	var tail []string
	dir := abs
	for {
		if _, err := os.Lstat(dir); err == nil {
			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil {
				resolved = dir
			}
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}

// stateFileBasename names the file this system refuses to let a tool write
// to regardless of directory, because their basename alone is globally
// recognized as this system's own bookkeeping (spec §4.D step 3).
const stateFileBasename = "sessions-state.json"

var scopedProtectedBasenames = map[string]bool{
	"session_index.json": true,
	"execution_plan.json": true,
}

// IsProtected reports whether resolvedPath (already run through Resolve)
// names a protected state file. `sessions-state.json` and its tmp/backup
// siblings (`sessions-state.json.*`) are protected anywhere; the rest are
// protected only under <root>/sessions/state/ (spec §4.D step 3).
func IsProtected(root, resolvedPath string) bool {
	base := filepath.Base(resolvedPath)
	if base == stateFileBasename || strings.HasPrefix(base, stateFileBasename+".") {
		return true
	}
	if !scopedProtectedBasenames[base] {
		return false
	}
	stateDir, err := nonStrictResolve(filepath.Join(root, "sessions", "state"))
	if err != nil {
		stateDir = filepath.Join(root, "sessions", "state")
	}
	rel, err := filepath.Rel(stateDir, resolvedPath)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// ResolveAndCheck is the common call shape used by the gate (§4.E): resolve
// then check in one step, tolerating resolution failure by treating the
// path as unresolved (not protected) rather than erroring the whole gate
// decision over one bad candidate.
func ResolveAndCheck(root, candidate string) (resolved string, protected bool) {
	resolved, err := Resolve(root, candidate)
	if err != nil {
		return candidate, false
	}
	return resolved, IsProtected(root, resolved)
}
