// Package workspace locates the project root that scopes a cc-sessions
// state and config tree.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no project root can be determined.
var ErrNotFound = errors.New("cc-sessions: not inside a project workspace")

// markerDirs are checked, in order, from cwd upward. The first ancestor
// (including cwd itself) containing one of these is the project root.
var markerDirs = []string{".git", "sessions"}

// Root resolves the project root for the given starting directory.
//
// Resolution order:
//  1. CLAUDE_PROJECT_DIR, if set, is trusted verbatim (canonicalized).
//  2. Walk upward from start looking for a directory containing ".git" or
//     "sessions" — the first match wins.
//  3. start itself, if neither is found (best-effort default).
func Root(start string) (string, error) {
	if override := os.Getenv("CLAUDE_PROJECT_DIR"); override != "" {
		return Canonicalize(override)
	}

	dir, err := Canonicalize(start)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range markerDirs {
			if info, statErr := os.Stat(filepath.Join(dir, marker)); statErr == nil && info.IsDir() {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return Canonicalize(start)
}

// FindFromCwdOrError resolves the project root from the current working
// directory, returning a descriptive error if cwd itself cannot be read.
func FindFromCwdOrError() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determining working directory: %w", err)
	}
	root, err := Root(cwd)
	if err != nil {
		return "", err
	}
	return root, nil
}

// Canonicalize returns the absolute, symlink-resolved form of path.
// If the path does not exist, its absolute form is returned unresolved —
// callers needing non-strict resolution should use orchpath.Resolve instead.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolutizing %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("resolving symlinks in %s: %w", abs, err)
	}
	return resolved, nil
}
