package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xcawolfe-amzn/cc-sessions/internal/util"
)

// Store is the authoritative persistent state for one project, scoped by a
// hash of its canonicalized root (spec §4.A). It is grounded on the
// teacher's quota.Manager (internal/quota/state.go) — Load/Save/WithLock —
// generalized to the richer State record and to a lock with a readable,
// cross-process owner descriptor (internal/state/lock.go) instead of a bare
// flock().
type Store struct {
	projectRoot string
	statePath   string
	lock        *dirLock
}

// legacyStateSubpath is the well-known unscoped location state lived at before
// per-project scoping was introduced. It exists solely as a one-time
// migration source (spec §4.A, §9).
const legacyStateSubpath = "sessions/state/sessions-state.json"

// New opens (without yet loading) the state store for projectRoot.
// projectRoot must already be canonicalized (see workspace.Root).
func New(projectRoot string) *Store {
	scope := util.ScopeHash(projectRoot)
	statePath := filepath.Join(projectRoot, "sessions", "state", scope, "sessions-state.json")
	return &Store{
		projectRoot: projectRoot,
		statePath:   statePath,
		lock:        newDirLock(statePath),
	}
}

// Path returns the scoped state file path.
func (s *Store) Path() string { return s.statePath }

// Load returns a deep copy of the current state, running the legacy-path
// migration and the legacy-mode-string migration as needed. If the file is
// missing, a default-initialized record is materialized and persisted. If
// the file is syntactically invalid, it is quarantined (.bad suffix) once
// and replaced with defaults.
func (s *Store) Load() (*State, error) {
	if err := s.migrateLegacyPath(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.statePath)
	if os.IsNotExist(err) {
		def := Default()
		if writeErr := s.writeUnlocked(def); writeErr != nil {
			return nil, writeErr
		}
		return def.Clone(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state %s: %w", s.statePath, err)
	}

	st, parseErr := parseState(data)
	if parseErr != nil {
		if quarantineErr := util.QuarantineBad(s.statePath); quarantineErr != nil {
			return nil, fmt.Errorf("quarantining corrupt state: %w", quarantineErr)
		}
		def := Default()
		if writeErr := s.writeUnlocked(def); writeErr != nil {
			return nil, writeErr
		}
		return def.Clone(), nil
	}

	migrated := migrateLegacyFields(st)
	return migrated.Clone(), nil
}

// Edit acquires the exclusive lock, re-reads state, runs cb over the
// in-memory record, writes atomically, and releases the lock. It returns
// whatever error cb or the lock/write path produced. cb may mutate st
// freely — the caller never sees the write happen concurrently with
// another writer (spec §4.A invariant 2).
func (s *Store) Edit(cb func(st *State) error) error {
	return s.WithLock(func() error {
		st, err := s.loadUnlocked()
		if err != nil {
			return err
		}
		if err := cb(st); err != nil {
			return err
		}
		return s.writeUnlocked(st)
	})
}

// WithLock runs fn while holding the store's exclusive lock; Edit is built
// on it. The lock is not re-entrant, so fn must not call Edit or WithLock
// on the same store.
func (s *Store) WithLock(fn func() error) error {
	unlock, err := s.lock.acquire()
	if err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	defer unlock()
	return fn()
}

// loadUnlocked reads state without acquiring the lock — callers must
// already hold it (via WithLock/Edit).
func (s *Store) loadUnlocked() (*State, error) {
	data, err := os.ReadFile(s.statePath)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state %s: %w", s.statePath, err)
	}
	st, parseErr := parseState(data)
	if parseErr != nil {
		if quarantineErr := util.QuarantineBad(s.statePath); quarantineErr != nil {
			return nil, quarantineErr
		}
		return Default(), nil
	}
	return migrateLegacyFields(st), nil
}

func (s *Store) writeUnlocked(st *State) error {
	return util.WriteJSONAtomic(s.statePath, st)
}

// migrateLegacyPath moves a pre-scoping state file into place the first
// time any component loads state for this project (spec §4.A, §9: "only
// the scoped, hash-keyed state directory is canonical").
func (s *Store) migrateLegacyPath() error {
	if _, err := os.Stat(s.statePath); err == nil {
		return nil // already scoped
	}
	legacyPath := filepath.Join(s.projectRoot, legacyStateSubpath)
	data, err := os.ReadFile(legacyPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading legacy state %s: %w", legacyPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return fmt.Errorf("creating scoped state dir: %w", err)
	}
	tmp := s.statePath + fmt.Sprintf(".migrate.%d", os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("staging migrated state: %w", err)
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalizing migrated state: %w", err)
	}
	return nil
}

func parseState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// legacyModeImplementation is the pre-rename string for ModeOrchestration.
const legacyModeImplementation Mode = "implementation"

// migrateLegacyFields maps the legacy "implementation" mode value onto
// ModeOrchestration (spec §3.1). Performed on every load so on-disk data
// written by an older version of this system keeps working.
func migrateLegacyFields(st *State) *State {
	if st.Mode == legacyModeImplementation {
		st.Mode = ModeOrchestration
	}
	if st.Mode == "" {
		st.Mode = ModeDiscussion
	}
	if st.ModelName == "" {
		st.ModelName = ModelUnknown
	}
	return st
}
