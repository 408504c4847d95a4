package orchpath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsProtectedStateFileAnywhere(t *testing.T) {
	root := t.TempDir()
	p, err := Resolve(root, "nested/dir/sessions-state.json")
	if err != nil {
		t.Fatal(err)
	}
	if !IsProtected(root, p) {
		t.Fatalf("expected %s to be protected", p)
	}
}

func TestIsProtectedStateFileBackupSibling(t *testing.T) {
	root := t.TempDir()
	p, err := Resolve(root, "sessions/state/abc123/sessions-state.json.bak")
	if err != nil {
		t.Fatal(err)
	}
	if !IsProtected(root, p) {
		t.Fatalf("expected backup sibling %s to be protected", p)
	}
}

func TestIsProtectedScopedFilesOnlyUnderStateDir(t *testing.T) {
	root := t.TempDir()

	protected, err := Resolve(root, "sessions/state/abc123/execution_plan.json")
	if err != nil {
		t.Fatal(err)
	}
	if !IsProtected(root, protected) {
		t.Fatalf("expected %s under sessions/state to be protected", protected)
	}

	unprotected, err := Resolve(root, "src/execution_plan.json")
	if err != nil {
		t.Fatal(err)
	}
	if IsProtected(root, unprotected) {
		t.Fatalf("expected %s outside sessions/state to not be protected", unprotected)
	}
}

func TestIsProtectedOrdinaryFileNotProtected(t *testing.T) {
	root := t.TempDir()
	p, err := Resolve(root, "src/main.go")
	if err != nil {
		t.Fatal(err)
	}
	if IsProtected(root, p) {
		t.Fatalf("expected ordinary file %s to not be protected", p)
	}
}

func TestResolveFollowsSymlinkToProtectedTarget(t *testing.T) {
	root := t.TempDir()
	realStateDir := filepath.Join(root, "sessions", "state", "abc123")
	if err := os.MkdirAll(realStateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	linkDir := filepath.Join(root, "shortcut")
	if err := os.Symlink(realStateDir, linkDir); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	p, err := Resolve(root, "shortcut/execution_plan.json")
	if err != nil {
		t.Fatal(err)
	}
	if !IsProtected(root, p) {
		t.Fatalf("expected write through symlink %s to resolve to protected target", p)
	}
}
