package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
)

func TestRunTodosClearResetsFlagAndMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLAUDE_PROJECT_DIR", "")
	t.Chdir(dir)

	states := state.New(dir)
	if err := states.Edit(func(st *state.State) error {
		st.Flags.APITodosClear = true
		st.Mode = state.ModeOrchestration
		st.Todos.Active = []state.Todo{{Content: "x", Status: state.TodoCompleted}}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := runTodosClear(todosClearCmd, nil); err != nil {
		t.Fatal(err)
	}

	st, err := states.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.Flags.APITodosClear {
		t.Fatal("expected APITodosClear to be reset")
	}
	if st.Mode != state.ModeDiscussion {
		t.Fatalf("expected discussion mode, got %v", st.Mode)
	}
	if len(st.Todos.Active) != 0 {
		t.Fatalf("expected todos cleared, got %v", st.Todos.Active)
	}
}

func TestRunTodosClearNoopWhenNothingToClear(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLAUDE_PROJECT_DIR", "")
	t.Chdir(dir)

	if err := runTodosClear(todosClearCmd, nil); err != nil {
		t.Fatal(err)
	}
}
