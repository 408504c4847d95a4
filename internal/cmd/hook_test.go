package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/xcawolfe-amzn/cc-sessions/internal/config"
	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
)

func TestLegacyFuncForPing(t *testing.T) {
	legacy := legacyFuncFor("ping")
	stdout, _, exitCode := legacy([]byte(`{}`))
	if stdout != "pong" || exitCode != 0 {
		t.Fatalf("unexpected ping response: stdout=%q exitCode=%d", stdout, exitCode)
	}
}

func TestLegacyFuncForUnknownHook(t *testing.T) {
	legacy := legacyFuncFor("not-a-real-hook")
	_, stderr, exitCode := legacy([]byte(`{"cwd":"` + t.TempDir() + `"}`))
	if exitCode == 0 {
		t.Fatal("expected a nonzero exit code for an unknown hook")
	}
	if stderr == "" {
		t.Fatal("expected a stderr message naming the unknown hook")
	}
}

func TestUseHookDaemonDefaultsTrueWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	if !useHookDaemon([]byte(`{"cwd":"` + dir + `"}`)) {
		t.Fatal("expected useHookDaemon to default true when cwd resolution fails")
	}
}

func TestUseHookDaemonHonorsConfiguredFlag(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := config.New(dir)
	cfg, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Features.UseHookDaemon = false
	if err := store.Save(cfg); err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(map[string]any{"cwd": dir})
	if useHookDaemon(payload) {
		t.Fatal("expected useHookDaemon to report false when the config disables it")
	}
}

func TestLegacyStatuslineIncludesTaskAndModel(t *testing.T) {
	st := &state.State{
		Mode:        state.ModeOrchestration,
		CurrentTask: &state.CurrentTask{Name: "ship-the-thing"},
		Todos: state.TodoList{
			Active: []state.Todo{
				{Content: "a", Status: state.TodoCompleted},
				{Content: "b", Status: state.TodoPending},
			},
		},
	}
	line := legacyStatusline(st, "sonnet")
	if line == "" {
		t.Fatal("expected a non-empty statusline")
	}
}

func TestTodoLineVariesByStatus(t *testing.T) {
	cases := []state.TodoStatus{state.TodoCompleted, state.TodoInProgress, state.TodoPending}
	seen := make(map[string]bool)
	for _, status := range cases {
		line := todoLine(state.Todo{Content: "x", Status: status})
		if seen[line] {
			t.Fatalf("expected a distinct rendering per status, got duplicate for %v", status)
		}
		seen[line] = true
	}
}
