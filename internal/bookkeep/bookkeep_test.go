package bookkeep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
)

func TestRunBashCdEmitsBreadcrumb(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	r, err := b.Run(Input{ToolName: "Bash", ToolInput: map[string]any{"command": "cd internal/gate"}})
	if err != nil {
		t.Fatal(err)
	}
	if r.Stderr == "" {
		t.Fatal("expected a cwd breadcrumb for cd command")
	}
}

func TestRunBashNonCdIsSilent(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	r, err := b.Run(Input{ToolName: "Bash", ToolInput: map[string]any{"command": "ls -la"}})
	if err != nil {
		t.Fatal(err)
	}
	if r.Stderr != "" {
		t.Fatalf("expected no breadcrumb for non-cd command, got %q", r.Stderr)
	}
}

func TestRunTaskFinishReleasesOwnershipAndClearsTranscript(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	transcriptDir := filepath.Join(root, "sessions", "state", "transcripts", "sess-1")
	if err := os.MkdirAll(transcriptDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := b.States.Edit(func(st *state.State) error {
		st.Flags.Subagent = true
		st.Flags.SubagentSessionID = "sess-1"
		st.ExecutionWindows.Tasks = []state.OwnershipRecord{
			{TaskFile: "sessions/tasks/t1.md", AssignedTo: "sess-1", AssignedFiles: []string{"a.go", "b.go"}},
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Run(Input{ToolName: "Task", ToolInput: map[string]any{}, TranscriptDir: transcriptDir}); err != nil {
		t.Fatal(err)
	}

	st, err := b.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.Flags.Subagent {
		t.Fatal("expected subagent flag cleared")
	}
	if st.ExecutionWindows.Tasks[0].AssignedTo != "" || st.ExecutionWindows.Tasks[0].AssignedFiles != nil {
		t.Fatalf("expected ownership released, got %+v", st.ExecutionWindows.Tasks[0])
	}
	if _, err := os.Stat(transcriptDir); !os.IsNotExist(err) {
		t.Fatalf("expected transcript directory removed, stat err = %v", err)
	}
}

func TestRunTodoWriteCompletionProtocolClearsEverything(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	if err := b.States.Edit(func(st *state.State) error {
		st.Mode = state.ModeOrchestration
		st.ActiveProtocol = state.ProtocolCompletion
		st.CurrentTask = &state.CurrentTask{Name: "wrap up", File: "sessions/tasks/t1.md"}
		st.Todos.Active = []state.Todo{{Content: "finish", Status: state.TodoCompleted}}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	r, err := b.Run(Input{ToolName: "TodoWrite"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Stderr == "" {
		t.Fatal("expected completion banner")
	}

	st, err := b.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != state.ModeDiscussion {
		t.Fatalf("expected mode reset to discussion, got %q", st.Mode)
	}
	if !st.CurrentTask.IsZero() {
		t.Fatalf("expected current task cleared, got %+v", st.CurrentTask)
	}
	if st.ActiveProtocol != state.ProtocolNone {
		t.Fatalf("expected active protocol cleared, got %q", st.ActiveProtocol)
	}
}

func TestRunTodoWriteRestoresStash(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	if err := b.States.Edit(func(st *state.State) error {
		st.Mode = state.ModeOrchestration
		st.Todos.Active = []state.Todo{{Content: "finish", Status: state.TodoCompleted}}
		st.Todos.Stashed = []state.Todo{{Content: "earlier step", Status: state.TodoPending}}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	r, err := b.Run(Input{ToolName: "TodoWrite"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Stderr == "" {
		t.Fatal("expected restore banner")
	}

	st, err := b.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Todos.Active) != 1 || st.Todos.Active[0].Content != "earlier step" {
		t.Fatalf("expected stashed todos restored, got %+v", st.Todos.Active)
	}
	if st.Todos.Stashed != nil {
		t.Fatalf("expected stash cleared, got %+v", st.Todos.Stashed)
	}
	if !st.Flags.APITodosClear {
		t.Fatal("expected a one-shot todos_clear ticket granted")
	}
}

func TestRunTodoWritePlainCompletionClearsAndReturnsDiscussion(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	if err := b.States.Edit(func(st *state.State) error {
		st.Mode = state.ModeOrchestration
		st.Todos.Active = []state.Todo{{Content: "finish", Status: state.TodoCompleted}}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Run(Input{ToolName: "TodoWrite"}); err != nil {
		t.Fatal(err)
	}

	st, err := b.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != state.ModeDiscussion {
		t.Fatalf("expected mode reset to discussion, got %q", st.Mode)
	}
	if len(st.Todos.Active) != 0 {
		t.Fatalf("expected active todos cleared, got %+v", st.Todos.Active)
	}
}

func TestRunOneShotAPITodosClearRevokedOnOtherToolUse(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	if err := b.States.Edit(func(st *state.State) error {
		st.Flags.APITodosClear = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Run(Input{ToolName: "Read", ToolInput: map[string]any{}}); err != nil {
		t.Fatal(err)
	}

	st, err := b.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.Flags.APITodosClear {
		t.Fatal("expected the one-shot ticket revoked after an unrelated tool use")
	}
}

func TestRunWriteOnCurrentTaskFileReparsesFrontmatter(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	taskRel := "sessions/tasks/t1.md"
	taskAbs := filepath.Join(root, taskRel)

	if err := b.States.Edit(func(st *state.State) error {
		st.CurrentTask = &state.CurrentTask{Name: "old name", File: taskRel, Branch: "main"}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	content := "---\nname: new name\nbranch: feature/x\nstatus: In Progress\nsubmodules: [a,b]\n---\nbody\n"

	_, err := b.Run(Input{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": taskAbs},
		TaskFileContent: func(path string) (string, error) {
			return content, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	st, err := b.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentTask.Name != "new name" || st.CurrentTask.Branch != "feature/x" {
		t.Fatalf("expected frontmatter re-parsed into current task, got %+v", st.CurrentTask)
	}
	if len(st.CurrentTask.Submodules) != 2 {
		t.Fatalf("expected submodules parsed, got %+v", st.CurrentTask.Submodules)
	}
}

func TestRunWriteOnUnrelatedFileDoesNotTouchCurrentTask(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	if err := b.States.Edit(func(st *state.State) error {
		st.CurrentTask = &state.CurrentTask{Name: "old name", File: "sessions/tasks/t1.md"}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	called := false
	_, err := b.Run(Input{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": filepath.Join(root, "main.go")},
		TaskFileContent: func(path string) (string, error) {
			called = true
			return "", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("expected TaskFileContent not invoked for a file other than the current task file")
	}

	st, err := b.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentTask.Name != "old name" {
		t.Fatalf("expected current task unchanged, got %+v", st.CurrentTask)
	}
}

func TestRunOrchestrationReminderWhenTodosEmpty(t *testing.T) {
	root := t.TempDir()
	b := New(root)

	if err := b.States.Edit(func(st *state.State) error {
		st.Mode = state.ModeOrchestration
		st.CurrentTask = &state.CurrentTask{Name: "active task", File: "sessions/tasks/t1.md"}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	r, err := b.Run(Input{ToolName: "Read", ToolInput: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if r.Stderr == "" {
		t.Fatal("expected an orchestration-mode reminder when there are no open todos")
	}
}
