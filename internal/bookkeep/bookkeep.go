// Package bookkeep implements the post-tool bookkeeping engine (spec
// §4.F): mode transitions driven by todo completion, ownership release on
// sub-task end, one-shot permission revocation, and task-frontmatter
// re-parsing. Grounded on the teacher's internal/protocol/handlers.go
// post-action dispatch shape, generalized from gastown's task-completion
// bookkeeping to this system's discussion/orchestration mode machine.
package bookkeep

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
	"github.com/xcawolfe-amzn/cc-sessions/internal/taskfile"
)

// Result carries the stderr breadcrumbs/reminders the bookkeeper wants
// surfaced to the host, mirroring the gate's Decision shape but always
// exit 0 — the bookkeeper runs post-tool and never blocks.
type Result struct {
	Stderr string
}

// Input is the post-tool-use hook payload (spec §6.1) plus whatever the
// bookkeeper needs beyond the bare tool_input.
type Input struct {
	ToolName        string
	ToolInput       map[string]any
	TranscriptDir   string // sub-agent transcript directory, for Task-finish cleanup
	TaskFileContent func(path string) (string, error)
}

// Bookkeeper runs the five post-tool action families against one
// project's state store.
type Bookkeeper struct {
	Root   string
	States *state.Store
}

// New constructs a Bookkeeper rooted at projectRoot.
func New(projectRoot string) *Bookkeeper {
	return &Bookkeeper{Root: projectRoot, States: state.New(projectRoot)}
}

// Run dispatches in.ToolName to its action family and mutates state under
// the lock as needed.
func (b *Bookkeeper) Run(in Input) (Result, error) {
	var result Result
	err := b.States.Edit(func(st *state.State) error {
		hadTicket := st.Flags.APITodosClear
		switch in.ToolName {
		case "Bash":
			result = b.handleBash(in)
		case "Task":
			b.handleTaskFinish(st, in)
		case "TodoWrite":
			result = b.handleTodoWrite(st)
		case "Write", "Edit", "MultiEdit":
			b.handleTaskFileEdit(st, in)
		}
		if hadTicket && in.ToolName != "todos-clear" {
			st.Flags.APITodosClear = false
		}
		if r := b.maybeReminder(st); r.Stderr != "" {
			if result.Stderr == "" {
				result = r
			} else {
				result.Stderr += "\n" + r.Stderr
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (b *Bookkeeper) handleBash(in Input) Result {
	command, _ := in.ToolInput["command"].(string)
	if !isCdCommand(command) {
		return Result{}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Result{}
	}
	return Result{Stderr: fmt.Sprintf("cc-sessions: now in %s", cwd)}
}

func isCdCommand(command string) bool {
	trimmed := command
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	return len(trimmed) >= 2 && trimmed[:2] == "cd" && (len(trimmed) == 2 || trimmed[2] == ' ')
}

func (b *Bookkeeper) handleTaskFinish(st *state.State, in Input) {
	if !st.Flags.Subagent {
		return
	}
	releaseOwnership(st, st.Flags.SubagentSessionID)
	st.Flags.Subagent = false
	st.Flags.SubagentSessionID = ""

	if in.TranscriptDir != "" {
		_ = os.RemoveAll(in.TranscriptDir)
	}
}

// releaseOwnership clears the assignment on whichever ownership record the
// finishing sub-agent held, leaving the record itself (and its task/branch
// history) in place for the next assignee.
func releaseOwnership(st *state.State, subagentSessionID string) {
	for i := range st.ExecutionWindows.Tasks {
		rec := &st.ExecutionWindows.Tasks[i]
		if rec.AssignedTo != subagentSessionID {
			continue
		}
		rec.AssignedTo = ""
		rec.AssignedFiles = nil
	}
}

func (b *Bookkeeper) handleTodoWrite(st *state.State) Result {
	if st.Mode != state.ModeOrchestration {
		return Result{}
	}
	if !allCompleted(st.Todos.Active) {
		return Result{}
	}

	switch {
	case st.ActiveProtocol == state.ProtocolCompletion:
		st.Mode = state.ModeDiscussion
		st.CurrentTask = nil
		st.Todos = state.TodoList{}
		st.ActiveProtocol = state.ProtocolNone
		return Result{Stderr: "task complete — use the cc-sessions CLI to list open tasks"}

	case len(st.Todos.Stashed) > 0:
		st.Todos.Active = st.Todos.Stashed
		st.Todos.Stashed = nil
		st.Flags.APITodosClear = true
		return Result{Stderr: fmt.Sprintf("restored stashed todos — clear them with %s", todosClearCLIPath())}

	default:
		st.Todos.Active = nil
		st.Mode = state.ModeDiscussion
		return Result{}
	}
}

func allCompleted(todos []state.Todo) bool {
	if len(todos) == 0 {
		return false
	}
	for _, t := range todos {
		if t.Status != state.TodoCompleted {
			return false
		}
	}
	return true
}

func todosClearCLIPath() string {
	if runtime.GOOS == "windows" {
		return `cc-sessions.exe todos clear`
	}
	return "cc-sessions todos clear"
}

func (b *Bookkeeper) handleTaskFileEdit(st *state.State, in Input) {
	if st.CurrentTask.IsZero() {
		return
	}
	path, _ := in.ToolInput["file_path"].(string)
	if path == "" {
		return
	}
	taskFileAbs := filepath.Join(b.Root, st.CurrentTask.File)
	if filepath.Clean(path) != filepath.Clean(taskFileAbs) {
		return
	}
	if in.TaskFileContent == nil {
		return
	}
	content, err := in.TaskFileContent(path)
	if err != nil {
		return
	}
	fm, ok := taskfile.Parse(content)
	if !ok {
		return
	}

	st.CurrentTask.Name = fm.Name
	st.CurrentTask.Branch = fm.Branch
	st.CurrentTask.Status = fm.Status
	st.CurrentTask.Dependencies = fm.Dependencies
	st.CurrentTask.Submodules = fm.Submodules
}

func (b *Bookkeeper) maybeReminder(st *state.State) Result {
	if st.Mode == state.ModeOrchestration && !st.Flags.Subagent && len(st.Todos.Active) == 0 && !st.CurrentTask.IsZero() {
		return Result{Stderr: fmt.Sprintf("cc-sessions: orchestration mode active, task %q has no open todos", st.CurrentTask.Name)}
	}
	return Result{}
}
