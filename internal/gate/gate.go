// Package gate implements the pre-tool-use decision engine (spec §4.E): a
// deterministic, short-circuit evaluation over {sub-agent staleness, task
// dispatch, discussion-mode Bash, sub-agent orchestration-state
// protection, discussion-mode tool block, todo tamper, branch/submodule
// consistency}. Grounded on the teacher's internal/protocol/handlers.go
// dispatch-table shape (one function per concern, composed by a single
// entrypoint) and its CI-environment bypass pattern.
package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xcawolfe-amzn/cc-sessions/internal/classifier"
	"github.com/xcawolfe-amzn/cc-sessions/internal/config"
	"github.com/xcawolfe-amzn/cc-sessions/internal/gitsnap"
	"github.com/xcawolfe-amzn/cc-sessions/internal/orchpath"
	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
)

// Decision is the gate's verdict for one tool invocation.
type Decision struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

const (
	exitAllow = 0
	exitDeny  = 1
	exitBlock = 2
)

func allow() Decision                { return Decision{ExitCode: exitAllow} }
func allowWithNote(note string) Decision { return Decision{ExitCode: exitAllow, Stderr: note} }
func block(reason string) Decision    { return Decision{ExitCode: exitBlock, Stderr: reason} }

// Input is the pre-tool-use hook payload (spec §6.1).
type Input struct {
	SessionID string
	Cwd       string
	ToolName  string
	ToolInput map[string]any
}

// fileWriterTools are tools the gate treats as direct file writers for
// protection/branch checks (spec §4.E steps 4, 7).
var fileWriterTools = map[string]bool{
	"Write": true, "Edit": true, "MultiEdit": true, "NotebookEdit": true,
}

// Gate composes the state store, config store, and git snapshot cache to
// evaluate tool calls for one project.
type Gate struct {
	Root       string
	States     *state.Store
	Configs    *config.Store
	GitSnaps   *gitsnap.Cache
	CLIAliases []string // our own CLI's invocation names, always allowed as Bash
}

// New constructs a Gate rooted at projectRoot.
func New(projectRoot string) *Gate {
	return &Gate{
		Root:       projectRoot,
		States:     state.New(projectRoot),
		Configs:    config.New(projectRoot),
		GitSnaps:   gitsnap.NewCache(),
		CLIAliases: []string{"cc-sessions", "sessions"},
	}
}

// isCI reports whether well-known CI environment variables are set (spec
// §4.E: "the gate returns allow immediately").
func isCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "CONTINUOUS_INTEGRATION"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// Evaluate runs the full short-circuit decision order over in.
func (g *Gate) Evaluate(ctx context.Context, in Input) (Decision, error) {
	if isCI() {
		return allow(), nil
	}

	cfg, err := g.Configs.Load()
	if err != nil {
		return Decision{}, fmt.Errorf("loading config: %w", err)
	}

	var decision Decision
	var decided bool
	err = g.States.Edit(func(st *state.State) error {
		// Step 1: sub-agent staleness.
		if st.Flags.Subagent && st.Flags.IsSubagentStale(in.SessionID) {
			st.Flags.Subagent = false
			st.Flags.SubagentSessionID = ""
		}

		// Step 2: task dispatch gate.
		if in.ToolName == "Task" {
			decision, decided = g.evalTaskDispatch(st, in)
			if decided {
				return nil
			}
		}

		// Step 3: Bash in discussion mode.
		if st.Mode == state.ModeDiscussion && !st.Flags.BypassMode && in.ToolName == "Bash" {
			decision, decided = g.evalDiscussionBash(cfg, in)
			if decided {
				return nil
			}
		}

		// Step 4: sub-agent orchestration-state protection.
		if st.Flags.Subagent {
			decision, decided = g.evalSubagentProtection(cfg, in)
			if decided {
				return nil
			}
		}

		// Step 5: discussion-mode tool block.
		if st.Mode == state.ModeDiscussion && !st.Flags.BypassMode && blockedToolSet(cfg)[in.ToolName] {
			decision = block(fmt.Sprintf("%s is blocked in discussion mode; switch to orchestration mode first", in.ToolName))
			decided = true
			return nil
		}

		// Step 6: todo tamper check.
		if in.ToolName == "TodoWrite" {
			decision, decided = g.evalTodoTamper(st, cfg, in)
			if decided {
				return nil
			}
		}

		// Step 7: branch/submodule consistency.
		if cfg.Features.BranchEnforcement && fileWriterTools[in.ToolName] {
			decision, decided = g.evalBranchConsistency(ctx, st, in)
			if decided {
				return nil
			}
		}

		decision = allow()
		decided = true
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

func blockedToolSet(cfg *config.Config) map[string]bool {
	set := make(map[string]bool, len(cfg.BlockedTools))
	for _, t := range cfg.BlockedTools {
		set[t] = true
	}
	return set
}

func (g *Gate) evalTaskDispatch(st *state.State, in Input) (Decision, bool) {
	if st.Flags.Subagent {
		return block("cannot spawn nested sub-agents"), true
	}

	plan := st.Metadata.Orchestration.ExecutionPlan
	taskID, _ := in.ToolInput["task_id"].(string)
	if plan == nil || taskID == "" {
		return Decision{}, false
	}

	incomingSession, _ := in.ToolInput["session_id"].(string)
	if incomingSession != "" && incomingSession != st.Metadata.Orchestration.SessionID {
		return block("task dispatch session id does not match the active orchestration session"), true
	}

	group := plan.GroupForTask(taskID)
	if group == nil {
		return block(fmt.Sprintf("task %s does not belong to any group in the execution plan", taskID)), true
	}
	// A group left pending by the backlog bridge (spec §8 scenario 7) becomes
	// eligible the moment its dependencies clear, rather than staying stuck
	// until some other actor flips it to running.
	if group.Status == state.GroupPending && plan.DependenciesSatisfied(group) {
		group.Status = state.GroupRunning
	}
	if group.Status != state.GroupRunning {
		return block(fmt.Sprintf("group %s is not running (status=%s)", group.ID, group.Status)), true
	}
	if !plan.DependenciesSatisfied(group) {
		return block(fmt.Sprintf("group %s has unsatisfied dependencies", group.ID)), true
	}

	st.Metadata.Orchestration.ActiveGroupID = group.ID
	return allow(), true
}

func (g *Gate) evalDiscussionBash(cfg *config.Config, in Input) (Decision, bool) {
	command, _ := in.ToolInput["command"].(string)
	if isOwnCLI(command, g.CLIAliases) {
		return Decision{ExitCode: exitAllow, Stdout: allowPermissionJSON("running the cc-sessions CLI")}, true
	}

	result := classifier.Classify(command, cfg.Extrasafe)
	if !result.WriteLike {
		return Decision{ExitCode: exitAllow, Stdout: allowPermissionJSON("read-only command")}, true
	}
	return block("write-like commands are blocked in discussion mode; configure read/write patterns via the cc-sessions CLI, or switch to orchestration mode"), true
}

func (g *Gate) evalSubagentProtection(cfg *config.Config, in Input) (Decision, bool) {
	if in.ToolName == "Bash" {
		command, _ := in.ToolInput["command"].(string)
		result := classifier.Classify(command, cfg.Extrasafe)
		for _, target := range result.Targets {
			if _, protected := orchpath.ResolveAndCheck(g.Root, target); protected {
				return block("sub-agents may not write to cc-sessions orchestration state files"), true
			}
		}
		return Decision{}, false
	}

	if fileWriterTools[in.ToolName] {
		path, _ := in.ToolInput["file_path"].(string)
		if path == "" {
			return Decision{}, false
		}
		if _, protected := orchpath.ResolveAndCheck(g.Root, path); protected {
			return block("sub-agents may not write to cc-sessions orchestration state files"), true
		}
	}
	return Decision{}, false
}

func (g *Gate) evalTodoTamper(st *state.State, cfg *config.Config, in Input) (Decision, bool) {
	if len(st.Todos.Active) == 0 {
		return Decision{}, false
	}

	incoming, _ := in.ToolInput["todos"].([]any)
	if len(incoming) != len(st.Todos.Active) {
		return g.rejectTodoTamper(st, cfg), true
	}
	for i, raw := range incoming {
		m, ok := raw.(map[string]any)
		if !ok {
			return g.rejectTodoTamper(st, cfg), true
		}
		content, _ := m["content"].(string)
		if content != st.Todos.Active[i].Content {
			return g.rejectTodoTamper(st, cfg), true
		}
	}
	return Decision{}, false
}

func (g *Gate) rejectTodoTamper(st *state.State, cfg *config.Config) Decision {
	st.Todos.ParentSnapshot = append([]state.Todo(nil), st.Todos.Active...)
	st.Todos.Active = nil
	st.Mode = state.ModeDiscussion

	triggers := cfg.TriggerPhrases[config.TriggerOrchestrationMode]
	return block(fmt.Sprintf(
		"the proposed todo list does not match the stored list; it has been stashed and mode reset to discussion. To resume orchestration, use one of: %s",
		strings.Join(triggers, ", "),
	))
}

func (g *Gate) evalBranchConsistency(ctx context.Context, st *state.State, in Input) (Decision, bool) {
	if st.CurrentTask.IsZero() {
		return Decision{}, false
	}
	path, _ := in.ToolInput["file_path"].(string)
	if path == "" {
		return Decision{}, false
	}

	resolved, err := orchpath.Resolve(g.Root, path)
	if err != nil {
		return Decision{}, false
	}

	dir := resolveGitRoot(g.Root, filepath.Dir(resolved))
	snap, err := g.GitSnaps.Snapshot(ctx, dir)
	if err != nil {
		return Decision{}, false
	}

	rel := ""
	if dir != g.Root {
		if r, err := filepath.Rel(g.Root, dir); err == nil && r != "." {
			rel = r
		}
	}

	inTaskSubmodules := containsSubmodule(st.CurrentTask.Submodules, rel)
	branchMatches := snap.Branch == st.CurrentTask.Branch

	switch {
	case inTaskSubmodules && branchMatches:
		return Decision{}, false
	case inTaskSubmodules && !branchMatches:
		return block(fmt.Sprintf("checkout %s before editing files on this branch", st.CurrentTask.Branch)), true
	case !inTaskSubmodules && branchMatches:
		return block("update the task file's submodules list to include this repository"), true
	default:
		return block(fmt.Sprintf(
			"checkout %s and update the task file's submodules list to include this repository",
			st.CurrentTask.Branch,
		)), true
	}
}

// resolveGitRoot walks upward from dir looking for the nearest enclosing
// git working tree — a ".git" entry, whether the project root's own
// directory or a submodule's gitfile (spec §4.E step 7: the write
// target's own working tree governs, not always the project root). The
// walk never escapes above root.
func resolveGitRoot(root, dir string) string {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		if dir == root {
			return root
		}
		parent := filepath.Dir(dir)
		if parent == dir || !underRoot(root, parent) {
			return root
		}
		dir = parent
	}
}

func underRoot(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// containsSubmodule reports whether rel — the write target's containing
// git root, expressed relative to the project root, or "" for the
// project root itself — is in scope for the current task. The project
// root is always in scope (invariant 6: the task's branch governs "every
// repository listed in the task's submodules... and of the project
// root"); any other tree is in scope only if named in submodules.
func containsSubmodule(submodules []string, rel string) bool {
	if rel == "" {
		return true
	}
	for _, s := range submodules {
		if s == rel {
			return true
		}
	}
	return false
}

func isOwnCLI(command string, aliases []string) bool {
	command = strings.TrimSpace(command)
	for _, alias := range aliases {
		if command == alias || strings.HasPrefix(command, alias+" ") {
			return true
		}
	}
	return false
}

// allowPermissionJSON renders the structured permission-decision object
// the host agent contract expects on the allow path for Bash (spec
// §4.E design notes).
func allowPermissionJSON(reason string) string {
	return fmt.Sprintf(
		`{"hookSpecificOutput":{"hookEventName":"PreToolUse","permissionDecision":"allow","permissionDecisionReason":%q}}`,
		reason,
	)
}
