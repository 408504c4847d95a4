package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xcawolfe-amzn/cc-sessions/internal/bookkeep"
	"github.com/xcawolfe-amzn/cc-sessions/internal/dispatch"
	"github.com/xcawolfe-amzn/cc-sessions/internal/gate"
	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
	"github.com/xcawolfe-amzn/cc-sessions/internal/style"
	"github.com/xcawolfe-amzn/cc-sessions/internal/trigger"
	"github.com/xcawolfe-amzn/cc-sessions/internal/workspace"
)

// hookPayload is the generalized shape of every hook event's stdin JSON
// (spec §6.1): a superset of the fields any one event actually populates.
type hookPayload struct {
	SessionID      string         `json:"session_id"`
	Cwd            string         `json:"cwd"`
	HookEventName  string         `json:"hook_event_name"`
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	TranscriptPath string         `json:"transcript_path"`
	ExitStatus     string         `json:"exit_status"`
	Prompt         string         `json:"prompt"`
	Phase          string         `json:"phase"` // "pre_dispatch" | "post_stop" for subagent_hooks
	Model          modelField     `json:"model"`
}

// modelField accepts either a bare string or {"display_name": "..."} for
// the statusline payload's model key (spec §6.1: "model (string or
// {display_name})").
type modelField struct {
	DisplayName string
}

func (m *modelField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.DisplayName = s
		return nil
	}
	var obj struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	m.DisplayName = obj.DisplayName
	return nil
}

// defaultHandlers returns the daemon's full hook-name -> Handler registry
// (spec §4.H: "ping and statusline" initially, the rest migrated behind
// use_hook_daemon — the daemon itself always serves the full set; the
// flag lives client-side in the hook shim's dispatch decision).
func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		"ping":             handlePing,
		"statusline":       handleStatusline,
		"user_messages":    handleUserMessages,
		"sessions_enforce": handleSessionsEnforce,
		"post_tool_use":    handlePostToolUse,
		"session_start":    handleSessionStart,
		"subagent_hooks":   handleSubagentHooks,
	}
}

func decodePayload(req Request) (hookPayload, error) {
	var p hookPayload
	if len(req.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return hookPayload{}, fmt.Errorf("decoding %s payload: %w", req.Hook, err)
	}
	return p, nil
}

func errorResponse(err error) Response {
	return Response{ExitCode: 1, Stderr: err.Error()}
}

func handlePing(_ context.Context, _ *Server, _ Request) Response {
	return Response{ExitCode: 0, Stdout: "pong"}
}

// handleStatusline composes the single-line terminal status the host
// agent renders below the prompt: a mode badge, the current task's name,
// todo progress, and the model name (spec §4.H expansion).
func handleStatusline(_ context.Context, s *Server, req Request) Response {
	p, err := decodePayload(req)
	if err != nil {
		return errorResponse(err)
	}
	root, err := workspace.Root(p.Cwd)
	if err != nil {
		return errorResponse(err)
	}
	comp := s.comps.get(root)

	st, err := comp.gate.States.Load()
	if err != nil {
		return errorResponse(err)
	}

	return Response{ExitCode: 0, Stdout: renderStatusline(st, p.Model.DisplayName)}
}

func renderStatusline(st *state.State, modelName string) string {
	var badge string
	if st.Mode == state.ModeOrchestration {
		badge = style.Accent.Render("ORCHESTRATION")
	} else {
		badge = style.Dim.Render("discussion")
	}

	var parts []string
	parts = append(parts, badge)

	if !st.CurrentTask.IsZero() {
		parts = append(parts, style.Bold.Render(st.CurrentTask.Name))
	}

	if len(st.Todos.Active) > 0 {
		done := 0
		for _, td := range st.Todos.Active {
			if td.Status == state.TodoCompleted {
				done++
			}
		}
		progress := fmt.Sprintf("%d/%d", done, len(st.Todos.Active))
		if done == len(st.Todos.Active) {
			parts = append(parts, style.Good.Render(progress))
		} else {
			parts = append(parts, progress)
		}
	}

	if modelName != "" {
		parts = append(parts, style.Dim.Render(modelName))
	}

	return strings.Join(parts, "  ")
}

// handleUserMessages runs the UserPromptSubmit trigger-phrase scan,
// switching mode/protocol as configured (spec §3.1 TriggerPhrases).
func handleUserMessages(_ context.Context, s *Server, req Request) Response {
	p, err := decodePayload(req)
	if err != nil {
		return errorResponse(err)
	}
	root, err := workspace.Root(p.Cwd)
	if err != nil {
		return errorResponse(err)
	}
	comp := s.comps.get(root)

	cfg, err := comp.configs.Load()
	if err != nil {
		return errorResponse(err)
	}

	var note string
	err = comp.gate.States.Edit(func(st *state.State) error {
		result := trigger.Apply(st, cfg, p.Prompt)
		if result.ModeChanged {
			note = fmt.Sprintf("cc-sessions: mode switched to %s", result.Mode)
		}
		return nil
	})
	if err != nil {
		return errorResponse(err)
	}
	return Response{ExitCode: 0, Stderr: note}
}

func handleSessionsEnforce(ctx context.Context, s *Server, req Request) Response {
	p, err := decodePayload(req)
	if err != nil {
		return errorResponse(err)
	}
	root, err := workspace.Root(p.Cwd)
	if err != nil {
		return errorResponse(err)
	}
	comp := s.comps.get(root)

	decision, err := comp.gate.Evaluate(ctx, gate.Input{
		SessionID: p.SessionID,
		Cwd:       p.Cwd,
		ToolName:  p.ToolName,
		ToolInput: p.ToolInput,
	})
	if err != nil {
		return errorResponse(err)
	}
	return Response{ExitCode: decision.ExitCode, Stdout: decision.Stdout, Stderr: decision.Stderr}
}

func handlePostToolUse(_ context.Context, s *Server, req Request) Response {
	p, err := decodePayload(req)
	if err != nil {
		return errorResponse(err)
	}
	root, err := workspace.Root(p.Cwd)
	if err != nil {
		return errorResponse(err)
	}
	comp := s.comps.get(root)

	result, err := comp.bookkeep.Run(bookkeep.Input{
		ToolName:        p.ToolName,
		ToolInput:       p.ToolInput,
		TranscriptDir:   transcriptDirFor(comp.dispatch, p),
		TaskFileContent: readFileAsString,
	})
	if err != nil {
		return errorResponse(err)
	}
	return Response{ExitCode: 0, Stderr: result.Stderr}
}

// transcriptDirFor resolves the sub-agent transcript directory a
// Task-finish bookkeeping pass should clean up, if the payload names a
// subagent_type (spec §4.F: paired with §4.G's per-target directories).
func transcriptDirFor(d *dispatch.Dispatcher, p hookPayload) string {
	subagentType, _ := p.ToolInput["subagent_type"].(string)
	if subagentType == "" {
		return ""
	}
	return filepath.Join(d.TranscriptsBase, subagentType)
}

func handleSessionStart(_ context.Context, s *Server, req Request) Response {
	p, err := decodePayload(req)
	if err != nil {
		return errorResponse(err)
	}
	root, err := workspace.Root(p.Cwd)
	if err != nil {
		return errorResponse(err)
	}
	comp := s.comps.get(root)

	if _, err := comp.gate.States.Load(); err != nil {
		return errorResponse(err)
	}
	if _, err := comp.configs.Load(); err != nil {
		return errorResponse(err)
	}
	return Response{ExitCode: 0}
}

func handleSubagentHooks(ctx context.Context, s *Server, req Request) Response {
	p, err := decodePayload(req)
	if err != nil {
		return errorResponse(err)
	}
	root, err := workspace.Root(p.Cwd)
	if err != nil {
		return errorResponse(err)
	}
	comp := s.comps.get(root)

	switch p.Phase {
	case "pre_dispatch":
		result, err := comp.dispatch.PreDispatch(ctx, dispatch.PreDispatchInput{
			HostSessionID:  p.SessionID,
			TranscriptPath: p.TranscriptPath,
			ToolInput:      p.ToolInput,
		})
		if err != nil {
			return errorResponse(err)
		}
		stdout, _ := json.Marshal(map[string]any{
			"subagent_type": result.SubagentType,
			"target_dir":    result.TargetDir,
			"chunk_paths":   result.ChunkPaths,
		})
		return Response{ExitCode: result.ExitCode, Stderr: result.Stderr, Stdout: string(stdout)}

	case "post_stop":
		comp.dispatch.PostStop(ctx, s.Logger, dispatch.PostStopInput{
			ToolName:       p.ToolName,
			SessionID:      p.SessionID,
			TranscriptPath: p.TranscriptPath,
			ExitStatus:     p.ExitStatus,
		})
		return Response{ExitCode: 0}

	default:
		return Response{ExitCode: 1, Stderr: "subagent_hooks: unknown phase " + strconv.Quote(p.Phase)}
	}
}

func readFileAsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
