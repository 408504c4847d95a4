package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xcawolfe-amzn/cc-sessions/internal/bookkeep"
	"github.com/xcawolfe-amzn/cc-sessions/internal/config"
	"github.com/xcawolfe-amzn/cc-sessions/internal/daemon"
	"github.com/xcawolfe-amzn/cc-sessions/internal/dispatch"
	"github.com/xcawolfe-amzn/cc-sessions/internal/gate"
	"github.com/xcawolfe-amzn/cc-sessions/internal/hookshim"
	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
	"github.com/xcawolfe-amzn/cc-sessions/internal/style"
	"github.com/xcawolfe-amzn/cc-sessions/internal/trigger"
	"github.com/xcawolfe-amzn/cc-sessions/internal/workspace"
)

// hookCmd is the single entrypoint every configured hook in the host
// agent's settings actually invokes: `cc-sessions hook <name>`. It tries
// the daemon first and falls back to an in-process legacy implementation
// on any terminal failure (spec §4.I).
var hookCmd = &cobra.Command{
	Use:     "hook <name>",
	GroupID: GroupServices,
	Short:   "Run one hook event (invoked by the host agent, not by hand)",
	Args:    cobra.ExactArgs(1),
	Hidden:  true,
	Long: `hook runs a single hook event end to end: read the event payload from
stdin, try the background daemon, and fall back to a bundled
per-invocation implementation if the daemon is unreachable and cannot
be spawned (spec §4.I).

Examples:
  cc-sessions hook sessions_enforce < payload.json
  cc-sessions hook statusline < payload.json`,
	RunE: runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

// hookPayload mirrors the daemon's own decode shape; the legacy path
// decodes payloads itself since it never goes through the daemon.
type hookPayload struct {
	SessionID      string         `json:"session_id"`
	Cwd            string         `json:"cwd"`
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	TranscriptPath string         `json:"transcript_path"`
	ExitStatus     string         `json:"exit_status"`
	Prompt         string         `json:"prompt"`
	Phase          string         `json:"phase"`
	Model          hookModel      `json:"model"`
}

type hookModel struct {
	DisplayName string
}

func (m *hookModel) UnmarshalJSON(data []byte) error {
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

func runHook(cmd *cobra.Command, args []string) error {
	hookName := args[0]

	stdin, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	legacy := legacyFuncFor(hookName)

	var stdout, stderr string
	var exitCode int
	if useHookDaemon(stdin) {
		client := hookshim.NewClient(hookName, daemon.DefaultSocketPath())
		stdout, stderr, exitCode = client.Run(bytes.NewReader(stdin), legacy)
	} else {
		stdout, stderr, exitCode = legacy(stdin)
	}

	if stderr != "" {
		fmt.Fprintln(os.Stderr, stderr)
	}
	if stdout != "" {
		fmt.Fprintln(os.Stdout, stdout)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// useHookDaemon reports whether the daemon path should even be attempted
// for this invocation, per the project's use_hook_daemon feature flag
// (spec §4.H expansion: handlers beyond ping/statusline are "migrated
// progressively behind a use_hook_daemon feature flag"). Falls back to
// true (the daemon path) if the payload's cwd or the config can't be
// resolved, since that's the same failure mode hookshim's own retry logic
// already handles gracefully.
func useHookDaemon(stdin []byte) bool {
	var p struct {
		Cwd string `json:"cwd"`
	}
	if len(stdin) == 0 || json.Unmarshal(stdin, &p) != nil {
		return true
	}
	root, err := workspace.Root(p.Cwd)
	if err != nil {
		return true
	}
	cfg, err := config.New(root).Load()
	if err != nil {
		return true
	}
	return cfg.Features.UseHookDaemon
}

// legacyFuncFor returns the bundled per-invocation implementation of one
// hook, run when the daemon cannot be reached. Each legacy call builds
// its own gate/bookkeeper/dispatcher/config for the request's workspace
// root rather than sharing the daemon's warm component cache — correct
// but slower, which is exactly the tradeoff spec §4.I describes.
func legacyFuncFor(hookName string) hookshim.LegacyFunc {
	return func(stdin []byte) (string, string, int) {
		var p hookPayload
		if len(stdin) > 0 {
			if err := json.Unmarshal(stdin, &p); err != nil {
				return "", fmt.Sprintf("cc-sessions: decoding %s payload: %s", hookName, err), 1
			}
		}

		root, err := workspace.Root(p.Cwd)
		if err != nil {
			return "", err.Error(), 1
		}

		switch hookName {
		case "ping":
			return "pong", "", 0

		case "statusline":
			g := gate.New(root)
			st, err := g.States.Load()
			if err != nil {
				return "", err.Error(), 1
			}
			return legacyStatusline(st, p.Model.DisplayName), "", 0

		case "user_messages":
			g := gate.New(root)
			cfgStore := config.New(root)
			cfg, err := cfgStore.Load()
			if err != nil {
				return "", err.Error(), 1
			}
			var note string
			err = g.States.Edit(func(st *state.State) error {
				result := trigger.Apply(st, cfg, p.Prompt)
				if result.ModeChanged {
					note = fmt.Sprintf("cc-sessions: mode switched to %s", result.Mode)
				}
				return nil
			})
			if err != nil {
				return "", err.Error(), 1
			}
			return "", note, 0

		case "sessions_enforce":
			g := gate.New(root)
			decision, err := g.Evaluate(context.Background(), gate.Input{
				SessionID: p.SessionID,
				Cwd:       p.Cwd,
				ToolName:  p.ToolName,
				ToolInput: p.ToolInput,
			})
			if err != nil {
				return "", err.Error(), 1
			}
			return decision.Stdout, decision.Stderr, decision.ExitCode

		case "post_tool_use":
			bk := bookkeep.New(root)
			d := dispatch.New(root)
			subagentType, _ := p.ToolInput["subagent_type"].(string)
			transcriptDir := ""
			if subagentType != "" {
				transcriptDir = filepath.Join(d.TranscriptsBase, subagentType)
			}
			result, err := bk.Run(bookkeep.Input{
				ToolName:        p.ToolName,
				ToolInput:       p.ToolInput,
				TranscriptDir:   transcriptDir,
				TaskFileContent: readFileAsString,
			})
			if err != nil {
				return "", err.Error(), 1
			}
			return "", result.Stderr, 0

		case "session_start":
			g := gate.New(root)
			cfgStore := config.New(root)
			if _, err := g.States.Load(); err != nil {
				return "", err.Error(), 1
			}
			if _, err := cfgStore.Load(); err != nil {
				return "", err.Error(), 1
			}
			return "", "", 0

		case "subagent_hooks":
			d := dispatch.New(root)
			switch p.Phase {
			case "pre_dispatch":
				result, err := d.PreDispatch(context.Background(), dispatch.PreDispatchInput{
					HostSessionID:  p.SessionID,
					TranscriptPath: p.TranscriptPath,
					ToolInput:      p.ToolInput,
				})
				if err != nil {
					return "", err.Error(), 1
				}
				out, _ := json.Marshal(map[string]any{
					"subagent_type": result.SubagentType,
					"target_dir":    result.TargetDir,
					"chunk_paths":   result.ChunkPaths,
				})
				return string(out), result.Stderr, result.ExitCode
			case "post_stop":
				d.PostStop(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), dispatch.PostStopInput{
					ToolName:       p.ToolName,
					SessionID:      p.SessionID,
					TranscriptPath: p.TranscriptPath,
					ExitStatus:     p.ExitStatus,
				})
				return "", "", 0
			default:
				return "", "subagent_hooks: unknown phase " + strconv.Quote(p.Phase), 1
			}

		default:
			return "", "cc-sessions: unknown hook " + strconv.Quote(hookName), 1
		}
	}
}

func legacyStatusline(st *state.State, modelName string) string {
	var badge string
	if st.Mode == state.ModeOrchestration {
		badge = style.Accent.Render("ORCHESTRATION")
	} else {
		badge = style.Dim.Render("discussion")
	}

	parts := []string{badge}

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

func readFileAsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
