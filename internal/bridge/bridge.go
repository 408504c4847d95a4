// Package bridge invokes the two external sub-process integrations named
// in the spec (§6.4): the backlog bridge, called synchronously with a
// bounded timeout at sub-agent stop, and the reasoning extractor, fired
// and forgotten with the trajectory piped on stdin. Grounded on the
// teacher's detached sub-process spawn pattern in its daemon-start command
// (os/exec.Cmd.Start without Wait) and its synchronous sub-process-with-
// timeout pattern elsewhere in internal/cmd — both generalized here from
// gastown-specific binaries to the two opaque Python-backed bridges this
// system shells out to.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// DefaultTimeout bounds the backlog bridge call (spec §5: sub-process
// calls are a suspension point the daemon must not block indefinitely on).
const DefaultTimeout = 10 * time.Second

// BacklogBridgeArgs carries the fields passed to the backlog bridge on
// sub-agent stop (spec §6.4).
type BacklogBridgeArgs struct {
	SessionID    string
	TaskID       string
	GroupID      string
	SubagentType string
	ExitStatus   string
	StateDir     string
	TasksDir     string
}

// BacklogResult is the bridge's parsed stdout JSON.
type BacklogResult struct {
	Signal string `json:"signal"`
}

// BacklogCommand names the python module invoked as the backlog bridge.
// Overridable only in tests.
var BacklogCommand = []string{"python3", "-m", "sessions.bin.backlog_bridge"}

// CallBacklog invokes the backlog bridge and parses its stdout. A
// non-zero exit or malformed JSON is reported as an error; the caller
// (the dispatcher's post-stop handler) treats any error as "halt, log
// only" per spec §6.4/§9 and never mutates state on failure.
func CallBacklog(ctx context.Context, logger *slog.Logger, args BacklogBridgeArgs) (BacklogResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	argv := append([]string{}, BacklogCommand[1:]...)
	argv = append(argv, "subagent-stop",
		"--session-id", args.SessionID,
		"--task-id", args.TaskID,
		"--group-id", args.GroupID,
		"--subagent-type", args.SubagentType,
		"--exit-status", args.ExitStatus,
		"--state-dir", args.StateDir,
		"--tasks-dir", args.TasksDir,
	)

	cmd := exec.CommandContext(ctx, BacklogCommand[0], argv...)
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Warn("backlog bridge failed", "error", err, "stderr", stderr.String())
		return BacklogResult{}, fmt.Errorf("backlog bridge: %w", err)
	}

	var result BacklogResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		logger.Warn("backlog bridge returned malformed JSON", "error", err, "stdout", stdout.String())
		return BacklogResult{}, fmt.Errorf("parsing backlog bridge output: %w", err)
	}
	return result, nil
}

// ReasoningExtractorArgs carries the fields passed to the fire-and-forget
// reasoning extractor (spec §6.4).
type ReasoningExtractorArgs struct {
	TaskID     string
	Outcome    string // "success" | "failure"
	GroupID    string
	Trajectory string
}

// ReasoningExtractorCommand names the python module invoked for reasoning
// extraction. Overridable only in tests.
var ReasoningExtractorCommand = []string{"python3", "-m", "reasoning_bank.cli"}

// ExtractReasoning starts the reasoning extractor without waiting for it
// (Start, with Wait only in a background goroutine that reaps the process
// and ignores its exit) and pipes the trajectory on stdin, matching spec §6.4's
// "detached; exit ignored" contract. It never returns an error the caller
// is expected to act on — a failure to even start the process is logged
// and swallowed, since this integration is best-effort by design (spec
// §9: "graceful feature disable").
func ExtractReasoning(logger *slog.Logger, args ReasoningExtractorArgs) {
	argv := append([]string{}, ReasoningExtractorCommand[1:]...)
	argv = append(argv, "extract",
		"--task-id", args.TaskID,
		"--outcome", args.Outcome,
		"--group-id", args.GroupID,
		"--trajectory-stdin",
	)

	cmd := exec.Command(ReasoningExtractorCommand[0], argv...)
	cmd.Env = os.Environ()
	cmd.Stdin = bytes.NewBufferString(args.Trajectory)

	if err := cmd.Start(); err != nil {
		logger.Debug("reasoning extractor unavailable, skipping", "error", err)
		return
	}
	go func() {
		_ = cmd.Wait()
	}()
}
