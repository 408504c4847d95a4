// Package dispatch implements the sub-agent dispatch pipeline (spec §4.G):
// pre-dispatch transcript handoff to a spawning Task call, and post-stop
// bridging of the finished sub-agent's outcome back into state. Grounded on
// the teacher's internal/cmd/daemon.go detached sub-process spawn pattern
// and internal/quota/state.go's lock-then-mutate discipline, generalized to
// this system's transcript-chunking contract.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xcawolfe-amzn/cc-sessions/internal/bridge"
	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
	"github.com/xcawolfe-amzn/cc-sessions/internal/util"
)

// Dispatcher composes the state store and the per-target lock/transcript
// directories rooted at one project.
type Dispatcher struct {
	Root            string
	States          *state.Store
	LocksDir        string
	TranscriptsBase string
	TasksDir        string
}

// New constructs a Dispatcher rooted at projectRoot, reusing the same
// hash-scoped state directory as internal/state.Store.
func New(projectRoot string) *Dispatcher {
	scope := util.ScopeHash(projectRoot)
	base := filepath.Join(projectRoot, "sessions", "state", scope)
	return &Dispatcher{
		Root:            projectRoot,
		States:          state.New(projectRoot),
		LocksDir:        filepath.Join(base, "locks"),
		TranscriptsBase: filepath.Join(base, "transcripts"),
		TasksDir:        filepath.Join(projectRoot, "sessions", "tasks"),
	}
}

// PreDispatchInput is the Task tool's pending invocation, as seen just
// before it fires.
type PreDispatchInput struct {
	HostSessionID  string
	TranscriptPath string
	ToolInput      map[string]any // task_id, group_id, subagent_type, files
}

// PreDispatchResult is what the pre-dispatch hook reports back to the host.
type PreDispatchResult struct {
	ExitCode     int
	Stderr       string
	SubagentType string
	TargetDir    string
	ChunkPaths   []string
}

const (
	exitAllow = 0
	exitBlock = 2
)

// PreDispatch runs the full pre-dispatch sequence: ownership-conflict check
// and flag set under the state lock, transcript load/trim, per-target lock,
// and chunked transcript handoff (spec §4.G pre-dispatch steps 1-6).
func (d *Dispatcher) PreDispatch(ctx context.Context, in PreDispatchInput) (PreDispatchResult, error) {
	taskID, _ := in.ToolInput["task_id"].(string)
	groupID, _ := in.ToolInput["group_id"].(string)
	files := stringSliceField(in.ToolInput["files"])

	var conflict PreDispatchResult
	var conflicted bool
	err := d.States.Edit(func(st *state.State) error {
		if taskID != "" && len(files) > 0 {
			if other, overlap := findOwnershipConflict(st, taskID, files); other != "" {
				recordConflict(st, taskID, other, overlap)
				conflicted = true
				conflict = PreDispatchResult{
					ExitCode: exitBlock,
					Stderr: fmt.Sprintf(
						"dispatch blocked: %v already assigned to task %s (first writer wins)",
						overlap, other,
					),
				}
				return nil
			}
		}

		st.Flags.Subagent = true
		st.Flags.SubagentSessionID = in.HostSessionID
		if taskID != "" {
			assignOwnership(st, taskID, in.HostSessionID, files, groupID)
		}
		return nil
	})
	if err != nil {
		return PreDispatchResult{}, err
	}
	if conflicted {
		return conflict, nil
	}

	tail, err := readTranscriptTail(in.TranscriptPath, defaultTailBytes)
	if err != nil {
		return PreDispatchResult{}, fmt.Errorf("reading transcript tail: %w", err)
	}
	entries := parseEntries(tail)
	retained := trimToWriteTrigger(entries)
	subagentType := subagentTypeOfTrailingTask(entries)
	if override, _ := in.ToolInput["subagent_type"].(string); override != "" {
		subagentType = override
	}

	release, err := acquireTargetLock(ctx, d.LocksDir, subagentType)
	if err != nil {
		return PreDispatchResult{}, fmt.Errorf("acquiring target lock for %s: %w", subagentType, err)
	}
	defer release()

	targetDir := filepath.Join(d.TranscriptsBase, subagentType)
	if err := resetDir(targetDir); err != nil {
		return PreDispatchResult{}, fmt.Errorf("preparing target directory %s: %w", targetDir, err)
	}

	chunks, err := chunkTranscript(retained)
	if err != nil {
		return PreDispatchResult{}, err
	}
	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		p := filepath.Join(targetDir, fmt.Sprintf("current_transcript_%03d.txt", i+1))
		if err := os.WriteFile(p, chunk, 0o644); err != nil {
			return PreDispatchResult{}, fmt.Errorf("writing transcript chunk %s: %w", p, err)
		}
		paths = append(paths, p)
	}

	return PreDispatchResult{
		ExitCode:     exitAllow,
		SubagentType: subagentType,
		TargetDir:    targetDir,
		ChunkPaths:   paths,
	}, nil
}

// resetDir ensures dir exists and is empty, matching the "after emptying
// any prior contents" step in spec §4.G pre-dispatch step 6.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func stringSliceField(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func findOwnershipConflict(st *state.State, taskID string, files []string) (other string, overlap []string) {
	for _, rec := range st.ExecutionWindows.Tasks {
		if rec.TaskFile == taskID || rec.Status != state.OwnershipInProgress {
			continue
		}
		var matched []string
		for _, f := range files {
			if containsString(rec.AssignedFiles, f) {
				matched = append(matched, f)
			}
		}
		if len(matched) > 0 {
			return rec.TaskFile, matched
		}
	}
	return "", nil
}

func assignOwnership(st *state.State, taskID, sessionID string, files []string, groupID string) {
	now := time.Now()
	for i := range st.ExecutionWindows.Tasks {
		if st.ExecutionWindows.Tasks[i].TaskFile == taskID {
			st.ExecutionWindows.Tasks[i].Status = state.OwnershipInProgress
			st.ExecutionWindows.Tasks[i].AssignedTo = sessionID
			st.ExecutionWindows.Tasks[i].AssignedFiles = files
			st.ExecutionWindows.Tasks[i].AssignedAt = now
			return
		}
	}
	st.ExecutionWindows.Tasks = append(st.ExecutionWindows.Tasks, state.OwnershipRecord{
		TaskFile:      taskID,
		Status:        state.OwnershipInProgress,
		AssignedTo:    sessionID,
		AssignedFiles: files,
		AssignedAt:    now,
	})
	if groupID != "" {
		st.ExecutionWindows.ActiveWindowID = groupID
	}
}

func recordConflict(st *state.State, taskID, other string, overlap []string) {
	now := time.Now()
	for i := range st.ExecutionWindows.Tasks {
		if st.ExecutionWindows.Tasks[i].TaskFile == taskID {
			st.ExecutionWindows.Tasks[i].ConflictDetected = true
			st.ExecutionWindows.Tasks[i].ConflictWith = other
			st.ExecutionWindows.Tasks[i].ConflictFiles = overlap
			st.ExecutionWindows.Tasks[i].ConflictAt = now
			return
		}
	}
	st.ExecutionWindows.Tasks = append(st.ExecutionWindows.Tasks, state.OwnershipRecord{
		TaskFile:         taskID,
		ConflictDetected: true,
		ConflictWith:     other,
		ConflictFiles:    overlap,
		ConflictAt:       now,
	})
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// PostStopInput is the SubagentStop hook payload.
type PostStopInput struct {
	ToolName       string
	SessionID      string
	TranscriptPath string
	ExitStatus     string
}

// PostStop runs the post-stop sequence: verify the tool, locate the
// originating Task call, invoke the backlog bridge, update orchestration
// metadata on success, and fire the reasoning extractor. Any bridge or
// parse failure is logged and swallowed — the hook always returns as if it
// succeeded (spec §4.G post-stop, "failure semantics").
func (d *Dispatcher) PostStop(ctx context.Context, logger *slog.Logger, in PostStopInput) {
	if in.ToolName != "Task" {
		return
	}

	tail, err := readTranscriptTail(in.TranscriptPath, defaultTailBytes)
	if err != nil {
		logger.Warn("post-stop: reading transcript tail failed", "error", err)
		return
	}
	entries := parseEntries(tail)
	taskID, groupID, subagentType, ok := lastTaskDispatch(entries)
	if !ok {
		logger.Warn("post-stop: no Task tool_use found in transcript tail")
		return
	}

	exitStatus := normalizeExitStatus(in.ExitStatus)

	result, err := bridge.CallBacklog(ctx, logger, bridge.BacklogBridgeArgs{
		SessionID:    in.SessionID,
		TaskID:       taskID,
		GroupID:      groupID,
		SubagentType: subagentType,
		ExitStatus:   exitStatus,
		StateDir:     d.Root,
		TasksDir:     d.TasksDir,
	})
	if err != nil {
		logger.Warn("post-stop: backlog bridge failed, leaving plan untouched", "error", err)
		return
	}

	if err := d.States.Edit(func(st *state.State) error {
		st.Metadata.Orchestration.LastSignal = result.Signal
		st.Metadata.Orchestration.LastSignalAt = time.Now()
		st.Metadata.Orchestration.LastSessionID = in.SessionID
		st.Metadata.Orchestration.LastGroupID = groupID
		st.Metadata.Orchestration.LastTaskID = taskID
		st.Metadata.Orchestration.LastExitStatus = exitStatus
		st.Metadata.Orchestration.LastPayload = map[string]any{"signal": result.Signal}
		advanceExecutionPlan(st, groupID, exitStatus)
		return nil
	}); err != nil {
		logger.Warn("post-stop: updating orchestration metadata failed", "error", err)
		return
	}

	outcome := "failure"
	if exitStatus == "completed" {
		outcome = "success"
	}
	bridge.ExtractReasoning(logger, bridge.ReasoningExtractorArgs{
		TaskID:     taskID,
		Outcome:    outcome,
		GroupID:    groupID,
		Trajectory: trajectoryText(entries),
	})
}

// advanceExecutionPlan marks the group that just finished completed or
// failed (spec §8 scenario 7: SubagentStop advances the plan). Any group
// the signal names as next is left as-is — per that same scenario, a
// named next group stays pending until the gate's own dispatch check finds
// its dependencies satisfied (internal/gate.evalTaskDispatch).
func advanceExecutionPlan(st *state.State, groupID, exitStatus string) {
	plan := st.Metadata.Orchestration.ExecutionPlan
	if plan == nil || groupID == "" {
		return
	}
	group := plan.GroupByID(groupID)
	if group == nil {
		return
	}
	if exitStatus == "completed" {
		group.Status = state.GroupCompleted
	} else {
		group.Status = state.GroupFailed
	}
}

func normalizeExitStatus(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "completed"
	}
	return strings.ToLower(s)
}

func trajectoryText(entries []entry) string {
	raws := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		raws = append(raws, e.Raw)
	}
	data, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
