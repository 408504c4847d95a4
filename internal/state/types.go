// Package state implements the shared, persistent state store: a
// process-wide, cross-process record of mode, tasks, todos, flags, and
// orchestration metadata, with atomic write and exclusive-lock discipline
// (spec §3, §4.A). It is grounded on the teacher's quota manager
// (internal/quota/state.go — load/save/WithLock over a flock-protected JSON
// file) generalized to the richer record this system needs and to a
// lock that exposes a readable owner descriptor across processes.
package state

import "time"

// Mode is the current permission regime.
type Mode string

const (
	ModeDiscussion    Mode = "discussion"
	ModeOrchestration Mode = "orchestration"
)

// Protocol identifies the active guided workflow, if any.
type Protocol string

const (
	ProtocolNone        Protocol = ""
	ProtocolCreation     Protocol = "creation"
	ProtocolStartup      Protocol = "startup"
	ProtocolCompletion   Protocol = "completion"
	ProtocolCompaction   Protocol = "compaction"
)

// TodoStatus is the lifecycle state of a single todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Model identifies which Claude model the host session is running.
type Model string

const (
	ModelSonnet  Model = "sonnet"
	ModelOpus    Model = "opus"
	ModelUnknown Model = "unknown"
)

// GroupStatus is the lifecycle state of an execution-plan group.
type GroupStatus string

const (
	GroupPending   GroupStatus = "pending"
	GroupRunning   GroupStatus = "running"
	GroupCompleted GroupStatus = "completed"
	GroupFailed    GroupStatus = "failed"
)

// OwnershipStatus mirrors a task file's own status field.
type OwnershipStatus string

const (
	OwnershipPending    OwnershipStatus = "Pending"
	OwnershipInProgress OwnershipStatus = "In Progress"
	OwnershipDone       OwnershipStatus = "Done"
)

// Todo is a single host-visible todo list entry.
type Todo struct {
	Content    string     `json:"content"`
	Status     TodoStatus `json:"status"`
	ActiveForm string     `json:"activeForm,omitempty"`
}

// TodoList holds the active list, any stash, and a tamper-check snapshot.
type TodoList struct {
	Active         []Todo `json:"active"`
	Stashed        []Todo `json:"stashed,omitempty"`
	ParentSnapshot []Todo `json:"parent_snapshot,omitempty"`
}

// CurrentTask describes the task the host is presently working.
type CurrentTask struct {
	Name         string    `json:"name,omitempty"`
	File         string    `json:"file,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	Status       string    `json:"status,omitempty"`
	Created      time.Time `json:"created,omitempty"`
	Started      time.Time `json:"started,omitempty"`
	Updated      time.Time `json:"updated,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Submodules   []string  `json:"submodules,omitempty"`
}

// IsZero reports whether no current task is set.
func (t *CurrentTask) IsZero() bool {
	return t == nil || (t.Name == "" && t.File == "")
}

// Flags holds the small, frequently-toggled boolean/opaque state that
// governs gating decisions.
type Flags struct {
	Context85          bool   `json:"context_85"`
	Context90           bool   `json:"context_90"`
	Subagent            bool   `json:"subagent"`
	SubagentSessionID    string `json:"subagent_session_id,omitempty"`
	Noob                bool   `json:"noob"`
	BypassMode           bool   `json:"bypass_mode"`
	APITodosClear        bool   `json:"api_todos_clear"`
}

// IsSubagentStale reports whether the subagent flag is set but its
// recorded owning session does not match incomingSessionID — the crashed-
// owner signal described in spec §3.2 invariant 3 and consumed by the
// gate's step 1 (spec §4.E).
func (f *Flags) IsSubagentStale(incomingSessionID string) bool {
	return f.Subagent && f.SubagentSessionID != "" && f.SubagentSessionID != incomingSessionID
}

// ExecutionGroup is one step of a directed execution plan.
type ExecutionGroup struct {
	ID         string      `json:"id"`
	TaskIDs    []string    `json:"task_ids"`
	Status     GroupStatus `json:"status"`
	DependsOn  []string    `json:"depends_on,omitempty"`
}

// ExecutionPlan is the directed sequence of task groups.
type ExecutionPlan struct {
	Groups []ExecutionGroup `json:"groups"`
}

// GroupByID returns the group with the given id, or nil.
func (p *ExecutionPlan) GroupByID(id string) *ExecutionGroup {
	if p == nil {
		return nil
	}
	for i := range p.Groups {
		if p.Groups[i].ID == id {
			return &p.Groups[i]
		}
	}
	return nil
}

// GroupForTask returns the group containing taskID, or nil.
func (p *ExecutionPlan) GroupForTask(taskID string) *ExecutionGroup {
	if p == nil {
		return nil
	}
	for i := range p.Groups {
		for _, id := range p.Groups[i].TaskIDs {
			if id == taskID {
				return &p.Groups[i]
			}
		}
	}
	return nil
}

// DependenciesSatisfied reports whether every group g depends on is completed.
func (p *ExecutionPlan) DependenciesSatisfied(g *ExecutionGroup) bool {
	if p == nil || g == nil {
		return true
	}
	for _, dep := range g.DependsOn {
		depGroup := p.GroupByID(dep)
		if depGroup == nil || depGroup.Status != GroupCompleted {
			return false
		}
	}
	return true
}

// OrchestrationMetadata tracks the execution plan and the last signal
// observed from the backlog bridge.
type OrchestrationMetadata struct {
	ActiveGroupID   string         `json:"active_group_id,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	ExecutionPlan   *ExecutionPlan `json:"execution_plan,omitempty"`
	LastSignal      string         `json:"last_signal,omitempty"`
	LastSignalAt    time.Time      `json:"last_signal_at,omitempty"`
	LastSessionID   string         `json:"last_session_id,omitempty"`
	LastGroupID     string         `json:"last_group_id,omitempty"`
	LastTaskID      string         `json:"last_task_id,omitempty"`
	LastExitStatus  string         `json:"last_exit_status,omitempty"`
	LastPayload     map[string]any `json:"last_payload,omitempty"`
}

// OwnershipRecord tracks which sub-agent owns which files for one task.
type OwnershipRecord struct {
	TaskFile        string    `json:"task_file"`
	Status          OwnershipStatus `json:"status"`
	Branch          string    `json:"branch,omitempty"`
	Dependencies    []string  `json:"dependencies,omitempty"`
	ContentHash     string    `json:"content_hash,omitempty"`
	MTime           time.Time `json:"mtime,omitempty"`
	AssignedTo      string    `json:"assigned_to,omitempty"`
	AssignedFiles   []string  `json:"assigned_files,omitempty"`
	AssignedAt      time.Time `json:"assigned_at,omitempty"`
	ConflictDetected bool     `json:"conflict_detected,omitempty"`
	ConflictWith     string   `json:"conflict_with,omitempty"`
	ConflictFiles    []string `json:"conflict_files,omitempty"`
	ConflictAt       time.Time `json:"conflict_at,omitempty"`
}

// ExecutionWindows groups the live per-task ownership records.
type ExecutionWindows struct {
	Tasks          []OwnershipRecord `json:"tasks"`
	ActiveWindowID string            `json:"active_window_id,omitempty"`
}

// State is the single per-project persistent record (spec §3.1).
type State struct {
	Version          string                `json:"version"`
	CurrentTask      *CurrentTask          `json:"current_task,omitempty"`
	ActiveProtocol   Protocol              `json:"active_protocol,omitempty"`
	Mode             Mode                  `json:"mode"`
	Todos            TodoList              `json:"todos"`
	ModelName        Model                 `json:"model"`
	Flags            Flags                 `json:"flags"`
	Metadata         Metadata              `json:"metadata"`
	ExecutionWindows ExecutionWindows      `json:"execution_windows"`
}

// Metadata wraps the orchestration sub-record so the JSON shape matches
// spec.md's "metadata.orchestration" path.
type Metadata struct {
	Orchestration OrchestrationMetadata `json:"orchestration"`
}

// Default returns an empty, default-initialized state record.
func Default() *State {
	return &State{
		Version: "0.0.0",
		Mode:    ModeDiscussion,
		ModelName: ModelUnknown,
	}
}

// Clone returns a copy of s with its own current task, todo lists,
// execution-plan group slice and ownership-record slice. Slices nested
// inside plan groups and ownership records, and the orchestration
// LastPayload map, are shared with s.
func (s *State) Clone() *State {
	if s == nil {
		return Default()
	}
	out := *s
	if s.CurrentTask != nil {
		ct := *s.CurrentTask
		ct.Dependencies = append([]string(nil), s.CurrentTask.Dependencies...)
		ct.Submodules = append([]string(nil), s.CurrentTask.Submodules...)
		out.CurrentTask = &ct
	}
	out.Todos = TodoList{
		Active:         append([]Todo(nil), s.Todos.Active...),
		Stashed:        append([]Todo(nil), s.Todos.Stashed...),
		ParentSnapshot: append([]Todo(nil), s.Todos.ParentSnapshot...),
	}
	if s.Metadata.Orchestration.ExecutionPlan != nil {
		plan := *s.Metadata.Orchestration.ExecutionPlan
		plan.Groups = append([]ExecutionGroup(nil), s.Metadata.Orchestration.ExecutionPlan.Groups...)
		out.Metadata.Orchestration.ExecutionPlan = &plan
	}
	out.ExecutionWindows.Tasks = append([]OwnershipRecord(nil), s.ExecutionWindows.Tasks...)
	return &out
}
