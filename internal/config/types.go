// Package config implements the read-mostly Config store (spec §3.1, §4.B):
// trigger phrases, the blocked-tool list and read/write Bash command
// patterns, git preferences, environment,
// and feature toggles. Its JSON round-trip preserves unknown top-level keys
// so a user's local customizations survive migrations untouched — a pattern
// adapted from the teacher's hooks.SettingsJSON (internal/hooks/config.go),
// which preserved unrecognized settings.json fields the same way.
package config

import "encoding/json"

// TriggerCategory names one of the phrase-set categories a user can
// customize to switch modes or protocols.
type TriggerCategory string

const (
	TriggerOrchestrationMode TriggerCategory = "orchestration_mode"
	TriggerDiscussionMode    TriggerCategory = "discussion_mode"
	TriggerTaskCreation      TriggerCategory = "task_creation"
	TriggerTaskStartup       TriggerCategory = "task_startup"
	TriggerTaskCompletion    TriggerCategory = "task_completion"
	TriggerContextCompaction TriggerCategory = "context_compaction"
)

// IconStyle is a tri-valued setting: plain ASCII, nerd-font glyphs, or
// emoji. Modeled as an enum + validator, the same shape as the teacher's
// CostTier (internal/config/cost_tier.go) — adapted here for icon
// selection instead of model-cost tiering.
type IconStyle string

const (
	IconStylePlain    IconStyle = "plain"
	IconStyleNerdFont IconStyle = "nerd_font"
	IconStyleEmoji    IconStyle = "emoji"
)

// ValidIconStyles returns every recognized icon style name.
func ValidIconStyles() []string {
	return []string{string(IconStylePlain), string(IconStyleNerdFont), string(IconStyleEmoji)}
}

// IsValidIconStyle reports whether s names a recognized icon style.
func IsValidIconStyle(s string) bool {
	switch IconStyle(s) {
	case IconStylePlain, IconStyleNerdFont, IconStyleEmoji:
		return true
	default:
		return false
	}
}

// GitPreferences captures the user's git workflow defaults.
type GitPreferences struct {
	DefaultBranch    string `json:"default_branch,omitempty"`
	CommitStyle      string `json:"commit_style,omitempty"`
	AutoMerge        bool   `json:"auto_merge,omitempty"`
	AutoPush         bool   `json:"auto_push,omitempty"`
	SubmodulesPresent bool  `json:"submodules_present,omitempty"`
}

// Environment captures ambient developer/OS facts used to tailor messages.
type Environment struct {
	OS             string `json:"os,omitempty"`
	Shell          string `json:"shell,omitempty"`
	DeveloperName  string `json:"developer_name,omitempty"`
}

// Features is the set of feature toggles that gate optional behavior.
type Features struct {
	BranchEnforcement bool   `json:"branch_enforcement"`
	TaskDetection     bool   `json:"task_detection"`
	AutoUltrathink    bool   `json:"auto_ultrathink"`
	IconStyle         IconStyle `json:"icon_style"`
	ContextWarnings   bool   `json:"context_warnings"`
	MemoryAdapter     bool   `json:"memory_adapter"`
	UseHookDaemon     bool   `json:"use_hook_daemon"`
}

// Config is the project's read-mostly preference record (spec §3.1).
type Config struct {
	TriggerPhrases    map[TriggerCategory][]string `json:"trigger_phrases"`
	BlockedTools      []string                      `json:"blocked_tools,omitempty"`
	ReadPatterns      []string                      `json:"read_patterns,omitempty"`
	WritePatterns     []string                      `json:"write_patterns,omitempty"`
	Extrasafe         bool                          `json:"extrasafe"`
	Git               GitPreferences                `json:"git"`
	Env               Environment                   `json:"environment"`
	Features          Features                      `json:"features"`

	// extra preserves any top-level JSON keys this struct doesn't know
	// about, so a roundtrip (load, migrate, save) never silently drops
	// user-added fields.
	extra map[string]json.RawMessage `json:"-"`
}

// Default returns a Config with sensible built-in defaults.
func Default() *Config {
	return &Config{
		TriggerPhrases: map[TriggerCategory][]string{
			TriggerOrchestrationMode: {"let's build", "make it so", "orchestrate"},
			TriggerDiscussionMode:    {"let's discuss", "just thinking", "step back"},
			TriggerTaskCreation:      {"new task", "create task"},
			TriggerTaskStartup:       {"start task", "begin task"},
			TriggerTaskCompletion:    {"task complete", "done with task"},
			TriggerContextCompaction: {"compact", "summarize context"},
		},
		BlockedTools: []string{},
		Features: Features{
			BranchEnforcement: true,
			TaskDetection:     true,
			IconStyle:         IconStylePlain,
			ContextWarnings:   true,
		},
	}
}
