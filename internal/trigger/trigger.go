// Package trigger scans a user prompt for the configured trigger phrases
// (spec §3.1 TriggerPhrases) and applies the mode/protocol switch they
// name, at the UserPromptSubmit hook boundary — the same "next natural
// turn boundary" the teacher's internal/nudge package picks to apply
// queued, cooperative state changes rather than interrupting an
// in-flight tool call.
package trigger

import (
	"strings"

	"github.com/xcawolfe-amzn/cc-sessions/internal/config"
	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
)

// Result reports whether the prompt matched a trigger and what changed.
type Result struct {
	ModeChanged     bool
	Mode            state.Mode
	ProtocolChanged bool
	Protocol        state.Protocol
}

// Apply scans prompt (case-insensitively) for each configured trigger
// phrase category and mutates st accordingly. At most one mode trigger
// applies (orchestration_mode is checked before discussion_mode) and at
// most one protocol trigger applies (creation, startup, completion,
// compaction, in that order); a prompt that matches both a mode phrase
// and a protocol phrase gets both changes.
func Apply(st *state.State, cfg *config.Config, prompt string) Result {
	var result Result
	lower := strings.ToLower(prompt)

	switch {
	case matchesAny(lower, cfg.TriggerPhrases[config.TriggerOrchestrationMode]):
		if st.Mode != state.ModeOrchestration {
			st.Mode = state.ModeOrchestration
			st.Flags.BypassMode = false
			result.ModeChanged = true
			result.Mode = state.ModeOrchestration
		}
	case matchesAny(lower, cfg.TriggerPhrases[config.TriggerDiscussionMode]):
		if st.Mode != state.ModeDiscussion {
			st.Mode = state.ModeDiscussion
			result.ModeChanged = true
			result.Mode = state.ModeDiscussion
		}
	}

	switch {
	case matchesAny(lower, cfg.TriggerPhrases[config.TriggerTaskCreation]):
		result.Protocol, result.ProtocolChanged = setProtocol(st, state.ProtocolCreation)
	case matchesAny(lower, cfg.TriggerPhrases[config.TriggerTaskStartup]):
		result.Protocol, result.ProtocolChanged = setProtocol(st, state.ProtocolStartup)
	case matchesAny(lower, cfg.TriggerPhrases[config.TriggerTaskCompletion]):
		result.Protocol, result.ProtocolChanged = setProtocol(st, state.ProtocolCompletion)
	case matchesAny(lower, cfg.TriggerPhrases[config.TriggerContextCompaction]):
		result.Protocol, result.ProtocolChanged = setProtocol(st, state.ProtocolCompaction)
	}

	return result
}

func setProtocol(st *state.State, p state.Protocol) (state.Protocol, bool) {
	if st.ActiveProtocol == p {
		return p, false
	}
	st.ActiveProtocol = p
	return p, true
}

func matchesAny(lowerPrompt string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lowerPrompt, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
