// Package session manages per-session conversation state.
//
// Responsibilities: the append-only turn log each generation run reads
// and writes (Conversation), the process-wide registry that owns one
// live Conversation per session (Lifecycle), reconstruction of state
// from persisted thread steps on resume, and the PostgreSQL store that
// persists threads and their steps.
//
// Thread safety: Conversation serializes turn processing per session;
// Lifecycle and Store are safe for concurrent use.
package session

import (
	"strings"
)

// Role identifies who produced a turn.
type Role string

// Valid turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation.
// Turns are immutable once appended; ordering defines conversational
// causality and is never edited retroactively.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Persisted step types recognized during resume.
// Steps with any other type are dropped, not errored.
const (
	StepTypeUser      = "user_message"
	StepTypeAssistant = "assistant_message"
)

// PersistedStep is one entry of a persisted thread, as produced by the
// data layer. Type is the step's declared kind; Output its text.
type PersistedStep struct {
	Type   string `json:"type"`
	Output string `json:"output"`
}

// ReconstructTurns rebuilds a turn log from persisted steps.
//
// Steps whose trimmed output is empty are silently skipped. Step types
// map to RoleUser / RoleAssistant; unrecognized types are dropped.
// Order is preserved.
func ReconstructTurns(steps []PersistedStep) []Turn {
	turns := make([]Turn, 0, len(steps))
	for _, step := range steps {
		content := strings.TrimSpace(step.Output)
		if content == "" {
			continue
		}
		switch step.Type {
		case StepTypeUser:
			turns = append(turns, Turn{Role: RoleUser, Content: content})
		case StepTypeAssistant:
			turns = append(turns, Turn{Role: RoleAssistant, Content: content})
		}
	}
	return turns
}
