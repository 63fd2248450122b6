package session

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultProfile is the profile a conversation starts with when the
// caller never selects one.
const DefaultProfile = "General"

// Conversation is the per-session ordered log of turns plus the active
// profile selector. It is the single source of truth for what the
// generator sees.
//
// Turn data is guarded by an internal mutex; the separate run lock
// (BeginTurn/EndTurn) serializes whole pipeline runs so a new user turn
// never starts generating while a prior one is still streaming.
//
// The zero value is not useful; use NewConversation or Reconstruct.
type Conversation struct {
	id uuid.UUID

	runMu sync.Mutex // held for the duration of one pipeline run

	mu      sync.RWMutex
	profile string
	turns   []Turn
}

// NewConversation creates an empty conversation for the given session.
func NewConversation(id uuid.UUID) *Conversation {
	return &Conversation{
		id:      id,
		profile: DefaultProfile,
		turns:   make([]Turn, 0),
	}
}

// Reconstruct builds a conversation from persisted steps, applying the
// resume filtering rules of ReconstructTurns.
func Reconstruct(id uuid.UUID, steps []PersistedStep) *Conversation {
	c := NewConversation(id)
	c.turns = ReconstructTurns(steps)
	return c
}

// ID returns the session identifier this conversation belongs to.
func (c *Conversation) ID() uuid.UUID {
	return c.id
}

// Profile returns the active profile selector.
func (c *Conversation) Profile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// SetProfile updates the active profile selector.
// An empty profile resets to the default.
func (c *Conversation) SetProfile(profile string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if profile == "" {
		profile = DefaultProfile
	}
	c.profile = profile
}

// Append adds a turn to the end of the log.
// No validation beyond non-empty role; ordering is append-only.
func (c *Conversation) Append(turn Turn) {
	if turn.Role == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
}

// Turns returns a copy of all turns for safe external iteration.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// LastUserTurn returns the most recent user turn, if any.
func (c *Conversation) LastUserTurn() (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == RoleUser {
			return c.turns[i], true
		}
	}
	return Turn{}, false
}

// BeginTurn acquires the run lock, blocking until any in-flight
// pipeline run for this session has committed or cancelled.
func (c *Conversation) BeginTurn() {
	c.runMu.Lock()
}

// EndTurn releases the run lock.
func (c *Conversation) EndTurn() {
	c.runMu.Unlock()
}
