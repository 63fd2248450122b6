package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kanoonai/kanoon/internal/log"
)

// StepLoader loads the persisted steps of a thread.
// Consumed by Lifecycle on resume; implemented by Store.
type StepLoader interface {
	Steps(ctx context.Context, threadID uuid.UUID) ([]PersistedStep, error)
}

// Lifecycle owns the live conversations of this process, keyed by
// session identifier. Exactly one Conversation is live per session.
//
// Safe for concurrent use by multiple goroutines.
type Lifecycle struct {
	loader StepLoader
	logger log.Logger

	mu    sync.RWMutex
	conns map[uuid.UUID]*Conversation
}

// NewLifecycle creates a Lifecycle backed by the given step loader.
// loader may be nil, in which case Resume always yields an empty
// conversation.
func NewLifecycle(loader StepLoader, logger log.Logger) *Lifecycle {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Lifecycle{
		loader: loader,
		logger: logger,
		conns:  make(map[uuid.UUID]*Conversation),
	}
}

// Start creates and registers an empty conversation for the session,
// replacing any previous registration for the same identifier.
func (l *Lifecycle) Start(id uuid.UUID) *Conversation {
	conv := NewConversation(id)
	l.mu.Lock()
	l.conns[id] = conv
	l.mu.Unlock()
	l.logger.Debug("session started", "session_id", id)
	return conv
}

// Resume reconstructs a conversation from persisted history and
// registers it, replacing the previous live state wholesale.
//
// Resume never fails: any error while loading or reconstructing is
// logged and degrades to an empty conversation.
func (l *Lifecycle) Resume(ctx context.Context, id uuid.UUID) *Conversation {
	var steps []PersistedStep
	if l.loader != nil {
		loaded, err := l.loader.Steps(ctx, id)
		if err != nil {
			l.logger.Warn("resuming session from persisted steps failed, starting empty",
				"session_id", id, "error", err)
		} else {
			steps = loaded
		}
	}

	conv := Reconstruct(id, steps)
	l.mu.Lock()
	l.conns[id] = conv
	l.mu.Unlock()

	l.logger.Debug("session resumed",
		"session_id", id,
		"persisted_steps", len(steps),
		"turns", conv.Len(),
	)
	return conv
}

// Get returns the live conversation for the session, if one exists.
func (l *Lifecycle) Get(id uuid.UUID) (*Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	conv, ok := l.conns[id]
	return conv, ok
}

// End evicts the session's conversation from the registry.
// Idempotent; ending an unknown session is not an error.
func (l *Lifecycle) End(id uuid.UUID) {
	l.mu.Lock()
	delete(l.conns, id)
	l.mu.Unlock()
	l.logger.Debug("session ended", "session_id", id)
}

// Count returns the number of live conversations.
func (l *Lifecycle) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.conns)
}
