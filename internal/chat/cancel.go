package chat

import "sync"

// CancelToken signals mid-stream cancellation of a running turn.
// Cancel may be called from any goroutine, any number of times; the
// pipeline observes it at chunk boundaries, so text accumulated before
// the signal is kept and committed.
//
// A nil *CancelToken is valid and never reports cancelled.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call concurrently and
// repeatedly.
func (t *CancelToken) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation. Returns nil for a nil
// token, which blocks forever in a select.
func (t *CancelToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}
