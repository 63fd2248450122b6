package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Input defines the request payload for the chat flow.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
	Profile   string `json:"profile,omitempty"` // Optional: switch the session profile before answering
}

// Output defines the response payload from the chat flow.
type Output struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// StreamChunk is the streaming output type for the chat flow.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the chat flow in Genkit.
const FlowName = "kanoon/chat"

// Flow is the type alias for the chat pipeline's Genkit streaming flow.
// Exported for use in the api package with genkit.Handler().
type Flow = core.Flow[Input, Output, StreamChunk]

// Package-level singleton: genkit.DefineStreamingFlow panics on
// re-registration.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, initializing it on first
// call. Subsequent calls return the existing flow.
func NewFlow(g *genkit.Genkit, p *Pipeline) *Flow {
	flowOnce.Do(func() {
		flow = p.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton so tests can
// initialize it with a different pipeline. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow defines the Genkit streaming flow for the turn pipeline.
// Use NewFlow instead of calling this directly; registering the flow
// twice panics.
//
// The flow resolves the session from the lifecycle registry, resuming
// it from persisted steps when it is not live, then delegates to
// Pipeline.Run. Request-context cancellation mid-stream commits the
// partial answer and reports Cancelled in the output.
func (p *Pipeline) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			sessionID, err := uuid.Parse(input.SessionID)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
			}

			conv, ok := p.sessions.Get(sessionID)
			if !ok {
				conv = p.sessions.Resume(ctx, sessionID)
			}
			if input.Profile != "" {
				conv.SetProfile(input.Profile)
			}

			var callback ChunkFunc
			if streamCb != nil {
				callback = func(ctx context.Context, text string) error {
					return streamCb(ctx, StreamChunk{Text: text})
				}
			}

			res, err := p.Run(ctx, conv, input.Query, nil, callback)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
			}

			return Output{
				Response:  res.Text,
				SessionID: input.SessionID,
				Cancelled: res.State == StateCancelled,
			}, nil
		},
	)
}
