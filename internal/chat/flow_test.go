package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowInvalidSessionID(t *testing.T) {
	f := newPipelineFixture(t)
	flow := f.pipeline.DefineFlow(f.pipeline.g)

	_, err := flow.Run(context.Background(), Input{SessionID: "not-a-uuid", Query: "hello"})
	require.Error(t, err)
	assert.ErrorContains(t, err, ErrInvalidSession.Error())
}

func TestFlowResumesUnknownSession(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddResponse("hello", "hi")
	flow := f.pipeline.DefineFlow(f.pipeline.g)

	// Session was never started; the flow resumes it as empty.
	id := uuid.New()
	out, err := flow.Run(context.Background(), Input{SessionID: id.String(), Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Response)
	assert.False(t, out.Cancelled)

	conv, ok := f.sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, 2, conv.Len())
}

func TestFlowSwitchesProfile(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddResponse("constitution", "per article 20")
	flow := f.pipeline.DefineFlow(f.pipeline.g)

	conv := f.sessions.Start(uuid.New())
	_, err := flow.Run(context.Background(), Input{
		SessionID: conv.ID().String(),
		Query:     "what does the constitution say",
		Profile:   "Constitution",
	})
	require.NoError(t, err)
	assert.Equal(t, "Constitution", conv.Profile())
}

func TestSentinelErrors(t *testing.T) {
	wrapped := errors.Join(ErrExecutionFailed, errors.New("model timeout"))
	assert.True(t, errors.Is(wrapped, ErrExecutionFailed))

	wrapped = errors.Join(ErrInvalidSession, errors.New("bad uuid"))
	assert.True(t, errors.Is(wrapped, ErrInvalidSession))
}
