package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
	"github.com/kanoonai/kanoon/internal/testutil"
)

type pipelineFixture struct {
	pipeline *Pipeline
	mock     *testutil.MockLLM
	searcher *testutil.StubSearcher
	sessions *session.Lifecycle
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM("fallback answer")
	mock.Register(g)

	searcher := testutil.NewStubSearcher()
	sessions := session.NewLifecycle(nil, log.NewNop())

	p, err := New(Config{
		Genkit:    g,
		Assembler: NewAssembler(searcher, 3, log.NewNop()),
		Router:    knowledge.NewRouter(),
		Sessions:  sessions,
		Logger:    log.NewNop(),
		ModelName: testutil.MockModelName,
	})
	require.NoError(t, err)

	return &pipelineFixture{pipeline: p, mock: mock, searcher: searcher, sessions: sessions}
}

func TestPipelineRunCommitsTurn(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddStreamedResponse("property law", "The answer ", "has two parts.")
	f.searcher.Add(knowledge.DefaultCollection,
		knowledge.Passage{Text: "relevant passage", Act: "Muluki Ain", SectionNum: "7"},
	)

	conv := f.sessions.Start(uuid.New())

	var chunks []string
	res, err := f.pipeline.Run(context.Background(), conv, "tell me about property law", nil,
		func(_ context.Context, text string) error {
			chunks = append(chunks, text)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, res.State)
	assert.Equal(t, "The answer has two parts.", res.Text)
	assert.Equal(t, []string{"The answer ", "has two parts."}, chunks)

	turns := conv.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Equal(t, "tell me about property law", turns[0].Content)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
	assert.Equal(t, "The answer has two parts.", turns[1].Content)

	// First call streams the answer, second is the post-commit invoke.
	calls := f.mock.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Streamed)
	assert.False(t, calls[1].Streamed)

	assert.Contains(t, calls[0].System, "relevant passage")
	assert.Contains(t, calls[0].System, "Act: Muluki Ain, Section: 7")
}

func TestPipelineRunCancellationCommitsPartial(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddStreamedResponse("long question", "part one ", "part two ", "part three")

	conv := f.sessions.Start(uuid.New())
	token := NewCancelToken()

	var chunks []string
	res, err := f.pipeline.Run(context.Background(), conv, "a long question", token,
		func(_ context.Context, text string) error {
			chunks = append(chunks, text)
			token.Cancel()
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, "part one ", res.Text)
	assert.Equal(t, []string{"part one "}, chunks)

	turns := conv.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "part one ", turns[1].Content)

	// No post-commit invoke after a cancelled turn.
	assert.Len(t, f.mock.Calls(), 1)
}

func TestPipelineRunRetrievalFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.searcher.Err = errors.New("qdrant unreachable")

	conv := f.sessions.Start(uuid.New())
	_, err := f.pipeline.Run(context.Background(), conv, "any question", nil, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "retrieving context")

	// The user turn stays; no assistant turn was committed.
	turns := conv.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Len(t, f.mock.Calls(), 0)
}

func TestPipelineRunProfileRouting(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddResponse("precedent", "per the supreme court")

	conv := f.sessions.Start(uuid.New())
	conv.SetProfile("Lawyer")

	_, err := f.pipeline.Run(context.Background(), conv, "find a precedent", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{knowledge.CollectionPrecedents}, f.searcher.Collections())
}

func TestPipelineRunEmptyAnswerCommitted(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddResponse("silence", "")

	conv := f.sessions.Start(uuid.New())
	res, err := f.pipeline.Run(context.Background(), conv, "silence please", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, res.State)
	assert.Empty(t, res.Text)

	turns := conv.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
	assert.Empty(t, turns[1].Content)
}

type recordingWriter struct {
	threadID uuid.UUID
	turns    []session.Turn
	err      error
}

func (w *recordingWriter) AppendTurns(_ context.Context, threadID uuid.UUID, turns []session.Turn) error {
	w.threadID = threadID
	w.turns = append(w.turns, turns...)
	return w.err
}

func TestPipelineRunPersistsTurns(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddResponse("hello", "hi there")

	writer := &recordingWriter{}
	f.pipeline.turns = writer

	conv := f.sessions.Start(uuid.New())
	_, err := f.pipeline.Run(context.Background(), conv, "hello", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, conv.ID(), writer.threadID)
	require.Len(t, writer.turns, 2)
	assert.Equal(t, session.RoleUser, writer.turns[0].Role)
	assert.Equal(t, session.RoleAssistant, writer.turns[1].Role)
}

func TestPipelineRunPersistenceFailureIsBestEffort(t *testing.T) {
	f := newPipelineFixture(t)
	f.mock.AddResponse("hello", "hi there")
	f.pipeline.turns = &recordingWriter{err: errors.New("db down")}

	conv := f.sessions.Start(uuid.New())
	res, err := f.pipeline.Run(context.Background(), conv, "hello", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)
	assert.Len(t, conv.Turns(), 2)
}

func TestConfigValidate(t *testing.T) {
	g := genkit.Init(context.Background())
	assembler := NewAssembler(testutil.NewStubSearcher(), 3, log.NewNop())
	router := knowledge.NewRouter()
	sessions := session.NewLifecycle(nil, log.NewNop())

	tests := []struct {
		name        string
		cfg         Config
		errContains string
	}{
		{"nil genkit", Config{}, "genkit instance is required"},
		{"nil assembler", Config{Genkit: g}, "assembler is required"},
		{"nil router", Config{Genkit: g, Assembler: assembler}, "router is required"},
		{"nil sessions", Config{Genkit: g, Assembler: assembler, Router: router}, "session lifecycle is required"},
		{"nil logger", Config{Genkit: g, Assembler: assembler, Router: router, Sessions: sessions}, "logger is required"},
		{
			"empty model name",
			Config{Genkit: g, Assembler: assembler, Router: router, Sessions: sessions, Logger: log.NewNop()},
			"model name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestCancelToken(t *testing.T) {
	token := NewCancelToken()
	assert.False(t, token.Cancelled())

	token.Cancel()
	token.Cancel() // idempotent
	assert.True(t, token.Cancelled())

	select {
	case <-token.Done():
	default:
		t.Fatal("Done channel not closed after Cancel")
	}

	var nilToken *CancelToken
	assert.False(t, nilToken.Cancelled())
	nilToken.Cancel()
}
