// Package chat runs the retrieval-augmented answer pipeline for one
// conversation turn: resolve the profile's collection, retrieve and
// assemble context, stream the model's answer, and commit the result
// into conversation state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
)

// Sentinel errors for turn execution.
var (
	// ErrInvalidSession indicates the session ID is invalid or unknown.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExecutionFailed indicates the turn pipeline failed before an
	// answer was committed.
	ErrExecutionFailed = errors.New("execution failed")

	// errStreamCancelled aborts the model stream when the caller's
	// cancel token fires. Treated as a normal early finish, not a
	// failure.
	errStreamCancelled = errors.New("stream cancelled")
)

// basePrompt is the static persona portion of the system instructions.
// The context and citation blocks are appended per turn.
const basePrompt = `- You are a legal assistant specialized in Nepali law.
- Answer in Nepali and be as accurate as possible.
- If you do not know the answer, say that you do not know. Never make up an answer.`

// TurnState tracks where a turn is in its lifecycle.
type TurnState int

const (
	StateIdle TurnState = iota
	StateStreaming
	StateCommitted
	StateCancelled
)

// String returns the lowercase name of the state.
func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ChunkFunc receives each text chunk of the answer as it streams.
// Returning an error aborts the stream and fails the turn.
type ChunkFunc func(ctx context.Context, text string) error

// Result is the outcome of one committed turn. State is StateCancelled
// when the turn was cut short mid-stream; Text then holds the partial
// answer that was committed.
type Result struct {
	Text  string
	State TurnState
}

// StructuredAnswer is a candidate typed output schema for generation.
// Not wired in yet; answers currently stream as plain text with the
// sources section embedded.
type StructuredAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// TurnWriter persists committed turns. *session.Store satisfies it.
type TurnWriter interface {
	AppendTurns(ctx context.Context, threadID uuid.UUID, turns []session.Turn) error
}

// Config contains all required parameters for the turn pipeline.
type Config struct {
	Genkit    *genkit.Genkit
	Assembler *Assembler
	Router    *knowledge.Router
	Sessions  *session.Lifecycle
	Logger    log.Logger

	// ModelName is the provider-qualified model name,
	// e.g. "googleai/gemini-2.5-flash".
	ModelName string

	// Turns is optional; nil disables turn persistence.
	Turns TurnWriter

	// RateLimiter is optional proactive rate limiting (nil = default).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Assembler == nil {
		return errors.New("assembler is required")
	}
	if cfg.Router == nil {
		return errors.New("router is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session lifecycle is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Pipeline executes conversation turns. It is stateless across turns;
// all per-session state lives in session.Conversation. Safe for
// concurrent use across sessions; turns within one session are
// serialized by the conversation's run lock.
type Pipeline struct {
	g         *genkit.Genkit
	assembler *Assembler
	router    *knowledge.Router
	sessions  *session.Lifecycle
	turns     TurnWriter
	limiter   *rate.Limiter
	logger    log.Logger
	modelName string
}

// New creates a Pipeline with required configuration.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	p := &Pipeline{
		g:         cfg.Genkit,
		assembler: cfg.Assembler,
		router:    cfg.Router,
		sessions:  cfg.Sessions,
		turns:     cfg.Turns,
		limiter:   rl,
		logger:    cfg.Logger,
		modelName: cfg.ModelName,
	}

	p.logger.Info("turn pipeline initialized", "model", p.modelName)
	return p, nil
}

// Run executes one turn: appends the user turn, retrieves context for
// the conversation's profile, streams the answer through callback, and
// commits the assistant turn.
//
// token may be nil. When it fires mid-stream, text accumulated so far
// is committed and the result carries StateCancelled. Context
// cancellation behaves the same way. Any other retrieval or generation
// error propagates and no assistant turn is committed; the user turn
// stays in history.
//
// Run holds the conversation's run lock for its whole duration, so
// concurrent turns on the same session execute one at a time.
func (p *Pipeline) Run(ctx context.Context, conv *session.Conversation, input string, token *CancelToken, callback ChunkFunc) (*Result, error) {
	conv.BeginTurn()
	defer conv.EndTurn()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	userTurn := session.Turn{Role: session.RoleUser, Content: input}
	conv.Append(userTurn)

	collection := p.router.Resolve(conv.Profile())
	blocks, err := p.assembler.Assemble(ctx, input, collection)
	if err != nil {
		return nil, err
	}

	state := StateStreaming
	var acc strings.Builder

	streamCb := func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		// Cancellation is observed at chunk boundaries: text already
		// accumulated stays, the current chunk is dropped.
		if token.Cancelled() {
			return errStreamCancelled
		}
		if err := ctx.Err(); err != nil {
			return errStreamCancelled
		}
		if chunk == nil {
			return nil
		}
		for _, part := range chunk.Content {
			if part.Text == "" {
				continue
			}
			acc.WriteString(part.Text)
			if callback != nil {
				if err := callback(ctx, part.Text); err != nil {
					return fmt.Errorf("stream callback: %w", err)
				}
			}
		}
		return nil
	}

	resp, err := genkit.Generate(ctx, p.g,
		ai.WithModelName(p.modelName),
		ai.WithSystem(systemInstructions(blocks)),
		ai.WithMessages(historyMessages(conv)...),
		ai.WithStreaming(streamCb),
	)
	switch {
	case err == nil:
		// Prefer the final response text when streaming produced
		// nothing (non-streaming providers report text only here).
		if acc.Len() == 0 && resp != nil {
			acc.WriteString(resp.Text())
		}
		state = StateCommitted
	case errors.Is(err, errStreamCancelled), errors.Is(err, context.Canceled), token.Cancelled(), ctx.Err() != nil:
		state = StateCancelled
	default:
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	// Commit whatever was produced, even the empty string.
	answer := acc.String()
	assistantTurn := session.Turn{Role: session.RoleAssistant, Content: answer}
	conv.Append(assistantTurn)

	p.logger.Debug("turn committed",
		"session_id", conv.ID(),
		"state", state.String(),
		"answer_len", len(answer),
	)

	if p.turns != nil {
		// Persistence must survive a cancelled request context.
		persistCtx := context.WithoutCancel(ctx)
		if err := p.turns.AppendTurns(persistCtx, conv.ID(), []session.Turn{userTurn, assistantTurn}); err != nil {
			p.logger.Warn("persisting turns", "session_id", conv.ID(), "error", err)
		}
	}

	if state == StateCommitted {
		p.postCommitInvoke(context.WithoutCancel(ctx), conv, blocks)
	}

	return &Result{Text: answer, State: state}, nil
}

// postCommitInvoke re-runs the model over the committed history without
// streaming. The output is discarded; the call exists to validate the
// committed state end to end and is best-effort.
func (p *Pipeline) postCommitInvoke(ctx context.Context, conv *session.Conversation, blocks Blocks) {
	_, err := genkit.Generate(ctx, p.g,
		ai.WithModelName(p.modelName),
		ai.WithSystem(systemInstructions(blocks)),
		ai.WithMessages(historyMessages(conv)...),
	)
	if err != nil {
		p.logger.Debug("post-commit invoke failed", "session_id", conv.ID(), "error", err)
	}
}

// systemInstructions builds the full system prompt for one turn:
// static persona plus the turn's context and citation blocks. The
// citation directive is omitted when no passage carried metadata.
func systemInstructions(blocks Blocks) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if blocks.Context != "" {
		b.WriteString("\n\nUse the following context to answer:\n\n")
		b.WriteString(blocks.Context)
	}
	if blocks.Citations != "" {
		b.WriteString("\n\nEnd the answer with a \"Sources\" section listing exactly these citations:\n")
		b.WriteString(blocks.Citations)
	}
	return b.String()
}

// historyMessages converts conversation turns into model messages.
// Fresh message objects are built on every call; Genkit mutates
// message content in place during rendering, so sharing them across
// runs would race.
func historyMessages(conv *session.Conversation) []*ai.Message {
	turns := conv.Turns()
	msgs := make([]*ai.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case session.RoleUser:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(t.Content)))
		case session.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(t.Content)))
		}
	}
	return msgs
}
