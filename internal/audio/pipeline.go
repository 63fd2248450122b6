// Package audio ingests streamed voice turns: raw PCM chunks are
// buffered per session, framed as WAV when the capture ends, and
// transcribed into the text that feeds the turn pipeline.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kanoonai/kanoon/internal/log"
)

// Pipeline buffers one in-flight voice capture per session. A session
// has at most one active capture; starting a new one discards any
// buffered audio from the previous.
//
// Safe for concurrent use by multiple goroutines.
type Pipeline struct {
	transcriber Transcriber
	logger      log.Logger

	mu       sync.Mutex
	captures map[uuid.UUID]*bytes.Buffer
}

// NewPipeline creates an audio pipeline over the given transcriber.
func NewPipeline(transcriber Transcriber, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		transcriber: transcriber,
		logger:      logger,
		captures:    make(map[uuid.UUID]*bytes.Buffer),
	}
}

// BeginCapture starts a capture for the session, discarding any
// partial audio from an earlier capture that never ended.
func (p *Pipeline) BeginCapture(sessionID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.captures[sessionID]; ok && old.Len() > 0 {
		p.logger.Debug("discarding stale capture",
			"session_id", sessionID, "bytes", old.Len())
	}
	p.captures[sessionID] = &bytes.Buffer{}
}

// IngestChunk appends raw PCM bytes to the session's capture. Chunks
// arriving outside an active capture are dropped.
func (p *Pipeline) IngestChunk(sessionID uuid.UUID, pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf, ok := p.captures[sessionID]
	if !ok {
		p.logger.Debug("dropping chunk outside capture", "session_id", sessionID)
		return
	}
	buf.Write(pcm)
}

// Active reports whether the session has a capture in progress.
func (p *Pipeline) Active(sessionID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.captures[sessionID]
	return ok
}

// EndCapture closes the session's capture and returns the transcript.
// The buffer is cleared before transcription starts, so a capture is
// consumed exactly once even if transcription fails.
//
// Ending with no active capture or an empty buffer is a no-op
// returning an empty transcript.
func (p *Pipeline) EndCapture(ctx context.Context, sessionID uuid.UUID) (string, error) {
	p.mu.Lock()
	buf, ok := p.captures[sessionID]
	delete(p.captures, sessionID)
	p.mu.Unlock()

	if !ok || buf.Len() == 0 {
		return "", nil
	}

	wavData, err := EncodeWAV(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("framing capture: %w", err)
	}

	transcript, err := p.transcriber.Transcribe(ctx, wavData)
	if err != nil {
		return "", err
	}

	p.logger.Debug("capture transcribed",
		"session_id", sessionID,
		"pcm_bytes", buf.Len(),
		"transcript_len", len(transcript),
	)
	return transcript, nil
}
