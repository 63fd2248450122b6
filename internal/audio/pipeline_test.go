package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoonai/kanoon/internal/log"
)

type stubTranscriber struct {
	mu      sync.Mutex
	inputs  [][]byte
	result  string
	err     error
}

func (s *stubTranscriber) Transcribe(_ context.Context, wavData []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, wavData)
	return s.result, s.err
}

func pcmSamples(values ...int16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestCaptureRoundTrip(t *testing.T) {
	tr := &stubTranscriber{result: "ke ho yo"}
	p := NewPipeline(tr, log.NewNop())
	id := uuid.New()

	p.BeginCapture(id)
	assert.True(t, p.Active(id))
	p.IngestChunk(id, pcmSamples(100, -100))
	p.IngestChunk(id, pcmSamples(2000))

	transcript, err := p.EndCapture(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ke ho yo", transcript)
	assert.False(t, p.Active(id))
	require.Len(t, tr.inputs, 1)
}

func TestChunkOutsideCaptureDropped(t *testing.T) {
	tr := &stubTranscriber{result: "should not run"}
	p := NewPipeline(tr, log.NewNop())
	id := uuid.New()

	p.IngestChunk(id, pcmSamples(1, 2, 3))
	transcript, err := p.EndCapture(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, transcript)
	assert.Empty(t, tr.inputs)
}

func TestEmptyCaptureNoop(t *testing.T) {
	tr := &stubTranscriber{result: "should not run"}
	p := NewPipeline(tr, log.NewNop())
	id := uuid.New()

	p.BeginCapture(id)
	transcript, err := p.EndCapture(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, transcript)
	assert.Empty(t, tr.inputs)
}

func TestBeginCaptureResetsOldBuffer(t *testing.T) {
	tr := &stubTranscriber{result: "ok"}
	p := NewPipeline(tr, log.NewNop())
	id := uuid.New()

	p.BeginCapture(id)
	p.IngestChunk(id, pcmSamples(1, 2, 3, 4))
	p.BeginCapture(id)

	transcript, err := p.EndCapture(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, transcript)
	assert.Empty(t, tr.inputs)
}

func TestCaptureConsumedOnFailure(t *testing.T) {
	tr := &stubTranscriber{err: errors.New("model unavailable")}
	p := NewPipeline(tr, log.NewNop())
	id := uuid.New()

	p.BeginCapture(id)
	p.IngestChunk(id, pcmSamples(5, 6))

	_, err := p.EndCapture(context.Background(), id)
	require.Error(t, err)

	// The failed capture is gone; ending again is a no-op.
	transcript, err := p.EndCapture(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestCapturesAreIndependent(t *testing.T) {
	tr := &stubTranscriber{result: "ok"}
	p := NewPipeline(tr, log.NewNop())
	a, b := uuid.New(), uuid.New()

	p.BeginCapture(a)
	p.BeginCapture(b)
	p.IngestChunk(a, pcmSamples(1))
	assert.True(t, p.Active(a))
	assert.True(t, p.Active(b))

	_, err := p.EndCapture(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, p.Active(a))
	assert.True(t, p.Active(b))
}

func TestEncodeWAV(t *testing.T) {
	data, err := EncodeWAV(pcmSamples(0, 1000, -1000, 32767, -32768))
	require.NoError(t, err)

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(SampleRate), dec.SampleRate)
	assert.Equal(t, uint16(NumChans), dec.NumChans)
	assert.Equal(t, uint16(BitDepth), dec.BitDepth)
	assert.Equal(t, []int{0, 1000, -1000, 32767, -32768}, buf.Data)
}

func TestEncodeWAVDropsOddTrailingByte(t *testing.T) {
	raw := append(pcmSamples(42), 0x7f)
	data, err := EncodeWAV(raw)
	require.NoError(t, err)

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{42}, buf.Data)
}
