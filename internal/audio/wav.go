package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Capture format: 16-bit little-endian PCM, mono, 24 kHz. This is the
// raw frame format clients stream; WAV framing is added server-side
// before transcription.
const (
	SampleRate = 24000
	BitDepth   = 16
	NumChans   = 1
)

// EncodeWAV wraps raw PCM16LE samples in a WAV container. Odd trailing
// bytes are dropped.
func EncodeWAV(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	var out seekBuffer
	enc := wav.NewEncoder(&out, SampleRate, BitDepth, NumChans, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: NumChans, SampleRate: SampleRate},
		SourceBitDepth: BitDepth,
		Data:           samples,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoding wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav header: %w", err)
	}
	return out.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder seeks
// back to patch the RIFF header after writing the data chunk.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		if need > cap(b.buf) {
			grown := make([]byte, need, need*2)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:need]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid seek whence: %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position: %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte {
	return bytes.Clone(b.buf)
}
