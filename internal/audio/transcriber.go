package audio

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// transcribePrompt steers the model toward a bare transcript. The
// spoken language is predominantly Nepali.
const transcribePrompt = "Transcribe this audio recording. The speech is in Nepali. " +
	"Return only the transcript text, with no commentary."

// Transcriber converts a WAV recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wavData []byte) (string, error)
}

// GeminiTranscriber transcribes audio with the Gemini API.
type GeminiTranscriber struct {
	client *genai.Client
	model  string
}

// NewGeminiTranscriber creates a transcriber using the given client
// and model name (e.g. "gemini-2.5-flash").
func NewGeminiTranscriber(client *genai.Client, model string) *GeminiTranscriber {
	return &GeminiTranscriber{client: client, model: model}
}

// Transcribe sends the recording inline and returns the transcript
// text, whitespace-trimmed. An empty transcript is not an error.
func (t *GeminiTranscriber) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(wavData, "audio/wav"),
		genai.NewPartFromText(transcribePrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
