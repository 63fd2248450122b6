// Package testutil provides shared test doubles and infrastructure
// helpers: a scriptable mock model and embedder registered with Genkit,
// an in-memory passage searcher, and a Postgres testcontainer harness.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the provider-qualified name tests pass as the
// pipeline's model name.
const MockModelName = "mock/test-model"

// MockLLM provides deterministic model responses for testing. User
// message content is matched against registered substring patterns;
// the first match wins, otherwise the fallback is returned.
//
// Responses registered with AddStreamedResponse are delivered one
// chunk per stream callback invocation, so tests can cancel between
// chunks and assert on the partial text.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	calls    []MockCall
}

type mockRule struct {
	pattern string
	chunks  []string
}

// MockCall records a single generate call.
type MockCall struct {
	UserMessage string
	System      string
	Response    string
	Streamed    bool
}

// NewMockLLM creates a mock model with the given fallback response.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern that yields a single-chunk response.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.AddStreamedResponse(pattern, response)
}

// AddStreamedResponse registers a pattern that yields the given chunks
// in order, one per stream callback invocation.
func (m *MockLLM) AddStreamedResponse(pattern string, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), chunks: chunks})
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// LastCall returns the most recent call and whether one was recorded.
func (m *MockLLM) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MockCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Register registers the mock as a Genkit model under MockModelName.
func (m *MockLLM) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText, systemText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}
	for _, msg := range req.Messages {
		if msg.Role == ai.RoleSystem {
			systemText = msg.Text()
			break
		}
	}

	m.mu.Lock()
	chunks := []string{m.fallback}
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			chunks = m.rules[i].chunks
			break
		}
	}
	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		System:      systemText,
		Response:    strings.Join(chunks, ""),
		Streamed:    cb != nil,
	})
	m.mu.Unlock()

	if cb != nil {
		for _, c := range chunks {
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(c)},
			}); err != nil {
				return nil, err
			}
		}
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(strings.Join(chunks, ""))},
		},
	}, nil
}

// MockEmbedder provides deterministic embedding vectors. Each content
// string hashes to a stable unit vector; explicit vectors can be set
// for precise similarity control.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

// NewMockEmbedder creates a mock embedder producing dim-sized vectors.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{vectors: make(map[string][]float32), dim: dim}
}

// SetVector registers an explicit vector for a content string.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// Register registers the mock as a Genkit embedder named
// "mock/test-embedder".
func (e *MockEmbedder) Register(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "mock/test-embedder", &ai.EmbedderOptions{
		Label:      "Mock Test Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		var sb strings.Builder
		for _, p := range doc.Content {
			if p.Kind == ai.PartText {
				sb.WriteString(p.Text)
			}
		}
		embeddings[i] = &ai.Embedding{Embedding: e.vectorFor(sb.String())}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *MockEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	if v, ok := e.vectors[content]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()

	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, e.dim)
	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32], hash[(idx+1)%32], hash[(idx+2)%32], hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
