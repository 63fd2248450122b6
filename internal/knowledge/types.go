// Package knowledge provides profile-routed retrieval over the legal
// knowledge base.
//
// The knowledge base is partitioned into named collections (acts,
// precedents, constitution, ...). A Router maps user-facing profiles to
// collections; a Searcher returns the most relevant passages of one
// collection for a query. Two Searcher backends exist: Qdrant (one
// collection per partition) and PostgreSQL + pgvector (partition as a
// column filter).
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// DefaultTopK is the number of passages retrieved per query when the
// caller does not override it.
const DefaultTopK = 3

// Passage is one retrieved knowledge-base passage with sparse source
// metadata. Any subset of the metadata fields may be empty. Passages
// are ephemeral: fetched per turn, never cached, never persisted.
type Passage struct {
	Text          string `json:"text"`
	Act           string `json:"act,omitempty"`
	SectionNum    string `json:"section_num,omitempty"`
	SectionTitle  string `json:"section_title,omitempty"`
	SubsectionNum string `json:"subsection_num,omitempty"`
}

// HasMetadata reports whether any source metadata field is present.
func (p Passage) HasMetadata() bool {
	return p.Act != "" || p.SectionNum != "" || p.SectionTitle != "" || p.SubsectionNum != ""
}

// Searcher performs nearest-neighbor passage search in one collection.
// Results are ordered by descending relevance and deterministic for
// identical index state. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, query, collection string, k int) ([]Passage, error)
}

// embedQuery generates the query vector using the configured embedder.
func embedQuery(ctx context.Context, embedder ai.Embedder, query string) ([]float32, error) {
	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}
	return resp.Embeddings[0].Embedding, nil
}
