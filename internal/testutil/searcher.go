package testutil

import (
	"context"
	"sync"

	"github.com/kanoonai/kanoon/internal/knowledge"
)

// StubSearcher is an in-memory knowledge.Searcher. Passages are
// registered per collection and returned in insertion order, truncated
// to k. A non-nil Err is returned from every Search call.
type StubSearcher struct {
	mu      sync.Mutex
	byColl  map[string][]knowledge.Passage
	queries []string
	colls   []string
	Err     error
}

// NewStubSearcher creates an empty stub searcher.
func NewStubSearcher() *StubSearcher {
	return &StubSearcher{byColl: make(map[string][]knowledge.Passage)}
}

// Add registers passages for a collection.
func (s *StubSearcher) Add(collection string, passages ...knowledge.Passage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byColl[collection] = append(s.byColl[collection], passages...)
}

// Search implements knowledge.Searcher.
func (s *StubSearcher) Search(_ context.Context, query, collection string, k int) ([]knowledge.Passage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.colls = append(s.colls, collection)
	if s.Err != nil {
		return nil, s.Err
	}
	passages := s.byColl[collection]
	if len(passages) > k {
		passages = passages[:k]
	}
	out := make([]knowledge.Passage, len(passages))
	copy(out, passages)
	return out, nil
}

// Queries returns the queries seen, in order.
func (s *StubSearcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.queries))
	copy(cp, s.queries)
	return cp
}

// Collections returns the collections searched, in order.
func (s *StubSearcher) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.colls))
	copy(cp, s.colls)
	return cp
}
