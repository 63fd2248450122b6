package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kanoonai/kanoon/internal/log"
)

// PgDB is the subset of pgx operations PgvectorSearcher needs.
// *pgxpool.Pool satisfies this; the pool must have pgvector types
// registered (see app setup).
type PgDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgvectorSearcher searches the passages table with PostgreSQL +
// pgvector. Partitions are rows sharing a collection value rather than
// separate physical collections.
//
// Safe for concurrent use by multiple goroutines.
type PgvectorSearcher struct {
	db       PgDB
	embedder ai.Embedder
	logger   log.Logger
}

// NewPgvectorSearcher creates a pgvector-backed searcher.
func NewPgvectorSearcher(db PgDB, embedder ai.Embedder, logger log.Logger) *PgvectorSearcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PgvectorSearcher{db: db, embedder: embedder, logger: logger}
}

// Search returns the top-k passages of the collection for the query,
// ordered by ascending cosine distance (descending similarity).
func (s *PgvectorSearcher) Search(ctx context.Context, query, collection string, k int) ([]Passage, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	vector, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT text,
		        COALESCE(act, ''),
		        COALESCE(section_num, ''),
		        COALESCE(section_title, ''),
		        COALESCE(subsection_num, '')
		 FROM passages
		 WHERE collection = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		collection, pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", collection, err)
	}
	defer rows.Close()

	passages := make([]Passage, 0, k)
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.Text, &p.Act, &p.SectionNum, &p.SectionTitle, &p.SubsectionNum); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", collection, err)
	}

	s.logger.Debug("pgvector search completed",
		"collection", collection, "k", k, "results", len(passages))
	return passages, nil
}
