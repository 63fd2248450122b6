package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/kanoonai/kanoon/internal/log"
)

// PgExec is the write subset of pgx operations the indexer needs.
// *pgxpool.Pool satisfies it.
type PgExec interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Indexer writes passages into the pgvector-backed passages table,
// embedding each passage's text on the way in.
type Indexer struct {
	db       PgExec
	embedder ai.Embedder
	logger   log.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(db PgExec, embedder ai.Embedder, logger log.Logger) *Indexer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Indexer{db: db, embedder: embedder, logger: logger}
}

// Index embeds and inserts the passages into the collection. Passages
// with empty text are skipped. Returns the number inserted; a failure
// partway leaves earlier inserts in place.
func (ix *Indexer) Index(ctx context.Context, collection string, passages []Passage) (int, error) {
	inserted := 0
	for _, p := range passages {
		if p.Text == "" {
			continue
		}
		vector, err := embedQuery(ctx, ix.embedder, p.Text)
		if err != nil {
			return inserted, fmt.Errorf("embedding passage %d: %w", inserted, err)
		}
		_, err = ix.db.Exec(ctx,
			`INSERT INTO passages (collection, text, act, section_num, section_title, subsection_num, embedding)
			 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)`,
			collection, p.Text, p.Act, p.SectionNum, p.SectionTitle, p.SubsectionNum,
			pgvector.NewVector(vector),
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting passage %d: %w", inserted, err)
		}
		inserted++
	}

	ix.logger.Info("indexed passages", "collection", collection, "count", inserted)
	return inserted, nil
}
