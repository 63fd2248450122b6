package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kanoonai/kanoon/internal/log"
)

// Payload keys passages are stored under in Qdrant collections.
// These match the loader that populates the knowledge base.
const (
	payloadText          = "text"
	payloadAct           = "act"
	payloadSectionNum    = "section_num"
	payloadSectionTitle  = "section_title"
	payloadSubsectionNum = "subsection_num"
)

// QdrantConfig configures the Qdrant-backed searcher.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantSearcher searches Qdrant collections, one collection per
// knowledge-base partition. Query vectors come from the configured
// embedder.
//
// Safe for concurrent use; the underlying gRPC client is shared.
type QdrantSearcher struct {
	client   *qdrant.Client
	embedder ai.Embedder
	logger   log.Logger
}

// NewQdrantSearcher connects to Qdrant and returns a searcher.
// Call Close to release the gRPC connection.
func NewQdrantSearcher(cfg QdrantConfig, embedder ai.Embedder, logger log.Logger) (*QdrantSearcher, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	logger.Debug("qdrant searcher initialized", "host", cfg.Host, "port", cfg.Port)
	return &QdrantSearcher{client: client, embedder: embedder, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantSearcher) Close() error {
	return s.client.Close()
}

// Search returns the top-k passages of the collection for the query,
// ordered by descending similarity. Missing payload fields yield empty
// Passage metadata; an empty result set is returned as an empty slice.
func (s *QdrantSearcher) Search(ctx context.Context, query, collection string, k int) ([]Passage, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	vector, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)), // #nosec G115 -- k validated positive above
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", collection, err)
	}

	passages := make([]Passage, 0, len(points))
	for _, point := range points {
		passages = append(passages, passageFromPayload(point.Payload))
	}

	s.logger.Debug("qdrant search completed",
		"collection", collection, "k", k, "results", len(passages))
	return passages, nil
}

// passageFromPayload maps a Qdrant point payload to a Passage.
// Absent or non-string payload values leave the field empty.
func passageFromPayload(payload map[string]*qdrant.Value) Passage {
	return Passage{
		Text:          payloadString(payload, payloadText),
		Act:           payloadString(payload, payloadAct),
		SectionNum:    payloadString(payload, payloadSectionNum),
		SectionTitle:  payloadString(payload, payloadSectionTitle),
		SubsectionNum: payloadString(payload, payloadSubsectionNum),
	}
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return v.GetStringValue()
}
