package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
)

// Citation field labels, applied in fixed order.
const (
	labelAct           = "Act: "
	labelSectionNum    = "Section: "
	labelSectionTitle  = "Section title: "
	labelSubsectionNum = "Sub-section: "
)

// Blocks is the dynamic portion of the system instructions for one
// turn. It is recomputed from scratch every turn and never persisted
// into conversation state.
type Blocks struct {
	// Context is the retrieved passage text, blank-line separated,
	// in relevance order.
	Context string

	// Citations holds one line per passage that carried metadata,
	// in passage order. Empty when no passage had metadata.
	Citations string
}

// Assembler turns retrieved passages into the per-turn context and
// citation blocks.
type Assembler struct {
	searcher knowledge.Searcher
	topK     int
	logger   log.Logger
}

// NewAssembler creates an Assembler over the given searcher.
// topK <= 0 uses knowledge.DefaultTopK.
func NewAssembler(searcher knowledge.Searcher, topK int, logger log.Logger) *Assembler {
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Assembler{searcher: searcher, topK: topK, logger: logger}
}

// Assemble retrieves passages for the query in the given collection and
// builds the context and citation blocks. A retrieval error propagates;
// an empty result yields empty blocks, not an error.
func (a *Assembler) Assemble(ctx context.Context, query, collection string) (Blocks, error) {
	passages, err := a.searcher.Search(ctx, query, collection, a.topK)
	if err != nil {
		return Blocks{}, fmt.Errorf("retrieving context: %w", err)
	}

	texts := make([]string, 0, len(passages))
	citations := make([]string, 0, len(passages))
	for _, p := range passages {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
		if line := citationLine(p); line != "" {
			citations = append(citations, line)
		}
	}

	a.logger.Debug("assembled turn context",
		"collection", collection,
		"passages", len(passages),
		"citations", len(citations),
	)

	return Blocks{
		Context:   strings.Join(texts, "\n\n"),
		Citations: strings.Join(citations, "\n"),
	}, nil
}

// citationLine renders the citation for one passage: present metadata
// fields in fixed order, label-prefixed, comma-joined. A passage with
// no metadata yields an empty string.
func citationLine(p knowledge.Passage) string {
	parts := make([]string, 0, 4)
	if p.Act != "" {
		parts = append(parts, labelAct+p.Act)
	}
	if p.SectionNum != "" {
		parts = append(parts, labelSectionNum+p.SectionNum)
	}
	if p.SectionTitle != "" {
		parts = append(parts, labelSectionTitle+p.SectionTitle)
	}
	if p.SubsectionNum != "" {
		parts = append(parts, labelSubsectionNum+p.SubsectionNum)
	}
	return strings.Join(parts, ", ")
}
