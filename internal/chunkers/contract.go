// Package chunkers implements the family of content-segmentation strategies
// described in spec.md §4.2: Token, Sentence, Recursive, Code, Document,
// Chat, Ticketing, Table, and Agentic. Every member conforms to the same
// Chunker contract so the router (internal/router) can dispatch over them
// uniformly.
package chunkers

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

// Chunker converts one SourceItem into an ordered sequence of Chunks. All
// implementations are pure and side-effect-free: same (item, cfg) in, same
// chunk contents, offsets and metadata out (§4.2 "Determinism"). Chunk IDs
// are repeatable only for TokenChunker and CodeChunker; the other chunkers
// mint a fresh uuid per chunk.
type Chunker interface {
	// Name identifies the strategy for metadata and explicit-override
	// lookups (§4.3 "a caller-supplied explicit strategy name").
	Name() string
	Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error)
}

// builder centralizes the bookkeeping every chunker needs: a shared
// tokenizer reference and the inherited item metadata/identity fields each
// emitted Chunk must copy.
type builder struct {
	tok  *tokenizer.Tokenizer
	item chunk.SourceItem
}

func newBuilder(tok *tokenizer.Tokenizer, item chunk.SourceItem) *builder {
	return &builder{tok: tok, item: item}
}

// make assembles a Chunk, copying item identity fields and merging item
// metadata with chunker-supplied keys. start/end are byte offsets into the
// original item.content (§3 "Chunk" invariants).
func (b *builder) make(index int, text string, start, end int, extra map[string]any) chunk.Chunk {
	meta := make(map[string]any, len(b.item.Metadata)+len(extra))
	for k, v := range b.item.Metadata {
		meta[k] = v
	}
	for k, v := range extra {
		meta[k] = v
	}
	return chunk.Chunk{
		ID:           uuid.NewString(),
		SourceItemID: b.item.ID,
		SourceID:     b.item.SourceID,
		SourceKind:   b.item.SourceKind,
		Content:      text,
		TokenCount:   b.tok.Count(text),
		StartIndex:   start,
		EndIndex:     end,
		ChunkIndex:   index,
		Metadata:     meta,
	}
}

// makeDeterministic is like make but derives a content-addressed ID instead
// of a fresh uuid, for the two chunkers whose IDs must be stable across
// repeated runs over the same content (§8 property 4: TokenChunker and
// CodeChunker).
func (b *builder) makeDeterministic(index int, text string, start, end int, extra map[string]any) chunk.Chunk {
	c := b.make(index, text, start, end, extra)
	c.ID = deterministicContentID(b.item.ID, start, end, text)
	return c
}

// deterministicContentID derives a content-addressed ID from an item's
// identity, byte offsets, and content. Shared within the package so a
// chunker that builds a chunk through another chunker (CodeChunker's glue
// chunks via RecursiveChunker) can re-key it onto a stable ID afterward
// instead of keeping the delegate's random uuid (§8 property 4).
func deterministicContentID(itemID string, start, end int, text string) string {
	contentHash := sha256.Sum256([]byte(text))
	payload := fmt.Sprintf("%s:%d:%d:%x", itemID, start, end, contentHash)
	h := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%x", h)[:32]
}

// effectiveOverlap clamps a configured overlap to stay within [0, size).
func effectiveOverlap(size, overlap int) int {
	if overlap < 0 {
		return 0
	}
	if overlap >= size {
		return size - 1
	}
	return overlap
}
