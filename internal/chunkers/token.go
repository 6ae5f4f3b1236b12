package chunkers

import (
	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

// TokenChunker windows the tokenized content into fixed-size, overlapping
// groups (§4.2.1). It is the only chunker with an exact byte-offset map
// built from the encoder's own prefix lengths, so it gives bit-exact
// coverage regardless of content shape.
type TokenChunker struct {
	Tok *tokenizer.Tokenizer
}

func NewTokenChunker(tok *tokenizer.Tokenizer) *TokenChunker {
	return &TokenChunker{Tok: tok}
}

func (c *TokenChunker) Name() string { return "token" }

func (c *TokenChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	text := item.Content
	if text == "" {
		return nil, nil
	}

	tokens, prefixLen := c.Tok.PrefixByteLen(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := effectiveOverlap(size, cfg.ChunkOverlap)
	stride := size - overlap
	if stride < 1 {
		stride = 1
	}

	var chunks []chunk.Chunk
	index := 0
	for start := 0; start < len(tokens); start += stride {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		windowText := c.Tok.Decode(window)
		if windowText == "" {
			if end == len(tokens) {
				break
			}
			continue
		}

		startByte := prefixLen[start]
		endByte := prefixLen[end]
		chunks = append(chunks, b.makeDeterministic(index, windowText, startByte, endByte, nil))
		index++

		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}
