// Package tokenizer wraps a deterministic subword tokenizer shared by every
// chunker. It is constructed once and is safe for concurrent use by many
// workers (tiktoken's encoder holds no mutable state after construction).
package tokenizer

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts, encodes, and decodes text under the cl100k_base (GPT
// BPE family) vocabulary.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	shared     *Tokenizer
	sharedOnce sync.Once
)

// New constructs a Tokenizer. Falls back to a word-count estimate if the
// cl100k_base vocabulary cannot be loaded (e.g. no network access to fetch
// the BPE ranks on first use in an offline environment).
func New() *Tokenizer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken cl100k_base unavailable, using word-based estimate", "error", err)
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

// Shared returns a process-wide Tokenizer, constructing it on first use.
func Shared() *Tokenizer {
	sharedOnce.Do(func() {
		shared = New()
	})
	return shared
}

// Count returns the number of tokens text would encode to.
func (t *Tokenizer) Count(text string) int {
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// Encode returns the token IDs for text.
func (t *Tokenizer) Encode(text string) []int {
	if t.enc != nil {
		return t.enc.Encode(text, nil, nil)
	}
	// Degenerate fallback: one synthetic token per word so windowing logic
	// in callers still has something to stride over.
	words := strings.Fields(text)
	ids := make([]int, len(words))
	for i := range words {
		ids[i] = i
	}
	return ids
}

// Decode reconstitutes text from token IDs produced by Encode. Under the
// word-count fallback it returns an empty string.
func (t *Tokenizer) Decode(tokens []int) string {
	if t.enc != nil {
		return t.enc.Decode(tokens)
	}
	return ""
}

// PrefixByteLen returns, for each encoded token in order, the cumulative
// number of UTF-8 bytes of text consumed through that token. Used by the
// TokenChunker to map a token window back to a byte offset range.
func (t *Tokenizer) PrefixByteLen(text string) (tokens []int, prefixLen []int) {
	tokens = t.Encode(text)
	prefixLen = make([]int, len(tokens)+1)
	for i := range tokens {
		piece := t.Decode(tokens[:i+1])
		prefixLen[i+1] = len(piece)
	}
	return tokens, prefixLen
}
