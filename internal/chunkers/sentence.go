package chunkers

import (
	"strings"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

// sentenceDelims is the fixed, ordered delimiter set from §4.2.2. Delimiters
// stay attached to the sentence they end.
var sentenceDelims = []string{". ", "! ", "? ", "\n"}

// SentenceChunker splits on sentence-ending punctuation, merges
// too-short fragments forward, then greedily packs sentences into
// chunk_size-bounded windows with sentence-level overlap (§4.2.2).
type SentenceChunker struct {
	Tok *tokenizer.Tokenizer
}

func NewSentenceChunker(tok *tokenizer.Tokenizer) *SentenceChunker {
	return &SentenceChunker{Tok: tok}
}

func (c *SentenceChunker) Name() string { return "sentence" }

// splitSentences splits text on the fixed delimiter set, keeping the
// delimiter attached to the preceding sentence.
func splitSentences(text string) []string {
	var out []string
	rest := text
	for len(rest) > 0 {
		cut := -1
		cutLen := 0
		for _, d := range sentenceDelims {
			if i := strings.Index(rest, d); i != -1 && (cut == -1 || i < cut) {
				cut = i
				cutLen = len(d)
			}
		}
		if cut == -1 {
			out = append(out, rest)
			break
		}
		out = append(out, rest[:cut+cutLen])
		rest = rest[cut+cutLen:]
	}
	return out
}

// mergeShortForward merges any fragment shorter than minChars into the
// following fragment (§4.2.2, §8 per-chunker property).
func mergeShortForward(sentences []string, minChars int) []string {
	var out []string
	pending := ""
	for _, s := range sentences {
		combined := pending + s
		if len(strings.TrimSpace(combined)) < minChars {
			pending = combined
			continue
		}
		out = append(out, combined)
		pending = ""
	}
	if pending != "" {
		if len(out) > 0 {
			out[len(out)-1] += pending
		} else {
			out = append(out, pending)
		}
	}
	return out
}

func (c *SentenceChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	text := item.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	minChars := cfg.MinCharsPerSentence
	if minChars < 0 {
		minChars = 0
	}
	sentences := mergeShortForward(splitSentences(text), minChars)

	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := effectiveOverlap(size, cfg.ChunkOverlap)

	var chunks []chunk.Chunk
	index := 0
	cursor := 0 // byte offset into text of the next unconsumed sentence
	var window []string
	windowStart := 0
	windowTokens := 0

	emit := func() {
		if len(window) == 0 {
			return
		}
		joined := strings.Join(window, "")
		trimmed := strings.TrimRight(joined, " \t")
		if trimmed == "" {
			return
		}
		chunks = append(chunks, b.make(index, trimmed, windowStart, windowStart+len(trimmed), nil))
		index++
	}

	for _, s := range sentences {
		sTokens := c.Tok.Count(s)
		sStart := cursor
		cursor += len(s)

		if len(window) > 0 && windowTokens+sTokens > size {
			emit()

			// Compute overlap carry: trailing sentences whose combined
			// tokens approximate cfg.ChunkOverlap.
			carried := []string{}
			carriedTokens := 0
			for i := len(window) - 1; i >= 0 && overlap > 0; i-- {
				t := c.Tok.Count(window[i])
				if carriedTokens+t > overlap && len(carried) > 0 {
					break
				}
				carried = append([]string{window[i]}, carried...)
				carriedTokens += t
			}
			// Drop carried sentences until the next sentence fits the window.
			for len(carried) > 0 && carriedTokens+sTokens > size {
				carriedTokens -= c.Tok.Count(carried[0])
				carried = carried[1:]
			}
			// Recompute windowStart to the byte offset of the first
			// carried sentence.
			carryLen := 0
			for _, w := range carried {
				carryLen += len(w)
			}
			window = carried
			windowTokens = carriedTokens
			windowStart = sStart - carryLen
			if windowStart < 0 {
				windowStart = sStart
			}
		}

		if len(window) == 0 {
			windowStart = sStart
		}
		window = append(window, s)
		windowTokens += sTokens
	}
	emit()

	return chunks, nil
}
