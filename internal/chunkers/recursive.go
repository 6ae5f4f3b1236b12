package chunkers

import (
	"strings"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

// recursiveSeparators is the ordered separator hierarchy from §4.2.3. The
// empty string at the end means "split every character" (hard windows).
var recursiveSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// RecursiveChunker splits at the coarsest separator that fits, recursing
// into finer separators only for oversize pieces, then greedily re-merges
// adjacent small pieces up to chunk_size with overlap applied at the
// outermost merge (§4.2.3).
type RecursiveChunker struct {
	Tok *tokenizer.Tokenizer
}

func NewRecursiveChunker(tok *tokenizer.Tokenizer) *RecursiveChunker {
	return &RecursiveChunker{Tok: tok}
}

func (c *RecursiveChunker) Name() string { return "recursive" }

// split recursively segments text by the separator hierarchy starting at
// level, returning pieces with the separator kept attached to the piece it
// follows (mirrors splitSentences' trailing-delimiter convention so
// rejoining pieces reconstructs the input exactly).
func (c *RecursiveChunker) split(text string, level int, size int) []string {
	if c.Tok.Count(text) <= size || level >= len(recursiveSeparators) {
		if level >= len(recursiveSeparators)-1 && c.Tok.Count(text) > size {
			return c.hardWindow(text, size)
		}
		return []string{text}
	}

	sep := recursiveSeparators[level]
	var pieces []string
	if sep == "" {
		pieces = c.hardWindow(text, size)
	} else {
		parts := strings.Split(text, sep)
		for i, p := range parts {
			if i < len(parts)-1 {
				p += sep
			}
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var result []string
	for _, p := range pieces {
		if c.Tok.Count(p) > size {
			result = append(result, c.split(p, level+1, size)...)
		} else {
			result = append(result, p)
		}
	}
	return result
}

// hardWindow splits text into size-token character-level windows (the
// final separator-hierarchy level).
func (c *RecursiveChunker) hardWindow(text string, size int) []string {
	runes := []rune(text)
	var out []string
	// Binary-search-free approximation: step by a rune count proportional
	// to size, then trim to the token budget.
	approxRunesPerToken := 4
	step := size * approxRunesPerToken
	if step < 1 {
		step = 1
	}
	for start := 0; start < len(runes); {
		end := start + step
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[start:end])
		for c.Tok.Count(piece) > size && end > start+1 {
			end--
			piece = string(runes[start:end])
		}
		out = append(out, piece)
		start = end
	}
	return out
}

// window is a merged run of pieces with its byte span in the original text.
type window struct {
	text  string
	start int
	end   int
}

// merge greedily combines adjacent pieces while the merged size stays
// within chunk_size, applying token-based overlap between merged windows.
// offsets[i] is the byte offset of pieces[i] in the original text.
func (c *RecursiveChunker) merge(pieces []string, offsets []int, size, overlap int) []window {
	var windows []window
	var current []string
	var currentOffsets []int
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.Join(current, "")
		windows = append(windows, window{
			text:  joined,
			start: currentOffsets[0],
			end:   currentOffsets[0] + len(joined),
		})
	}

	for i, p := range pieces {
		pTokens := c.Tok.Count(p)
		if currentTokens > 0 && currentTokens+pTokens > size {
			flush()
			// carry overlap tail
			var carried []string
			var carriedOffsets []int
			carriedTokens := 0
			for j := len(current) - 1; j >= 0 && overlap > 0; j-- {
				t := c.Tok.Count(current[j])
				if carriedTokens+t > overlap && len(carried) > 0 {
					break
				}
				carried = append([]string{current[j]}, carried...)
				carriedOffsets = append([]int{currentOffsets[j]}, carriedOffsets...)
				carriedTokens += t
			}
			// Drop carried pieces until the next piece fits within size.
			for len(carried) > 0 && carriedTokens+pTokens > size {
				carriedTokens -= c.Tok.Count(carried[0])
				carried = carried[1:]
				carriedOffsets = carriedOffsets[1:]
			}
			current = carried
			currentOffsets = carriedOffsets
			currentTokens = carriedTokens
		}
		current = append(current, p)
		currentOffsets = append(currentOffsets, offsets[i])
		currentTokens += pTokens
	}
	flush()
	return windows
}

func (c *RecursiveChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	text := item.Content
	if text == "" {
		return nil, nil
	}

	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := effectiveOverlap(size, cfg.ChunkOverlap)

	pieces := c.split(text, 0, size)
	offsets := make([]int, len(pieces))
	cursor := 0
	for i, p := range pieces {
		idx := strings.Index(text[cursor:], p)
		if idx == -1 {
			idx = 0
		}
		offsets[i] = cursor + idx
		cursor += idx + len(p)
	}

	windows := c.merge(pieces, offsets, size, overlap)

	var chunks []chunk.Chunk
	index := 0
	for _, w := range windows {
		if w.text == "" {
			continue
		}
		chunks = append(chunks, b.make(index, w.text, w.start, w.end, nil))
		index++
	}
	return chunks, nil
}
