package chunkers

import (
	"regexp"
	"strings"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

// candidate is a scored split point within the document, expressed as a
// byte offset at the start of a line.
type candidate struct {
	offset int
	score  int
}

var topLevelDefRE = regexp.MustCompile(`^(def|class|fn|function)\s`)
var headingRE = regexp.MustCompile(`^#{1,6}\s`)

// AgenticChunker is a heuristic boundary-scoring pass for mixed code+prose
// content, opt-in via explicit strategy selection (§4.2.9, §9 open
// question: not used by default routing).
type AgenticChunker struct {
	Tok *tokenizer.Tokenizer
}

func NewAgenticChunker(tok *tokenizer.Tokenizer) *AgenticChunker {
	return &AgenticChunker{Tok: tok}
}

func (c *AgenticChunker) Name() string { return "agentic" }

func (c *AgenticChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	text := item.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := effectiveOverlap(size, cfg.ChunkOverlap)
	soft := int(0.8 * float64(size))
	lookahead := int(0.4 * float64(size))

	candidates := scoreCandidates(text)

	var chunks []chunk.Chunk
	index := 0
	cursor := 0
	prevTail := ""

	for cursor < len(text) {
		tokensSoFar := 0
		cutAt := len(text)
		lineStarts := lineStartOffsets(text, cursor)

		accTokens := 0
		softOffset := -1
		for _, ls := range lineStarts {
			if ls <= cursor {
				continue
			}
			segment := text[cursor:ls]
			accTokens = c.Tok.Count(segment)
			if accTokens >= soft {
				softOffset = ls
				break
			}
			tokensSoFar = accTokens
		}
		_ = tokensSoFar

		if softOffset == -1 {
			cutAt = len(text)
		} else {
			best := -1
			bestScore := -1
			for _, cand := range candidates {
				if cand.offset < softOffset || cand.offset <= cursor {
					continue
				}
				windowTokens := c.Tok.Count(text[cursor:cand.offset])
				if windowTokens > size+lookahead {
					break
				}
				if windowTokens > size {
					continue
				}
				if cand.score > bestScore {
					bestScore = cand.score
					best = cand.offset
				}
			}
			if best != -1 {
				cutAt = best
			} else {
				cutAt = hardLimitCut(text, cursor, size, c.Tok)
			}
		}

		if cutAt <= cursor {
			cutAt = len(text)
		}

		piece := text[cursor:cutAt]
		full := prevTail + piece
		start := cursor - len(prevTail)
		if start < 0 {
			start = 0
		}
		chunks = append(chunks, b.make(index, full, start, cutAt, nil))
		index++

		prevTail = trailingTokens(piece, overlap, c.Tok)
		cursor = cutAt
	}

	return chunks, nil
}

// scoreCandidates finds structural split points: blank lines, heading
// lines, top-level def/class/fn/function lines, and import-block ends.
func scoreCandidates(text string) []candidate {
	var out []candidate
	lines := strings.Split(text, "\n")
	offset := 0
	prevWasImport := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		lineStart := offset
		nextOffset := offset + len(line) + 1

		switch {
		case trimmed == "":
			out = append(out, candidate{offset: nextOffset, score: 1})
		case headingRE.MatchString(trimmed):
			out = append(out, candidate{offset: lineStart, score: 5})
		case topLevelDefRE.MatchString(line):
			out = append(out, candidate{offset: lineStart, score: 4})
		}

		isImport := strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") || strings.HasPrefix(trimmed, "use ") || strings.HasPrefix(trimmed, "require(")
		if prevWasImport && !isImport && trimmed != "" {
			out = append(out, candidate{offset: lineStart, score: 3})
		}
		prevWasImport = isImport

		offset = nextOffset
		_ = i
	}
	return out
}

func lineStartOffsets(text string, from int) []int {
	var out []int
	for i := from; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			out = append(out, i+1)
		}
	}
	out = append(out, len(text))
	return out
}

// hardLimitCut finds the line boundary nearest the hard token limit when no
// structural candidate is available before it.
func hardLimitCut(text string, from, size int, tok *tokenizer.Tokenizer) int {
	lines := lineStartOffsets(text, from)
	cut := len(text)
	for _, ls := range lines {
		if tok.Count(text[from:ls]) > size {
			break
		}
		cut = ls
	}
	if cut <= from {
		cut = len(text)
	}
	return cut
}

// trailingTokens returns a line-aligned suffix of piece whose token count
// approximates overlap.
func trailingTokens(piece string, overlap int, tok *tokenizer.Tokenizer) string {
	if overlap <= 0 {
		return ""
	}
	lines := strings.Split(piece, "\n")
	tokens := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		t := tok.Count(lines[i])
		if tokens+t > overlap && start != len(lines) {
			break
		}
		tokens += t
		start = i
	}
	if start >= len(lines) {
		return ""
	}
	return strings.Join(lines[start:], "\n")
}
