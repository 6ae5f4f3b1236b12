package chunkers

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

var mdParser = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Table),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
).Parser()

// docSection is one heading-keyed section of a markdown/wiki document
// (§4.2.5): the heading line through the body up to the next heading of
// the same or shallower level.
type docSection struct {
	title       string
	level       int // 0 for the preamble before any heading
	headingPath []string
	start, end  int
}

// codeSpan2 marks a fenced or indented code block's byte range, kept atomic
// across re-splitting (§4.2.5 "never split internally").
type codeSpan2 struct {
	start, end int
	lang       string
}

// DocumentChunker splits markdown/wiki content into heading-keyed sections,
// re-splitting oversize sections on paragraph boundaries while keeping code
// blocks atomic (§4.2.5).
type DocumentChunker struct {
	Tok       *tokenizer.Tokenizer
	Recursive *RecursiveChunker
}

func NewDocumentChunker(tok *tokenizer.Tokenizer, recursive *RecursiveChunker) *DocumentChunker {
	return &DocumentChunker{Tok: tok, Recursive: recursive}
}

func (c *DocumentChunker) Name() string { return "document" }

func (c *DocumentChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	text := item.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	source := []byte(text)
	reader := gmtext.NewReader(source)
	doc := mdParser.Parse(reader)

	sections := sectionize(doc, source, len(text))
	codeSpans := collectCodeSpans(doc, source)

	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}

	var chunks []chunk.Chunk
	index := 0
	for _, sec := range sections {
		secText := text[sec.start:sec.end]
		if strings.TrimSpace(secText) == "" {
			continue
		}
		extra := map[string]any{
			"heading_path": append([]string{}, sec.headingPath...),
		}
		if sec.title != "" {
			extra["section"] = sec.title
		}

		if c.Tok.Count(secText) <= size {
			chunks = append(chunks, b.make(index, secText, sec.start, sec.end, extra))
			index++
			continue
		}

		for _, piece := range splitSectionAtomic(sec, codeSpans, text, c.Recursive, cfg, c.Tok) {
			pieceExtra := make(map[string]any, len(extra)+1)
			for k, v := range extra {
				pieceExtra[k] = v
			}
			if piece.isCode {
				pieceExtra["code_block"] = true
				if piece.lang != "" {
					pieceExtra["language"] = piece.lang
				}
			}
			chunks = append(chunks, b.make(index, piece.text, piece.start, piece.end, pieceExtra))
			index++
		}
	}
	return chunks, nil
}

// sectionPiece is one atomic output of splitting an oversize section: either
// a prose window (subject to further recursive splitting) or an atomic code
// block.
type sectionPiece struct {
	text       string
	start, end int
	isCode     bool
	lang       string
}

func splitSectionAtomic(sec docSection, codeSpans []codeSpan2, text string, rec *RecursiveChunker, cfg chunk.Config, tok *tokenizer.Tokenizer) []sectionPiece {
	var relevant []codeSpan2
	for _, cs := range codeSpans {
		if cs.start >= sec.start && cs.end <= sec.end {
			relevant = append(relevant, cs)
		}
	}

	var pieces []sectionPiece
	cursor := sec.start
	emitProse := func(from, to int) {
		if from >= to {
			return
		}
		proseText := text[from:to]
		if strings.TrimSpace(proseText) == "" {
			return
		}
		if tok.Count(proseText) <= cfg.ChunkSize {
			pieces = append(pieces, sectionPiece{text: proseText, start: from, end: to})
			return
		}
		proseItem := chunk.SourceItem{ID: "prose", Content: proseText}
		sub, err := rec.Chunk(proseItem, cfg)
		if err != nil {
			pieces = append(pieces, sectionPiece{text: proseText, start: from, end: to})
			return
		}
		for _, s := range sub {
			pieces = append(pieces, sectionPiece{text: s.Content, start: from + s.StartIndex, end: from + s.EndIndex})
		}
	}

	for _, cs := range relevant {
		if cs.start > cursor {
			emitProse(cursor, cs.start)
		}
		pieces = append(pieces, sectionPiece{text: text[cs.start:cs.end], start: cs.start, end: cs.end, isCode: true, lang: cs.lang})
		cursor = cs.end
	}
	if cursor < sec.end {
		emitProse(cursor, sec.end)
	}
	return pieces
}

// sectionize groups the document's top-level blocks into heading-keyed
// sections in document order (§4.2.5). A preamble section (no heading)
// covers any content before the first heading.
func sectionize(doc ast.Node, source []byte, totalLen int) []docSection {
	type open struct {
		level int
		title string
		idx   int // index into sections
	}

	sections := []docSection{{title: "", level: 0, start: 0, end: totalLen}}
	preambleIdx := 0
	var stack []open

	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		start, end, ok := nodeSpan(child, source)
		if !ok {
			continue
		}
		if h, isHeading := child.(*ast.Heading); isHeading {
			sections[preambleIdx].end = minInt(sections[preambleIdx].end, start)
			for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
				sections[stack[len(stack)-1].idx].end = start
				stack = stack[:len(stack)-1]
			}
			path := make([]string, 0, len(stack)+1)
			for _, o := range stack {
				path = append(path, o.title)
			}
			title := extractText(h, source)
			path = append(path, title)
			sections = append(sections, docSection{title: title, level: h.Level, headingPath: path, start: start, end: totalLen})
			stack = append(stack, open{level: h.Level, title: title, idx: len(sections) - 1})
		} else if len(stack) > 0 {
			sections[stack[len(stack)-1].idx].end = maxInt(sections[stack[len(stack)-1].idx].end, end)
		} else {
			sections[preambleIdx].end = maxInt(sections[preambleIdx].end, end)
		}
	}

	var out []docSection
	for _, s := range sections {
		if s.start < s.end {
			out = append(out, s)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// nodeSpan computes a node's byte span from its own Lines() (leaf blocks)
// or, for containers, the min/max span of its descendants.
func nodeSpan(node ast.Node, source []byte) (int, int, bool) {
	if hasLines, ok := node.(interface{ Lines() *gmtext.Segments }); ok {
		lines := hasLines.Lines()
		if lines.Len() > 0 {
			return lines.At(0).Start, lines.At(lines.Len() - 1).Stop, true
		}
	}
	start, end := -1, -1
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		cs, ce, ok := nodeSpan(child, source)
		if !ok {
			continue
		}
		if start == -1 || cs < start {
			start = cs
		}
		if ce > end {
			end = ce
		}
	}
	if start == -1 {
		return 0, 0, false
	}
	return start, end, true
}

func extractText(node ast.Node, source []byte) string {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		} else {
			sb.WriteString(extractText(child, source))
		}
	}
	return strings.TrimSpace(sb.String())
}

// collectCodeSpans finds every fenced or indented code block in the
// document, wherever it's nested, so callers can keep it atomic.
func collectCodeSpans(doc ast.Node, source []byte) []codeSpan2 {
	var spans []codeSpan2
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock:
			start, end, ok := nodeSpan(node, source)
			if ok {
				lang := string(node.Language(source))
				spans = append(spans, codeSpan2{start: start, end: end, lang: lang})
			}
		case *ast.CodeBlock:
			start, end, ok := nodeSpan(node, source)
			if ok {
				spans = append(spans, codeSpan2{start: start, end: end})
			}
		}
		return ast.WalkContinue, nil
	})
	return spans
}
