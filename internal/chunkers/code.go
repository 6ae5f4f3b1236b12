package chunkers

import (
	"context"
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	clang "github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

// chunkPointKinds is the per-language table from §4.2.4: the AST node kinds
// that mark a semantic chunk boundary (function, class, method, ...).
var chunkPointKinds = map[string]map[string]bool{
	"rust": set("function_item", "impl_item", "struct_item", "enum_item", "trait_item", "mod_item"),
	"python": set("function_definition", "class_definition", "decorated_definition"),
	"javascript": set("function_declaration", "class_declaration", "arrow_function", "method_definition"),
	"typescript": set("function_declaration", "class_declaration", "interface_declaration", "type_alias_declaration", "method_definition"),
	"go":         set("function_declaration", "method_declaration", "type_declaration"),
	"java":       set("class_declaration", "method_declaration", "interface_declaration"),
	"c":          set("function_definition", "struct_specifier"),
	"cpp":        set("function_definition", "struct_specifier", "class_specifier"),
	"ruby":       set("method", "class", "module"),
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// extByLang maps a supported language to its recognized file extensions,
// used for detection from metadata.path (§4.2.4).
var extByLang = map[string]string{
	".rs":   "rust",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".go":   "go",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".rb":   "ruby",
}

func languageOf(item chunk.SourceItem) string {
	if lang, ok := item.Metadata["language"].(string); ok && lang != "" {
		if _, known := chunkPointKinds[lang]; known {
			return lang
		}
	}
	if strings.HasPrefix(item.ContentType, "text/code:") {
		suffix := strings.TrimPrefix(item.ContentType, "text/code:")
		if _, known := chunkPointKinds[suffix]; known {
			return suffix
		}
	}
	if p, ok := item.Metadata["path"].(string); ok && p != "" {
		if lang, known := extByLang[strings.ToLower(path.Ext(p))]; known {
			return lang
		}
	}
	return ""
}

func sitterLanguage(lang string) *sitter.Language {
	switch lang {
	case "rust":
		return rust.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "go":
		return golang.GetLanguage()
	case "java":
		return java.GetLanguage()
	case "c":
		return clang.GetLanguage()
	case "cpp":
		return cpp.GetLanguage()
	case "ruby":
		return ruby.GetLanguage()
	default:
		return nil
	}
}

// codeSpan is a chunk-point node's extent plus the symbol metadata extracted
// from it, after leading-comment/decorator extension (§4.2.4 step 2).
type codeSpan struct {
	start, end int // byte offsets, extended span
	startLine  int // 1-indexed, extended span
	endLine    int
	symbolName string
	kind       string
	parent     string
	oversize   bool
}

// CodeChunker segments source code at language-specific semantic boundaries
// (functions, classes, methods, ...) using tree-sitter, falling back to
// RecursiveChunker when the language is unsupported or parsing fails
// (§4.2.4).
type CodeChunker struct {
	Tok       *tokenizer.Tokenizer
	Recursive *RecursiveChunker
}

func NewCodeChunker(tok *tokenizer.Tokenizer, recursive *RecursiveChunker) *CodeChunker {
	return &CodeChunker{Tok: tok, Recursive: recursive}
}

func (c *CodeChunker) Name() string { return "code" }

func (c *CodeChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	text := item.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lang := languageOf(item)

	var spans []codeSpan
	if len(item.Entities) > 0 {
		spans = c.spansFromEntities(item, text)
	} else if lang != "" {
		tsLang := sitterLanguage(lang)
		parsed, ok := c.parseSpans(text, tsLang, lang)
		if !ok {
			return c.fallback(item, cfg)
		}
		spans = parsed
	} else {
		return c.fallback(item, cfg)
	}

	if len(spans) == 0 {
		return c.fallback(item, cfg)
	}

	return c.pack(item, cfg, text, lang, spans)
}

func (c *CodeChunker) fallback(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	chunks, err := c.Recursive.Chunk(item, cfg)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		chunks[i].Metadata["code_fallback"] = true
	}
	return chunks, nil
}

// parseSpans runs tree-sitter over text and collects chunk-point spans in
// document order. ok is false on parse failure or an unsupported language,
// signaling the caller to degrade to RecursiveChunker.
func (c *CodeChunker) parseSpans(text string, tsLang *sitter.Language, lang string) ([]codeSpan, bool) {
	if tsLang == nil {
		return nil, false
	}
	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)
	defer parser.Close()

	src := []byte(text)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil, false
	}
	defer tree.Close()

	kinds := chunkPointKinds[lang]
	var raw []codeSpan
	walkChunkPoints(tree.RootNode(), src, kinds, lang, "", &raw)

	sort.Slice(raw, func(i, j int) bool { return raw[i].start < raw[j].start })

	lines := strings.Split(text, "\n")
	for i := range raw {
		extendLeadingComments(&raw[i], text, lines)
	}
	return raw, true
}

// walkChunkPoints recurses into the AST, emitting a codeSpan for every node
// whose type is a chunk-point kind for lang. It also descends into a matched
// node's children, so nested chunk points are emitted too, with the matched
// node's symbol name recorded as their parent.
func walkChunkPoints(node *sitter.Node, src []byte, kinds map[string]bool, lang, parent string, out *[]codeSpan) {
	if node == nil {
		return
	}
	nodeType := node.Type()
	if lang == "javascript" && nodeType == "arrow_function" && !arrowBoundToName(node) {
		// falls through to generic recursion below
	} else if kinds[nodeType] {
		span := codeSpan{
			start:      int(node.StartByte()),
			end:        int(node.EndByte()),
			startLine:  int(node.StartPoint().Row) + 1,
			endLine:    int(node.EndPoint().Row) + 1,
			symbolName: extractSymbolName(node, src),
			kind:       nodeType,
			parent:     parent,
		}
		*out = append(*out, span)
		newParent := span.symbolName
		if newParent == "" {
			newParent = parent
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walkChunkPoints(node.Child(i), src, kinds, lang, newParent, out)
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkChunkPoints(node.Child(i), src, kinds, lang, parent, out)
	}
}

// arrowBoundToName reports whether a javascript arrow_function is the
// right-hand side of a named variable_declarator (§4.2.4 "arrow_function
// bound to a name").
func arrowBoundToName(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Type() == "variable_declarator"
}

var identifierNodeTypes = map[string]bool{
	"identifier":           true,
	"property_identifier":  true,
	"type_identifier":      true,
	"field_identifier":     true,
	"constant":             true,
}

func extractSymbolName(node *sitter.Node, src []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(src)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if identifierNodeTypes[child.Type()] {
			return child.Content(src)
		}
	}
	return ""
}

// extendLeadingComments extends span's start upward over contiguous
// doc-comment/decorator lines immediately preceding its start line, with no
// blank-line gap (§4.2.4 step 2).
func extendLeadingComments(span *codeSpan, text string, lines []string) {
	line := span.startLine - 1 // 1-indexed number of the line before the span
	firstKept := span.startLine
	for line >= 1 {
		content := strings.TrimSpace(lines[line-1])
		if content == "" {
			break
		}
		if isCommentOrDecorator(content) {
			firstKept = line
			line--
			continue
		}
		break
	}
	if firstKept < span.startLine {
		span.startLine = firstKept
		span.start = byteOffsetOfLine(lines, firstKept)
	}
}

func isCommentOrDecorator(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "//"):
		return true
	case strings.HasPrefix(trimmed, "#"):
		return true
	case strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*") || strings.HasSuffix(trimmed, "*/"):
		return true
	case strings.HasPrefix(trimmed, "@"):
		return true
	case strings.HasPrefix(trimmed, "'''") || strings.HasPrefix(trimmed, `"""`):
		return true
	default:
		return false
	}
}

func byteOffsetOfLine(lines []string, lineNo int) int {
	offset := 0
	for i := 0; i < lineNo-1; i++ {
		offset += len(lines[i]) + 1
	}
	return offset
}

func (c *CodeChunker) spansFromEntities(item chunk.SourceItem, text string) []codeSpan {
	lines := strings.Split(text, "\n")
	var spans []codeSpan
	for _, e := range item.Entities {
		startLine := e.StartLine
		endLine := e.EndLine
		if startLine < 1 || endLine < startLine || endLine > len(lines) {
			continue
		}
		start := byteOffsetOfLine(lines, startLine)
		end := start
		for _, l := range lines[startLine-1 : endLine] {
			end += len(l) + 1
		}
		if end > len(text) {
			end = len(text)
		}
		span := codeSpan{
			start:      start,
			end:        end,
			startLine:  startLine,
			endLine:    endLine,
			symbolName: e.Name,
			kind:       e.Kind,
		}
		extendLeadingComments(&span, text, lines)
		spans = append(spans, span)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// pack greedy-packs chunk-point spans into chunk_size-bounded chunks,
// emitting glue chunks (via RecursiveChunker) for the text between spans
// (§4.2.4 steps 3-4).
func (c *CodeChunker) pack(item chunk.SourceItem, cfg chunk.Config, text, lang string, spans []codeSpan) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}

	var chunks []chunk.Chunk
	index := 0
	cursor := 0

	glue := func(from, to int) error {
		if from >= to {
			return nil
		}
		glueText := text[from:to]
		if strings.TrimSpace(glueText) == "" {
			return nil
		}
		glueItem := item
		glueItem.Content = glueText
		sub, err := c.Recursive.Chunk(glueItem, cfg)
		if err != nil {
			return err
		}
		for _, s := range sub {
			s.StartIndex += from
			s.EndIndex += from
			s.ChunkIndex = index
			if s.Metadata == nil {
				s.Metadata = make(map[string]any)
			}
			s.Metadata["glue"] = true
			if lang != "" {
				s.Metadata["language"] = lang
			}
			if p, ok := item.Metadata["path"].(string); ok {
				s.Metadata["path"] = p
			}
			startLine := 1 + strings.Count(text[:s.StartIndex], "\n")
			endLine := startLine + strings.Count(strings.TrimRight(s.Content, "\n"), "\n")
			s.Metadata["line_range"] = [2]int{startLine, endLine}
			// RecursiveChunker.Chunk assigns s.ID via a fresh uuid; re-key it
			// onto a content-addressed ID so CodeChunker's output stays
			// deterministic end to end (§8 property 4).
			s.ID = deterministicContentID(item.ID, s.StartIndex, s.EndIndex, s.Content)
			chunks = append(chunks, s)
			index++
		}
		return nil
	}

	// emitOversize flushes a single span too large to pack with neighbors as
	// its own chunk, with the optional line-level fallback alternates.
	emitOversize := func(span codeSpan, spanText string) {
		extra := map[string]any{
			"line_range": [2]int{span.startLine, span.endLine},
			"oversize":   true,
		}
		if lang != "" {
			extra["language"] = lang
		}
		if p, ok := item.Metadata["path"].(string); ok {
			extra["path"] = p
		}
		if span.symbolName != "" {
			extra["symbol_name"] = span.symbolName
		}
		if span.parent != "" {
			extra["parent_symbol"] = span.parent
		}
		chunks = append(chunks, b.makeDeterministic(index, spanText, span.start, span.end, extra))
		index++
		if cfg.AllowOversizeLineFallback {
			for _, alt := range lineFallbackSplit(text, span, size, c.Tok) {
				altExtra := make(map[string]any, len(extra)+1)
				for k, v := range extra {
					altExtra[k] = v
				}
				altExtra["alternative"] = true
				chunks = append(chunks, b.makeDeterministic(index, alt.text, alt.start, alt.end, altExtra))
				index++
			}
		}
	}

	// emitGroup packs one or more consecutive, individually-small spans into
	// a single chunk spanning from the first span's start to the last
	// span's end (§4.2.4 step 3 "greedy-pack consecutive spans").
	emitGroup := func(group []codeSpan) {
		if len(group) == 0 {
			return
		}
		start, end := group[0].start, group[len(group)-1].end
		extra := map[string]any{
			"line_range": [2]int{group[0].startLine, group[len(group)-1].endLine},
		}
		if lang != "" {
			extra["language"] = lang
		}
		if p, ok := item.Metadata["path"].(string); ok {
			extra["path"] = p
		}
		if len(group) == 1 {
			if group[0].symbolName != "" {
				extra["symbol_name"] = group[0].symbolName
			}
			if group[0].parent != "" {
				extra["parent_symbol"] = group[0].parent
			}
		} else {
			var symbols []map[string]any
			for _, s := range group {
				if s.symbolName == "" {
					continue
				}
				symbols = append(symbols, map[string]any{
					"symbol_name":   s.symbolName,
					"parent_symbol": s.parent,
					"line_range":    [2]int{s.startLine, s.endLine},
				})
			}
			if len(symbols) > 0 {
				extra["symbols"] = symbols
			}
		}
		chunks = append(chunks, b.makeDeterministic(index, text[start:end], start, end, extra))
		index++
	}

	var group []codeSpan
	flushGroup := func() error {
		if len(group) == 0 {
			return nil
		}
		if group[0].start > cursor {
			if err := glue(cursor, group[0].start); err != nil {
				return err
			}
		}
		emitGroup(group)
		cursor = group[len(group)-1].end
		group = nil
		return nil
	}

	for _, span := range spans {
		spanText := text[span.start:span.end]
		if c.Tok.Count(spanText) > size {
			if err := flushGroup(); err != nil {
				return nil, err
			}
			if span.start > cursor {
				if err := glue(cursor, span.start); err != nil {
					return nil, err
				}
			}
			emitOversize(span, spanText)
			cursor = span.end
			continue
		}

		if len(group) == 0 {
			group = append(group, span)
			continue
		}
		combined := text[group[0].start:span.end]
		if c.Tok.Count(combined) <= size {
			group = append(group, span)
			continue
		}
		if err := flushGroup(); err != nil {
			return nil, err
		}
		group = append(group, span)
	}
	if err := flushGroup(); err != nil {
		return nil, err
	}
	if cursor < len(text) {
		if err := glue(cursor, len(text)); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// lineFallbackSplit breaks an oversize span into line-bounded windows that
// each fit within size tokens (§4.2.4 step 3, opt-in alternative chunks).
func lineFallbackSplit(text string, span codeSpan, size int, tok *tokenizer.Tokenizer) []window {
	spanText := text[span.start:span.end]
	lines := strings.SplitAfter(spanText, "\n")
	var out []window
	offset := span.start
	start := offset
	var buf strings.Builder
	flush := func(end int) {
		if buf.Len() == 0 {
			return
		}
		out = append(out, window{text: buf.String(), start: start, end: end})
		buf.Reset()
	}
	for _, l := range lines {
		if buf.Len() > 0 && tok.Count(buf.String()+l) > size {
			flush(offset)
			start = offset
		}
		buf.WriteString(l)
		offset += len(l)
	}
	flush(offset)
	return out
}
