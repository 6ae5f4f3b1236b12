package chunkers

import (
	"encoding/csv"
	"regexp"
	"strings"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

var markdownSeparatorRow = regexp.MustCompile(`^\s*\|?\s*:?-{2,}:?\s*(\|\s*:?-{2,}:?\s*)*\|?\s*$`)

// TableChunker emits header-carrying, row-budgeted chunks from a markdown
// table or CSV document (§4.2.8).
type TableChunker struct {
	Tok *tokenizer.Tokenizer
}

func NewTableChunker(tok *tokenizer.Tokenizer) *TableChunker {
	return &TableChunker{Tok: tok}
}

func (c *TableChunker) Name() string { return "table" }

func (c *TableChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	text := item.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if item.ContentType == "text/csv" {
		return c.chunkRows(item, cfg, parseCSVRows(text))
	}
	if header, rows, ok := parseMarkdownTable(text); ok {
		return c.chunkMarkdownTable(item, cfg, header, rows)
	}
	return c.chunkRows(item, cfg, parseCSVRows(text))
}

// tableRow is one data row's parsed fields plus its original byte span in
// item.content (§3 "for synthesized content ... start_index refers to the
// first original byte covered").
type tableRow struct {
	fields     []string
	start, end int
}

// rowSet is a CSV-style parsed table: one header row plus data rows.
type rowSet struct {
	header []string
	rows   []tableRow
}

// lineOffsets returns, for each line of text split on "\n", the byte offset
// of its first byte within text.
func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines))
	cursor := 0
	for i, l := range lines {
		offsets[i] = cursor
		cursor += len(l) + 1
	}
	return offsets
}

func parseCSVLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err != nil {
		return nil
	}
	return rec
}

func parseCSVRows(text string) rowSet {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return rowSet{}
	}
	offsets := lineOffsets(lines)

	header := parseCSVLine(lines[0])
	if header == nil {
		return rowSet{}
	}
	var rows []tableRow
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		fields := parseCSVLine(lines[i])
		if fields == nil {
			continue
		}
		rows = append(rows, tableRow{fields: fields, start: offsets[i], end: offsets[i] + len(lines[i])})
	}
	return rowSet{header: header, rows: rows}
}

func (c *TableChunker) chunkRows(item chunk.SourceItem, cfg chunk.Config, rs rowSet) ([]chunk.Chunk, error) {
	if len(rs.header) == 0 {
		return nil, nil
	}
	b := newBuilder(c.Tok, item)
	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := effectiveOverlap(size, cfg.ChunkOverlap)

	headerLine := strings.Join(rs.header, ",")
	headerTokens := c.Tok.Count(headerLine)

	var chunks []chunk.Chunk
	index := 0
	var window []tableRow
	windowTokens := headerTokens

	render := func(rows []tableRow) string {
		var sb strings.Builder
		sb.WriteString(headerLine)
		for _, row := range rows {
			sb.WriteString("\n")
			sb.WriteString(strings.Join(row.fields, ","))
		}
		return sb.String()
	}

	emit := func() {
		if len(window) == 0 {
			return
		}
		rendered := render(window)
		chunks = append(chunks, b.make(index, rendered, window[0].start, window[len(window)-1].end, map[string]any{
			"row_count": len(window),
		}))
		index++
	}

	rowTokens := func(row tableRow) int { return c.Tok.Count(strings.Join(row.fields, ",")) }

	for _, row := range rs.rows {
		rTokens := rowTokens(row)
		if len(window) > 0 && windowTokens+rTokens > size {
			emit()
			var carried []tableRow
			carriedTokens := headerTokens
			for i := len(window) - 1; i >= 0; i-- {
				t := rowTokens(window[i])
				if carriedTokens-headerTokens+t > overlap && len(carried) > 0 {
					break
				}
				carried = append([]tableRow{window[i]}, carried...)
				carriedTokens += t
			}
			window = carried
			windowTokens = carriedTokens
		}
		window = append(window, row)
		windowTokens += rTokens
	}
	emit()

	return chunks, nil
}

// parseMarkdownTable detects the first markdown table (header row + `---`
// separator row) anywhere in the text and returns its parsed cells.
func parseMarkdownTable(text string) ([]string, []tableRow, bool) {
	lines := strings.Split(text, "\n")
	offsets := lineOffsets(lines)

	headerIdx := -1
	for i := 0; i < len(lines)-1; i++ {
		if !strings.Contains(lines[i], "|") {
			continue
		}
		if markdownSeparatorRow.MatchString(lines[i+1]) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, nil, false
	}
	header := splitMarkdownRow(lines[headerIdx])
	var rows []tableRow
	for i := headerIdx + 2; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" || !strings.Contains(line, "|") {
			continue
		}
		rows = append(rows, tableRow{fields: splitMarkdownRow(line), start: offsets[i], end: offsets[i] + len(line)})
	}
	return header, rows, true
}

func splitMarkdownRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (c *TableChunker) chunkMarkdownTable(item chunk.SourceItem, cfg chunk.Config, header []string, rows []tableRow) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := effectiveOverlap(size, cfg.ChunkOverlap)

	headerLine := "| " + strings.Join(header, " | ") + " |"
	sepCells := make([]string, len(header))
	for i := range sepCells {
		sepCells[i] = "---"
	}
	sepLine := "| " + strings.Join(sepCells, " | ") + " |"
	headerBlock := headerLine + "\n" + sepLine
	headerTokens := c.Tok.Count(headerBlock)

	rowLine := func(row tableRow) string { return "| " + strings.Join(row.fields, " | ") + " |" }

	var chunks []chunk.Chunk
	index := 0
	var window []tableRow
	windowTokens := headerTokens

	render := func(rows []tableRow) string {
		var sb strings.Builder
		sb.WriteString(headerBlock)
		for _, row := range rows {
			sb.WriteString("\n")
			sb.WriteString(rowLine(row))
		}
		return sb.String()
	}

	emit := func() {
		if len(window) == 0 {
			return
		}
		rendered := render(window)
		chunks = append(chunks, b.make(index, rendered, window[0].start, window[len(window)-1].end, map[string]any{
			"row_count": len(window),
		}))
		index++
	}

	for _, row := range rows {
		rTokens := c.Tok.Count(rowLine(row))
		if len(window) > 0 && windowTokens+rTokens > size {
			emit()
			var carried []tableRow
			carriedTokens := headerTokens
			for i := len(window) - 1; i >= 0; i-- {
				t := c.Tok.Count(rowLine(window[i]))
				if carriedTokens-headerTokens+t > overlap && len(carried) > 0 {
					break
				}
				carried = append([]tableRow{window[i]}, carried...)
				carriedTokens += t
			}
			window = carried
			windowTokens = carriedTokens
		}
		window = append(window, row)
		windowTokens += rTokens
	}
	emit()

	return chunks, nil
}
