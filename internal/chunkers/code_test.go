package chunkers

import (
	"testing"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

func codeItem(content, path string) chunk.SourceItem {
	return chunk.SourceItem{
		ID:       "item1",
		SourceID: "src1",
		Content:  content,
		Metadata: map[string]any{"path": path},
	}
}

const goSample = `package sample

// Add sums two ints.
func Add(a, b int) int {
	return a + b
}

// Multiply multiplies two ints.
func Multiply(a, b int) int {
	return a * b
}
`

func TestCodeChunkerSymbolExtraction(t *testing.T) {
	tok := tokenizer.New()
	rec := NewRecursiveChunker(tok)
	c := NewCodeChunker(tok, rec)
	item := codeItem(goSample, "sample.go")
	cfg := chunk.Config{ChunkSize: 200, ChunkOverlap: 0}

	chunks, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	// Add and Multiply are both tiny, so the chunk_size=200 bound packs them
	// into a single chunk (§4.2.4 step 3): look for their names across
	// either a lone symbol_name or a packed symbols list.
	var found []string
	for _, ch := range chunks {
		if lang, ok := ch.Metadata["language"].(string); ok && lang != "go" {
			t.Errorf("chunk has language %v, want go", ch.Metadata["language"])
		}
		if _, ok := ch.Metadata["line_range"]; !ok {
			t.Errorf("chunk missing line_range metadata: %+v", ch.Metadata)
		}
		if name, ok := ch.Metadata["symbol_name"].(string); ok {
			found = append(found, name)
		}
		if symbols, ok := ch.Metadata["symbols"].([]map[string]any); ok {
			for _, s := range symbols {
				if name, ok := s["symbol_name"].(string); ok {
					found = append(found, name)
				}
			}
		}
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 symbols found (Add, Multiply), got %d: %v", len(found), found)
	}
}

func TestCodeChunkerLeadingCommentExtension(t *testing.T) {
	tok := tokenizer.New()
	rec := NewRecursiveChunker(tok)
	c := NewCodeChunker(tok, rec)
	item := codeItem(goSample, "sample.go")
	cfg := chunk.Config{ChunkSize: 200, ChunkOverlap: 0}

	chunks, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	for _, ch := range chunks {
		if !holdsSymbol(ch, "Add") {
			continue
		}
		if !contains(ch.Content, "// Add sums two ints.") {
			t.Errorf("expected Add's chunk to include its leading doc comment, got %q", ch.Content)
		}
	}
}

// holdsSymbol reports whether ch carries the named symbol, either as a lone
// symbol_name or within a packed symbols list (§4.2.4 step 3).
func holdsSymbol(ch chunk.Chunk, name string) bool {
	if ch.Metadata["symbol_name"] == name {
		return true
	}
	if symbols, ok := ch.Metadata["symbols"].([]map[string]any); ok {
		for _, s := range symbols {
			if s["symbol_name"] == name {
				return true
			}
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestCodeChunkerDeterministicIDs(t *testing.T) {
	tok := tokenizer.New()
	rec := NewRecursiveChunker(tok)
	c := NewCodeChunker(tok, rec)
	item := codeItem(goSample, "sample.go")
	cfg := chunk.Config{ChunkSize: 200, ChunkOverlap: 0}

	a, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	b, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected stable chunk count, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("chunk %d ID not deterministic: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestCodeChunkerFallbackOnUnknownLanguage(t *testing.T) {
	tok := tokenizer.New()
	rec := NewRecursiveChunker(tok)
	c := NewCodeChunker(tok, rec)
	item := codeItem("some opaque content that is not parseable as any known language construct", "sample.unknownext")
	cfg := chunk.Config{ChunkSize: 50, ChunkOverlap: 0}

	chunks, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected fallback chunks for an unsupported language")
	}
	for _, ch := range chunks {
		if ok, _ := ch.Metadata["code_fallback"].(bool); !ok {
			t.Errorf("expected code_fallback=true on fallback chunk, got %+v", ch.Metadata)
		}
	}
}

func TestCodeChunkerEntityHintOverride(t *testing.T) {
	tok := tokenizer.New()
	rec := NewRecursiveChunker(tok)
	c := NewCodeChunker(tok, rec)
	item := codeItem(goSample, "sample.go")
	item.Entities = []chunk.Entity{
		{Name: "Add", Kind: "function", StartLine: 4, EndLine: 6},
	}
	cfg := chunk.Config{ChunkSize: 200, ChunkOverlap: 0}

	chunks, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	found := false
	for _, ch := range chunks {
		if ch.Metadata["symbol_name"] == "Add" {
			found = true
		}
	}
	if !found {
		t.Error("expected entity-hinted symbol Add to appear in output")
	}
}

func TestCodeChunkerEmptyContent(t *testing.T) {
	tok := tokenizer.New()
	rec := NewRecursiveChunker(tok)
	c := NewCodeChunker(tok, rec)
	chunks, err := c.Chunk(codeItem("", "sample.go"), chunk.Config{ChunkSize: 50})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty content, got %d", len(chunks))
	}
}
