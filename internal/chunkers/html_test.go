package chunkers

import (
	"testing"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

func TestHTMLToTextDropsScriptAndStyle(t *testing.T) {
	source := `<html><head><style>body{color:red}</style></head><body><script>alert(1)</script><h1>Welcome</h1><p>Hello world.</p></body></html>`
	out := htmlToText(source)
	if contains(out, "color:red") || contains(out, "alert(1)") {
		t.Errorf("expected script/style content dropped, got %q", out)
	}
	if !contains(out, "Welcome") || !contains(out, "Hello world.") {
		t.Errorf("expected heading and paragraph text preserved, got %q", out)
	}
}

func TestHTMLChunkerDelegatesToRecursive(t *testing.T) {
	tok := tokenizer.New()
	rec := NewRecursiveChunker(tok)
	c := NewHTMLChunker(tok, rec)
	item := testItem(`<html><body><h1>Title</h1><p>Some paragraph text here.</p></body></html>`)
	cfg := chunk.Config{ChunkSize: 50, ChunkOverlap: 0}

	chunks, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if c.Name() != "recursive" {
		t.Errorf("expected HTMLChunker.Name() to report 'recursive', got %q", c.Name())
	}
}
