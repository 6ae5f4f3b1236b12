package chunkers

import (
	"testing"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

func TestChatChunkerPlainTextWindowing(t *testing.T) {
	tok := tokenizer.New()
	c := NewChatChunker(tok)
	item := testItem("alice: hello there, how is everyone doing today\nbob: pretty good thanks for asking\nalice: great to hear that from you\nbob: same time next week works for me")
	cfg := chunk.Config{ChunkSize: 12, ChunkOverlap: 3}

	chunks, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple windows, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if _, ok := ch.Metadata["author"]; !ok {
			t.Errorf("chunk %d missing author metadata", i)
		}
		if _, ok := ch.Metadata["speakers"]; !ok {
			t.Errorf("chunk %d missing speakers metadata", i)
		}
		if _, ok := ch.Metadata["thread_id"]; !ok {
			t.Errorf("chunk %d missing thread_id metadata", i)
		}
	}
}

func TestChatChunkerJSONPayload(t *testing.T) {
	tok := tokenizer.New()
	c := NewChatChunker(tok)
	item := chunk.SourceItem{
		ID:          "item1",
		SourceID:    "src1",
		ContentType: "application/json",
		Content:     `{"channel":"general","messages":[{"user":"alice","text":"hi","ts":"1"},{"user":"bob","text":"hello","ts":"2"}]}`,
	}
	cfg := chunk.Config{ChunkSize: 100, ChunkOverlap: 0}

	chunks, err := c.Chunk(item, cfg)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected both short messages packed into one window, got %d", len(chunks))
	}
	if !contains(chunks[0].Content, "alice: hi") || !contains(chunks[0].Content, "bob: hello") {
		t.Errorf("expected both messages rendered in the chunk, got %q", chunks[0].Content)
	}
	if chunks[0].EndIndex > len(item.Content) {
		t.Errorf("end_index %d exceeds len(content) %d", chunks[0].EndIndex, len(item.Content))
	}
}

func TestChatChunkerEmptyContent(t *testing.T) {
	tok := tokenizer.New()
	c := NewChatChunker(tok)
	chunks, err := c.Chunk(testItem(""), chunk.Config{ChunkSize: 10})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty content, got %d", len(chunks))
	}
}
