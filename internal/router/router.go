// Package router maps a SourceItem to the chunker that should process it,
// following the ordered decision table in spec §4.3.
package router

import (
	"strings"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/chunkers"
)

// Registry holds one instance of every chunker the router can dispatch to.
// Chunkers are stateless beyond their shared tokenizer reference, so one
// instance is reused across all jobs and workers.
type Registry struct {
	Token     chunkers.Chunker
	Sentence  chunkers.Chunker
	Recursive chunkers.Chunker
	Code      chunkers.Chunker
	Document  chunkers.Chunker
	Chat      chunkers.Chunker
	Ticketing chunkers.Chunker
	Table     chunkers.Chunker
	Agentic   chunkers.Chunker

	// WebHTML handles the web/html router rule (HTML-to-text pre-step
	// ahead of Recursive); it shares Recursive's strategy name since it's
	// the same strategy with a content pre-step, not a distinct override
	// target.
	WebHTML chunkers.Chunker
}

// ByName looks up a chunker by its explicit strategy name (§4.3 "a
// caller-supplied explicit strategy name overrides the table").
func (r *Registry) ByName(name string) (chunkers.Chunker, bool) {
	for _, c := range r.all() {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

func (r *Registry) all() []chunkers.Chunker {
	return []chunkers.Chunker{
		r.Token, r.Sentence, r.Recursive, r.Code, r.Document,
		r.Chat, r.Ticketing, r.Table, r.Agentic,
	}
}

// Route selects the chunker for an item per the decision table in §4.3. An
// explicit cfg.Strategy always wins; otherwise the table is consulted in
// order and the first matching rule applies.
func Route(r *Registry, item chunk.SourceItem, cfg chunk.Config) chunkers.Chunker {
	if cfg.Strategy != "" {
		if c, ok := r.ByName(cfg.Strategy); ok {
			return c
		}
	}

	switch {
	case item.SourceKind == chunk.SourceCodeRepo || strings.HasPrefix(item.ContentType, "text/code:"):
		return r.Code
	case item.SourceKind == chunk.SourceDocument || item.SourceKind == chunk.SourceWiki ||
		item.ContentType == "text/markdown" || item.ContentType == "text/x-markdown":
		return r.Document
	case item.SourceKind == chunk.SourceChat || item.SourceKind == chunk.SourceEmail:
		return r.Chat
	case item.SourceKind == chunk.SourceTicket:
		return r.Ticketing
	case item.ContentType == "text/csv" || looksLikeTable(item.Content):
		return r.Table
	case item.SourceKind == chunk.SourceWeb || item.ContentType == "text/html":
		return r.WebHTML
	default:
		return r.Sentence
	}
}

// looksLikeTable detects a markdown table marker (header + separator row)
// at the head of the content (§4.3 rule 5).
func looksLikeTable(content string) bool {
	lines := strings.SplitN(content, "\n", 4)
	for i := 0; i < len(lines)-1; i++ {
		if strings.Contains(lines[i], "|") && markdownSeparatorLine(lines[i+1]) {
			return true
		}
	}
	return false
}

func markdownSeparatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	cells := strings.Split(trimmed, "|")
	if len(cells) == 0 {
		return false
	}
	for _, cell := range cells {
		c := strings.TrimSpace(cell)
		c = strings.TrimPrefix(c, ":")
		c = strings.TrimSuffix(c, ":")
		if c == "" || strings.Trim(c, "-") != "" {
			return false
		}
	}
	return true
}
