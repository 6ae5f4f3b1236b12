// Package chunk defines the data model shared by every chunking strategy,
// the router, and the job processor: source items, produced chunks, chunking
// configuration, and chunking profiles.
package chunk

import "time"

// SourceKind identifies the kind of system a SourceItem originated from.
type SourceKind string

const (
	SourceCodeRepo SourceKind = "code_repo"
	SourceDocument SourceKind = "document"
	SourceWiki     SourceKind = "wiki"
	SourceChat     SourceKind = "chat"
	SourceTicket   SourceKind = "ticketing"
	SourceEmail    SourceKind = "email"
	SourceWeb      SourceKind = "web"
	SourceOther    SourceKind = "other"
)

// SourceItem is one unit of raw text submitted for chunking.
type SourceItem struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	SourceKind  SourceKind     `json:"source_kind"`
	ContentType string         `json:"content_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`

	// Entities carries caller-supplied symbol hints (§4.2.4 "entity hint
	// path"); when present they override parser-derived chunk-point nodes
	// in the CodeChunker.
	Entities []Entity `json:"entities,omitempty"`
}

// Entity is a caller-supplied code symbol hint.
type Entity struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Chunk is a bounded, contiguous slice of a SourceItem's content plus
// positional, token-count, and semantic metadata.
type Chunk struct {
	ID           string         `json:"id"`
	SourceItemID string         `json:"source_item_id"`
	SourceID     string         `json:"source_id"`
	SourceKind   SourceKind     `json:"source_kind"`
	Content      string         `json:"content"`
	TokenCount   int            `json:"token_count"`
	StartIndex   int            `json:"start_index"`
	EndIndex     int            `json:"end_index"`
	ChunkIndex   int            `json:"chunk_index"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SymbolKind enumerates code-construct kinds recognized by the CodeChunker.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolClass     SymbolKind = "class"
	SymbolStruct    SymbolKind = "struct"
	SymbolEnum      SymbolKind = "enum"
	SymbolInterface SymbolKind = "interface"
	SymbolTrait     SymbolKind = "trait"
	SymbolType      SymbolKind = "type"
	SymbolModule    SymbolKind = "module"
)

// Symbol describes a code-path chunk-point node.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Parent    *string    `json:"parent,omitempty"`
}

// Config bounds a chunking run.
type Config struct {
	ChunkSize           int `json:"chunk_size"`
	ChunkOverlap        int `json:"chunk_overlap"`
	MinCharsPerSentence int `json:"min_chars_per_sentence"`

	// Strategy optionally forces a specific chunker name, bypassing the
	// router's decision table (§4.3 "A caller-supplied explicit strategy
	// name overrides the table").
	Strategy string `json:"strategy,omitempty"`

	// AllowOversizeLineFallback, when true, makes the CodeChunker additionally
	// record a line-level fallback split of an oversize span as alternative
	// chunks alongside the atomic chunk (§4.2.4 step 3). Off by default: the
	// atomic chunk alone is emitted.
	AllowOversizeLineFallback bool `json:"allow_oversize_line_fallback,omitempty"`
}

// Profile is a named, reusable Config.
type Profile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      Config `json:"config"`
}
