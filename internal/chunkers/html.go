package chunkers

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

var skippedHTMLTags = map[string]bool{"script": true, "style": true}
var headingHTMLTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

// HTMLChunker strips HTML markup to plain text (dropping script/style,
// keeping heading text) then delegates to RecursiveChunker, per the
// router's web/html rule (§4.3 rule 6).
type HTMLChunker struct {
	Tok       *tokenizer.Tokenizer
	Recursive *RecursiveChunker
}

func NewHTMLChunker(tok *tokenizer.Tokenizer, recursive *RecursiveChunker) *HTMLChunker {
	return &HTMLChunker{Tok: tok, Recursive: recursive}
}

func (c *HTMLChunker) Name() string { return "recursive" }

func (c *HTMLChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	plain := htmlToText(item.Content)
	textItem := item
	textItem.Content = plain
	return c.Recursive.Chunk(textItem, cfg)
}

// htmlToText walks the parsed document, emitting heading text on its own
// line and dropping script/style subtrees entirely.
func htmlToText(source string) string {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return source
	}
	var sb strings.Builder
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode && skippedHTMLTags[n.Data] {
			return
		}
		nextSkip := skip
		isHeading := n.Type == html.ElementNode && headingHTMLTags[n.Data]
		if n.Type == html.TextNode && !skip {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		if isHeading {
			sb.WriteString("\n\n")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, nextSkip)
		}
		if isHeading {
			sb.WriteString("\n\n")
		}
	}
	walk(doc, false)
	return strings.TrimSpace(sb.String())
}
