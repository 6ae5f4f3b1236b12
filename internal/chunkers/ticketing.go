package chunkers

import (
	"encoding/json"
	"strings"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

type ticketComment struct {
	author string
	text   string
}

type ticketPayload struct {
	Title       string `json:"title"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
	Comments    []struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	} `json:"comments"`
}

type parsedTicket struct {
	title       string
	status      string
	priority    string
	description string
	comments    []ticketComment
}

// TicketingChunker parses a structured ticket into a description chunk plus
// one chunk per comment (or packed comment windows), per §4.2.7.
type TicketingChunker struct {
	Tok       *tokenizer.Tokenizer
	Recursive *RecursiveChunker
}

func NewTicketingChunker(tok *tokenizer.Tokenizer, recursive *RecursiveChunker) *TicketingChunker {
	return &TicketingChunker{Tok: tok, Recursive: recursive}
}

func (c *TicketingChunker) Name() string { return "ticketing" }

func (c *TicketingChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	text := item.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var t parsedTicket
	if item.ContentType == "application/json" || strings.HasPrefix(strings.TrimSpace(text), "{") {
		parsed, err := parseJSONTicket(text)
		if err != nil {
			t = parsePlainTicket(text)
		} else {
			t = parsed
		}
	} else {
		t = parsePlainTicket(text)
	}

	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}

	var chunks []chunk.Chunk
	index := 0

	header := t.title
	if t.status != "" {
		header += "\nStatus: " + t.status
	}
	if t.priority != "" {
		header += "\nPriority: " + t.priority
	}
	descBody := strings.TrimSpace(header + "\n\n" + t.description)

	if c.Tok.Count(descBody) <= size {
		chunks = append(chunks, b.make(index, descBody, 0, len(descBody), map[string]any{
			"content_type": "description",
		}))
		index++
	} else {
		descItem := item
		descItem.Content = descBody
		sub, err := c.Recursive.Chunk(descItem, cfg)
		if err != nil {
			return nil, err
		}
		for _, s := range sub {
			if s.Metadata == nil {
				s.Metadata = make(map[string]any)
			}
			s.Metadata["content_type"] = "description"
			s.ChunkIndex = index
			chunks = append(chunks, s)
			index++
		}
	}

	overlap := effectiveOverlap(size, cfg.ChunkOverlap)
	var window []ticketComment
	windowTokens := 0

	render := func(comments []ticketComment) string {
		var sb strings.Builder
		for i, cm := range comments {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- ")
			sb.WriteString(cm.author)
			sb.WriteString(": ")
			sb.WriteString(cm.text)
		}
		return sb.String()
	}

	emit := func() {
		if len(window) == 0 {
			return
		}
		rendered := render(window)
		chunks = append(chunks, b.make(index, rendered, 0, len(rendered), map[string]any{
			"content_type": "comment",
			"author":       window[0].author,
		}))
		index++
	}

	for _, cm := range t.comments {
		cmTokens := c.Tok.Count(cm.author + ": " + cm.text)
		if len(window) > 0 && windowTokens+cmTokens > size {
			emit()
			var carried []ticketComment
			carriedTokens := 0
			for i := len(window) - 1; i >= 0; i-- {
				ct := c.Tok.Count(window[i].author + ": " + window[i].text)
				if carriedTokens+ct > overlap && len(carried) > 0 {
					break
				}
				carried = append([]ticketComment{window[i]}, carried...)
				carriedTokens += ct
			}
			window = carried
			windowTokens = carriedTokens
		}
		window = append(window, cm)
		windowTokens += cmTokens
	}
	emit()

	return chunks, nil
}

func parseJSONTicket(text string) (parsedTicket, error) {
	var payload ticketPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return parsedTicket{}, err
	}
	t := parsedTicket{
		title:       payload.Title,
		status:      payload.Status,
		priority:    payload.Priority,
		description: payload.Description,
	}
	for _, cm := range payload.Comments {
		t.comments = append(t.comments, ticketComment{author: cm.Author, text: cm.Text})
	}
	return t, nil
}

// parsePlainTicket parses the labelled plain-text ticket layout from §4.2.7:
// Title:/Status:/Priority:/Description:/Comments: sections, comments
// introduced by "- <author>: ".
func parsePlainTicket(text string) parsedTicket {
	var t parsedTicket
	lines := strings.Split(text, "\n")
	section := ""
	var descLines, commentLines []string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "Title:"):
			t.title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
			section = ""
		case strings.HasPrefix(line, "Status:"):
			t.status = strings.TrimSpace(strings.TrimPrefix(line, "Status:"))
			section = ""
		case strings.HasPrefix(line, "Priority:"):
			t.priority = strings.TrimSpace(strings.TrimPrefix(line, "Priority:"))
			section = ""
		case strings.HasPrefix(line, "Description:"):
			section = "description"
			rest := strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
			if rest != "" {
				descLines = append(descLines, rest)
			}
		case strings.HasPrefix(line, "Comments:"):
			section = "comments"
		default:
			switch section {
			case "description":
				descLines = append(descLines, line)
			case "comments":
				commentLines = append(commentLines, line)
			}
		}
	}
	t.description = strings.TrimSpace(strings.Join(descLines, "\n"))

	var current *ticketComment
	for _, line := range commentLines {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			if current != nil {
				t.comments = append(t.comments, *current)
			}
			rest := strings.TrimPrefix(strings.TrimSpace(line), "- ")
			if idx := strings.Index(rest, ":"); idx != -1 {
				current = &ticketComment{author: strings.TrimSpace(rest[:idx]), text: strings.TrimSpace(rest[idx+1:])}
			} else {
				current = &ticketComment{author: "", text: rest}
			}
		} else if current != nil {
			current.text += "\n" + line
		}
	}
	if current != nil {
		t.comments = append(t.comments, *current)
	}
	return t
}
