package chunkers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/tokenizer"
)

// chatMessage is one parsed message, regardless of source encoding.
type chatMessage struct {
	speaker string
	text    string
	ts      string
	start   int // byte offset of the message's rendered form within item.Content
	end     int
}

type chatPayload struct {
	Channel  string            `json:"channel"`
	Messages []json.RawMessage `json:"messages"`
}

type chatPayloadMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

// ChatChunker groups chat/email messages into token-budgeted conversation
// windows, carrying a trailing-message overlap into the next window
// (§4.2.6).
type ChatChunker struct {
	Tok *tokenizer.Tokenizer
}

func NewChatChunker(tok *tokenizer.Tokenizer) *ChatChunker {
	return &ChatChunker{Tok: tok}
}

func (c *ChatChunker) Name() string { return "chat" }

func (c *ChatChunker) Chunk(item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	b := newBuilder(c.Tok, item)
	text := item.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var messages []chatMessage
	if item.ContentType == "application/json" || strings.HasPrefix(strings.TrimSpace(text), "{") {
		parsed, err := parseJSONChat(text)
		if err != nil {
			messages = parsePlainChat(text)
		} else {
			messages = parsed
		}
	} else {
		messages = parsePlainChat(text)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	size := cfg.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := effectiveOverlap(size, cfg.ChunkOverlap)

	var chunks []chunk.Chunk
	index := 0
	var window []chatMessage
	windowTokens := 0

	render := func(msgs []chatMessage) string {
		var sb strings.Builder
		for i, m := range msgs {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(m.speaker)
			sb.WriteString(": ")
			sb.WriteString(m.text)
		}
		return sb.String()
	}

	emit := func() {
		if len(window) == 0 {
			return
		}
		rendered := render(window)
		speakers := make([]string, 0, len(window))
		seen := map[string]bool{}
		for _, m := range window {
			if !seen[m.speaker] {
				seen[m.speaker] = true
				speakers = append(speakers, m.speaker)
			}
		}
		extra := map[string]any{
			"author":        window[0].speaker,
			"thread_id":     threadID(window[0]),
			"speakers":      speakers,
			"timestamp_min": window[0].ts,
			"timestamp_max": window[len(window)-1].ts,
		}
		chunks = append(chunks, b.make(index, rendered, window[0].start, window[len(window)-1].end, extra))
		index++
	}

	for _, m := range messages {
		mTokens := c.Tok.Count(m.speaker + ": " + m.text)
		if len(window) > 0 && windowTokens+mTokens > size {
			emit()
			var carried []chatMessage
			carriedTokens := 0
			for i := len(window) - 1; i >= 0; i-- {
				t := c.Tok.Count(window[i].speaker + ": " + window[i].text)
				if carriedTokens+t > overlap && len(carried) > 0 {
					break
				}
				carried = append([]chatMessage{window[i]}, carried...)
				carriedTokens += t
			}
			window = carried
			windowTokens = carriedTokens
		}
		window = append(window, m)
		windowTokens += mTokens
	}
	emit()

	return chunks, nil
}

func threadID(first chatMessage) string {
	if first.ts != "" {
		return first.ts
	}
	return fmt.Sprintf("%s:%d", first.speaker, first.start)
}

// parseJSONChat decodes the messages array, locating each message's
// original byte span by searching for its raw (verbatim, unreencoded) JSON
// bytes within text rather than synthesizing an offset from rendered
// "speaker: text" form (§3 "start_index refers to the first original byte
// covered").
func parseJSONChat(text string) ([]chatMessage, error) {
	var payload chatPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, err
	}
	messages := make([]chatMessage, 0, len(payload.Messages))
	cursor := 0
	for _, raw := range payload.Messages {
		var m chatPayloadMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		start := cursor
		if i := strings.Index(text[cursor:], string(raw)); i != -1 {
			start = cursor + i
		}
		end := start + len(raw)
		if end > len(text) {
			end = len(text)
		}
		messages = append(messages, chatMessage{
			speaker: m.User,
			text:    m.Text,
			ts:      m.TS,
			start:   start,
			end:     end,
		})
		cursor = end
	}
	return messages, nil
}

// parsePlainChat parses "<speaker>: <text>" lines; a blank line separates
// threads, but all messages are still yielded in source order (§4.2.6).
func parsePlainChat(text string) []chatMessage {
	var messages []chatMessage
	lines := strings.Split(text, "\n")
	cursor := 0
	for _, line := range lines {
		lineLen := len(line) + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			cursor += lineLen
			continue
		}
		if idx := strings.Index(line, ": "); idx != -1 {
			speaker := strings.TrimSpace(line[:idx])
			msgText := line[idx+2:]
			messages = append(messages, chatMessage{
				speaker: speaker,
				text:    msgText,
				start:   cursor,
				end:     cursor + len(line),
			})
		}
		cursor += lineLen
	}
	return messages
}
