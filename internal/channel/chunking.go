package channel

import (
	"strings"
	"unicode/utf8"

	"github.com/flemzord/majlis/pkg/message"
)

// TelegramMaxLength is Telegram's limit on a text message.
const TelegramMaxLength = 4096

// ChunkConfig controls how outbound messages are split when they exceed a
// platform's maximum message length.
type ChunkConfig struct {
	// MaxLength is the maximum number of characters (runes) per chunk.
	// A value <= 0 means no splitting.
	MaxLength int

	// PreserveBlocks avoids splitting inside fenced code blocks while the
	// accumulated chunk stays under twice MaxLength.
	PreserveBlocks bool
}

// SplitMessage splits msg into messages that each respect cfg.MaxLength.
// Media blocks travel with the first chunk.
func SplitMessage(msg message.OutboundMessage, cfg ChunkConfig) []message.OutboundMessage {
	if cfg.MaxLength <= 0 {
		return []message.OutboundMessage{msg}
	}

	var (
		textParts []string
		media     []message.ContentBlock
	)
	for _, b := range msg.Blocks {
		if b.Type == message.BlockText {
			textParts = append(textParts, b.Text)
		} else {
			media = append(media, b)
		}
	}

	fullText := strings.Join(textParts, "\n")
	if utf8.RuneCountInString(fullText) <= cfg.MaxLength {
		return []message.OutboundMessage{msg}
	}

	chunks := SplitText(fullText, cfg)
	result := make([]message.OutboundMessage, 0, len(chunks))
	for i, chunk := range chunks {
		out := msg
		out.Blocks = nil
		if i == 0 {
			out.Blocks = append(out.Blocks, media...)
		} else {
			// Only the first chunk quotes the original message.
			out.ReplyToID = ""
		}
		out.Blocks = append(out.Blocks, message.NewTextBlock(chunk))
		result = append(result, out)
	}
	return result
}

// SplitText breaks text into chunks at line boundaries, force-splitting
// lines longer than MaxLength on rune boundaries.
func SplitText(text string, cfg ChunkConfig) []string {
	if cfg.MaxLength <= 0 || utf8.RuneCountInString(text) <= cfg.MaxLength {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
		inCode  bool
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line) + 1

		// The closing fence still counts as inside the block.
		wasInCode := inCode
		isFence := strings.HasPrefix(strings.TrimSpace(line), "```")
		if isFence {
			inCode = !inCode
		}

		if size+n > cfg.MaxLength {
			inBlock := wasInCode || (isFence && !inCode)
			if cfg.PreserveBlocks && inBlock && size < cfg.MaxLength*2 {
				current.WriteString(line + "\n")
				size += n
				continue
			}
			flush()
			if n > cfg.MaxLength {
				chunks = append(chunks, forceSplit(line, cfg.MaxLength)...)
				continue
			}
		}
		current.WriteString(line + "\n")
		size += n
	}
	flush()
	return chunks
}

func forceSplit(line string, maxRunes int) []string {
	var parts []string
	runes := []rune(line)
	for len(runes) > maxRunes {
		parts = append(parts, string(runes[:maxRunes]))
		runes = runes[maxRunes:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
