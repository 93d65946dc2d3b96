// Package extract pulls structured payloads out of free-form model output:
// fenced code blocks and the first valid balanced JSON object.
package extract

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// Block is one fenced code block. Lang is the lower-cased info string and
// is empty for untagged fences.
type Block struct {
	Lang string
	Body string
}

// Blocks returns every fenced block of text, in order. An unterminated
// trailing fence is ignored.
func Blocks(text string) []Block {
	var out []Block
	rest := text
	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			return out
		}
		rest = rest[open+len(fence):]

		header, body, ok := strings.Cut(rest, "\n")
		if !ok {
			return out
		}
		end := strings.Index(body, fence)
		if end < 0 {
			return out
		}

		lang := strings.ToLower(strings.TrimSpace(header))
		if f := strings.Fields(lang); len(f) > 0 {
			lang = f[0]
		}
		out = append(out, Block{
			Lang: lang,
			Body: strings.TrimRight(body[:end], " \t\r\n"),
		})
		rest = body[end+len(fence):]
	}
}

// First returns the body of the first block whose language is one of
// langs. When no tagged block matches, the first untagged block is used.
func First(text string, langs ...string) (string, bool) {
	blocks := Blocks(text)
	for _, b := range blocks {
		for _, l := range langs {
			if b.Lang == l {
				return b.Body, true
			}
		}
	}
	for _, b := range blocks {
		if b.Lang == "" {
			return b.Body, true
		}
	}
	return "", false
}

// StripFence returns the content of text when the whole of it is a single
// fenced block, and the trimmed text otherwise.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, fence) || !strings.HasSuffix(trimmed, fence) || len(trimmed) < 2*len(fence) {
		return trimmed
	}
	inner := trimmed[len(fence) : len(trimmed)-len(fence)]
	if _, body, ok := strings.Cut(inner, "\n"); ok {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(inner)
}

// Object returns the first balanced {...} span of input that is valid
// JSON. Braces inside JSON strings are ignored; a balanced span that does
// not parse, such as "{request}" in prose, or a brace that never closes is
// skipped and scanning resumes just after it.
func Object(input string) (string, bool) {
	for from := 0; from < len(input); {
		start, end, ok := balanced(input, from)
		if start < 0 {
			return "", false
		}
		if ok && json.Valid([]byte(input[start:end])) {
			return input[start:end], true
		}
		from = start + 1
	}
	return "", false
}

// balanced returns the bounds of the first balanced {...} span of input at
// or after from. When an opening brace never closes, start is its offset
// and ok is false; start is -1 when there is no opening brace.
func balanced(input string, from int) (start, end int, ok bool) {
	start = -1
	depth := 0
	inString := false
	escaped := false
	for i := from; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' && start >= 0 {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}
	return start, 0, false
}
