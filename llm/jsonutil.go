package llm

import (
	"strings"
)

// StripCodeFences removes markdown code fence markers (```json and ```) anywhere in the
// completion and trims the surrounding whitespace.
func StripCodeFences(content string) string {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

// EscapeControlChars rewrites literal newline, carriage return and tab characters that appear
// inside JSON string literals as their two-character escape sequences, so that a reply like
//
//	{"sabotagedCode": "def f():
//	    return 1"}
//
// decodes. Text outside string literals, including structural whitespace, is copied verbatim,
// and sequences that are already escaped are left alone, so the function is idempotent on
// well-formed JSON.
func EscapeControlChars(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw) + 16)

	inString := false
	escaped := false
	// Byte-wise is safe: every byte we act on is ASCII and never occurs inside a UTF-8
	// multi-byte sequence.
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if !inString {
			if ch == '"' {
				inString = true
			}
			sb.WriteByte(ch)
			continue
		}
		if escaped {
			sb.WriteByte(ch)
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
			sb.WriteByte(ch)
		case '"':
			inString = false
			sb.WriteByte(ch)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}
