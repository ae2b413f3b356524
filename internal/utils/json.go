package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Repairs for the mistakes models make most often in structured output.
var (
	trailingCommaRegex  = regexp.MustCompile(`,\s*([}\]])`)
	singleQuoteKeyRegex = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)
	missingCommaRegex   = regexp.MustCompile(`("|\d|true|false|null|[}\]])\s*\n\s*("[\w][^"]*"\s*:)`)
)

// ExtractAndParseJSON pulls the first JSON value out of a model response and
// decodes it into T. Markdown fences and trailing prose are ignored; if the
// first decode fails a repaired copy is tried once.
func ExtractAndParseJSON[T any](response string) (T, error) {
	var result T

	body := stripFences(response)
	idx := strings.IndexAny(body, "{[")
	if idx == -1 {
		return result, fmt.Errorf("no JSON object or array in response")
	}
	body = body[idx:]

	err := json.NewDecoder(strings.NewReader(body)).Decode(&result)
	if err == nil {
		return result, nil
	}

	var repaired T
	if rerr := json.NewDecoder(strings.NewReader(repairJSON(body))).Decode(&repaired); rerr == nil {
		return repaired, nil
	}
	return result, fmt.Errorf("parse JSON: %w", err)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func repairJSON(s string) string {
	s = escapeControlChars(s)
	s = missingCommaRegex.ReplaceAllString(s, `$1, $2`)
	s = trailingCommaRegex.ReplaceAllString(s, `$1`)
	s = singleQuoteKeyRegex.ReplaceAllString(s, `$1"$2"$3`)
	return closeTruncated(s)
}

// escapeControlChars escapes raw control characters that appear inside strings.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString && c == '\n':
			b.WriteString(`\n`)
			continue
		case inString && c == '\t':
			b.WriteString(`\t`)
			continue
		case inString && c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// closeTruncated balances an output that was cut off mid-value.
func closeTruncated(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case (c == '}' || c == ']') && len(stack) > 0:
			stack = stack[:len(stack)-1]
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}
