package llm

import (
	"encoding/json"
	"strings"
)

// ParseModelJSON recovers a JSON object from free-form model output.
// It tries, in order: the reply as is, the reply with Markdown code fences
// removed, and the first balanced {...} or [...] inside it. ok is false when
// no attempt produced an object; the returned map is then empty.
func ParseModelJSON(raw string) (obj map[string]any, ok bool) {
	text := strings.TrimSpace(raw)
	for _, candidate := range []string{text, stripFences(text)} {
		if v, parsed := decode(candidate); parsed {
			return asObject(v)
		}
	}
	if span := firstBalanced(stripFences(text)); span != "" {
		if v, parsed := decode(span); parsed {
			return asObject(v)
		}
	}
	return map[string]any{}, false
}

func decode(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	return map[string]any{}, false
}

// stripFences removes ``` fence lines (with or without a language tag).
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// firstBalanced returns the first complete {...} or [...] span, skipping
// brackets that appear inside JSON strings.
func firstBalanced(s string) string {
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if end := matchClose(s, start); end > 0 {
			return s[start : end+1]
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return ""
}

func matchClose(s string, start int) int {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
