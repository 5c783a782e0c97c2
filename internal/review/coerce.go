package review

import (
	"encoding/json"
	"strconv"
	"strings"

	"commentreview/internal/domain"
)

// flagToken maps a boolean-like model value to "True" or "False". Anything
// not clearly affirmative is "False".
func flagToken(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return domain.FlagTrue
		}
		return domain.FlagFalse
	case nil:
		return domain.FlagFalse
	}
	switch strings.ToLower(strings.TrimSpace(stringify(v))) {
	case "true", "1", "yes":
		return domain.FlagTrue
	}
	return domain.FlagFalse
}

// evidenceList coerces a model value into a list of non-empty trimmed
// strings. It never returns nil.
func evidenceList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(stringify(item)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// themeList accepts a native list, a JSON-encoded list, or a plain string
// (taken as one theme), then dedups in first-seen order.
func themeList(v any) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(t), &parsed); err == nil {
			if list, ok := parsed.([]any); ok {
				items = list
				break
			}
		}
		items = []any{t}
	}
	return dedup(items)
}

func dedup(items []any) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s := strings.TrimSpace(stringify(item))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func opinionLabel(v any) string {
	if v == nil {
		return domain.OpinionUnknown
	}
	switch s := strings.ToLower(strings.TrimSpace(stringify(v))); s {
	case domain.OpinionSupport, domain.OpinionOppose:
		return s
	}
	return domain.OpinionUnknown
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
