package cluster

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var themeDelimiters = regexp.MustCompile(`[;,]`)

// ParseThemesCell reads one themes cell: a JSON array, or failing that a
// semicolon or comma separated list. Items are trimmed; empties dropped.
func ParseThemesCell(cell string) []string {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if item == nil {
				continue
			}
			str, ok := item.(string)
			if !ok {
				str = fmt.Sprint(item)
			}
			if str = strings.TrimSpace(str); str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	var out []string
	for _, part := range themeDelimiters.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
