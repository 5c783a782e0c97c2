package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"commentreview/internal/domain"
	"commentreview/internal/sheet"
)

// serializeList renders a cell of a list column as a JSON array. Scalars
// become one-element arrays; anything unencodable becomes "[]".
func serializeList(v any) string {
	switch t := v.(type) {
	case nil:
		return "[]"
	case []string:
		if t == nil {
			return "[]"
		}
		return encodeJSON(t)
	case []any:
		if t == nil {
			return "[]"
		}
		return encodeJSON(t)
	case string:
		if strings.TrimSpace(t) == "" {
			return "[]"
		}
		return encodeJSON([]string{t})
	default:
		return encodeJSON([]any{t})
	}
}

func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// MergeAnnotations writes one column per annotation field onto t, in
// domain.AnnotationColumns order. A column that already exists is replaced.
func MergeAnnotations(t *sheet.Table, anns []domain.Annotation) error {
	if len(anns) != len(t.Rows) {
		return fmt.Errorf("merge: %d annotations for %d rows", len(anns), len(t.Rows))
	}
	fields := make([]map[string]any, len(anns))
	for i, a := range anns {
		fields[i] = a.Fields()
	}
	for _, col := range domain.AnnotationColumns {
		values := make([]string, len(anns))
		for i := range anns {
			v := fields[i][col]
			if domain.ListColumns[col] {
				values[i] = serializeList(v)
			} else {
				values[i] = fmt.Sprint(v)
			}
		}
		if err := t.SetColumn(col, values); err != nil {
			return err
		}
	}
	return nil
}
