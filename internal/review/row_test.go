package review

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"commentreview/internal/domain"
	"commentreview/internal/prompts"
)

type stubModel struct {
	replies []map[string]any
	err     error
	systems []string
	users   []string
}

func (s *stubModel) CompleteJSON(_ context.Context, system, user string) (map[string]any, error) {
	s.systems = append(s.systems, system)
	s.users = append(s.users, user)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.users) - 1
	if i >= len(s.replies) {
		return map[string]any{}, nil
	}
	return s.replies[i], nil
}

func newProcessor(t *testing.T, m JSONCompleter) *RowProcessor {
	t.Helper()
	store, err := prompts.Load("")
	if err != nil {
		t.Fatalf("prompts.Load: %v", err)
	}
	p, err := NewRowProcessor(m, store)
	if err != nil {
		t.Fatalf("NewRowProcessor: %v", err)
	}
	return p
}

func TestRowProcessorEndToEnd(t *testing.T) {
	m := &stubModel{replies: []map[string]any{
		{"pii_ver": true, "pii_txt": []any{"a@b.com"}},
		{"themes": []any{"contact info", "support"}, "overall_opinion": "support"},
	}}
	p := newProcessor(t, m)

	got, err := p.Process(context.Background(), "Email me at a@b.com, I support annual review.")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Redaction.PII.Present != "True" || !reflect.DeepEqual(got.Redaction.PII.Evidence, []string{"a@b.com"}) {
		t.Fatalf("pii = %+v", got.Redaction.PII)
	}
	if got.Redaction.OffensiveLanguage.Present != "False" || len(got.Redaction.OffensiveLanguage.Evidence) != 0 {
		t.Fatalf("offensive = %+v", got.Redaction.OffensiveLanguage)
	}
	if got.Themes.Opinion != "support" || !reflect.DeepEqual(got.Themes.Themes, []string{"contact info", "support"}) {
		t.Fatalf("themes = %+v", got.Themes)
	}

	if len(m.systems) != 2 || !strings.Contains(m.systems[0], "pii_ver") || !strings.Contains(m.systems[1], "overall_opinion") {
		t.Fatal("redaction prompt must be sent first, theme prompt second")
	}
	wantUser := "Comment:\nEmail me at a@b.com, I support annual review.\n\nReturn ONLY the JSON as specified."
	if m.users[0] != wantUser || m.users[1] != wantUser {
		t.Fatalf("user message = %q", m.users[0])
	}
}

func TestRowProcessorEmptyReplies(t *testing.T) {
	p := newProcessor(t, &stubModel{})
	got, err := p.Process(context.Background(), "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !reflect.DeepEqual(got, domain.FallbackAnnotation()) {
		t.Fatalf("empty replies should normalize to the fallback shape, got %+v", got)
	}
}

func TestRowProcessorPropagatesGatewayErrors(t *testing.T) {
	boom := errors.New("retries exhausted")
	p := newProcessor(t, &stubModel{err: boom})
	if _, err := p.Process(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped gateway error", err)
	}
}

func TestNormalizeRedactionWrongTypes(t *testing.T) {
	got := NormalizeRedaction(map[string]any{
		"pii_ver":            "maybe",
		"pii_txt":            map[string]any{"x": 1},
		"third_pty_info_ver": "YES",
		"third_pty_info_txt": "my neighbour John",
		"ssa_employee_ver":   []any{},
		"offensive_lang_txt": nil,
	})
	if got.PII.Present != "False" || len(got.PII.Evidence) != 0 {
		t.Fatalf("pii = %+v", got.PII)
	}
	if got.ThirdPartyInfo.Present != "True" || !reflect.DeepEqual(got.ThirdPartyInfo.Evidence, []string{"my neighbour John"}) {
		t.Fatalf("third party = %+v", got.ThirdPartyInfo)
	}
	if got.AgencyEmployeeDisclosure.Present != "False" || got.AgencyEmployeeDisclosure.Evidence == nil {
		t.Fatalf("employee = %+v", got.AgencyEmployeeDisclosure)
	}
	if got.OffensiveLanguage.Evidence == nil {
		t.Fatal("evidence must never be nil")
	}
}
