package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveRow(RowOK, 2*time.Second)
	r.ObserveRow(RowOK, time.Second)
	r.ObserveRow(RowFallback, time.Second)
	r.ObserveLLMRequest("chat", "ok")
	r.ObserveLLMRetry("embed")

	path := filepath.Join(t.TempDir(), "commentreview.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`commentreview_rows_total{status="ok"} 2`,
		`commentreview_rows_total{status="fallback"} 1`,
		`commentreview_llm_requests_total{op="chat",status="ok"} 1`,
		`commentreview_llm_retries_total{op="embed"} 1`,
		`commentreview_row_duration_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveRow(RowOK, time.Second)
	r.ObserveLLMRequest("chat", "error")
	r.ObserveLLMRetry("chat")
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil recorder WriteTextfile: %v", err)
	}
}

func TestEmptyPathSkipsWrite(t *testing.T) {
	if err := New().WriteTextfile(""); err != nil {
		t.Fatalf("WriteTextfile(\"\"): %v", err)
	}
}
