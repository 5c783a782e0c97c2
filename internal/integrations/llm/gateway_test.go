package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"commentreview/internal/httpx"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scriptedCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return s.replies[len(s.replies)-1], nil
}

type fakeEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	failAt  int
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.err != nil && len(f.batches) == f.failAt {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var n int
		fmt.Sscanf(t, "t%d", &n)
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

type countingRecorder struct {
	requests map[string]int
	retries  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{requests: map[string]int{}, retries: map[string]int{}}
}

func (c *countingRecorder) ObserveLLMRequest(op, status string) { c.requests[op+"/"+status]++ }
func (c *countingRecorder) ObserveLLMRetry(op string)           { c.retries[op]++ }

func fastRetry() httpx.Backoff {
	return httpx.Backoff{MaxAttempts: 6, MaxWait: time.Millisecond}
}

func TestCompleteJSONParsesReply(t *testing.T) {
	g := &Gateway{Completer: &scriptedCompleter{replies: []string{"```json\n{\"pii_ver\": true}\n```"}}, Retry: fastRetry()}
	got, err := g.CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if got["pii_ver"] != true {
		t.Fatalf("pii_ver = %v, want true", got["pii_ver"])
	}
}

func TestCompleteJSONUnparseableReplyIsEmptyMap(t *testing.T) {
	g := &Gateway{Completer: &scriptedCompleter{replies: []string{"no json here"}}, Retry: fastRetry()}
	got, err := g.CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty map", got)
	}
}

func TestCompleteJSONRetriesTransientErrors(t *testing.T) {
	c := &scriptedCompleter{
		errs:    []error{&httpx.StatusError{Status: 429}, &httpx.StatusError{Status: 503}},
		replies: []string{"", "", `{"overall_opinion": "oppose"}`},
	}
	rec := newCountingRecorder()
	g := &Gateway{Completer: c, Retry: fastRetry(), Metrics: rec}

	got, err := g.CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if c.calls != 3 || got["overall_opinion"] != "oppose" {
		t.Fatalf("calls = %d got = %v", c.calls, got)
	}
	if rec.retries[opChat] != 2 || rec.requests["chat/error"] != 2 || rec.requests["chat/ok"] != 1 {
		t.Fatalf("metrics = %+v %+v", rec.requests, rec.retries)
	}
}

func TestCompleteJSONRetriesResetConnection(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			if tcp, ok := conn.(*net.TCPConn); ok {
				_ = tcp.SetLinger(0)
			}
			conn.Close()
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": `{"overall_opinion":"support"}`}}},
		})
	}))
	defer server.Close()

	c := &AzureCompleter{
		AzureConfig: AzureConfig{Endpoint: server.URL, APIKey: "k", APIVersion: "v", Deployment: "chat"},
		HTTP:        server.Client(),
	}
	g := &Gateway{Completer: c, Retry: fastRetry()}

	got, err := g.CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Fatalf("server calls = %d, want 2", n)
	}
	if got["overall_opinion"] != "support" {
		t.Fatalf("got = %v", got)
	}
}

func TestCompleteJSONGivesUpAfterSixAttempts(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = &httpx.StatusError{Status: 500}
	}
	c := &scriptedCompleter{errs: errs, replies: []string{"{}"}}
	g := &Gateway{Completer: c, Retry: fastRetry()}

	_, err := g.CompleteJSON(context.Background(), "sys", "user")
	if err == nil || !strings.Contains(err.Error(), "6 attempts") {
		t.Fatalf("err = %v, want exhaustion after 6 attempts", err)
	}
	if c.calls != 6 {
		t.Fatalf("calls = %d, want 6", c.calls)
	}
}

func TestCompleteJSONDoesNotRetryPermanentErrors(t *testing.T) {
	c := &scriptedCompleter{errs: []error{errors.New("invalid api key")}, replies: []string{"{}"}}
	g := &Gateway{Completer: c, Retry: fastRetry()}
	if _, err := g.CompleteJSON(context.Background(), "sys", "user"); err == nil {
		t.Fatal("expected error")
	}
	if c.calls != 1 {
		t.Fatalf("calls = %d, want 1", c.calls)
	}
}

func TestEmbedBatchesPreserveOrder(t *testing.T) {
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	e := &fakeEmbedder{}
	g := &Gateway{Embedder: e, Retry: fastRetry()}

	vecs, err := g.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(e.batches) != 3 || len(e.batches[0]) != 100 || len(e.batches[2]) != 50 {
		t.Fatalf("batch sizes wrong: %d batches", len(e.batches))
	}
	if len(vecs) != len(texts) {
		t.Fatalf("len(vecs) = %d, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if int(v[0]) != i {
			t.Fatalf("vecs[%d] = %v, order not preserved", i, v)
		}
	}
}

func TestEmbedCustomBatchSizeAndEmptyInput(t *testing.T) {
	e := &fakeEmbedder{}
	g := &Gateway{Embedder: e, Retry: fastRetry(), EmbeddingBatchSize: 2}
	if _, err := g.Embed(context.Background(), []string{"t0", "t1", "t2"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(e.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(e.batches))
	}
	vecs, err := g.Embed(context.Background(), nil)
	if err != nil || len(vecs) != 0 {
		t.Fatalf("empty input: vecs=%v err=%v", vecs, err)
	}
}

func TestEmbedPropagatesPermanentFailure(t *testing.T) {
	e := &fakeEmbedder{failAt: 2, err: errors.New("deployment not found")}
	g := &Gateway{Embedder: e, Retry: fastRetry(), EmbeddingBatchSize: 1}
	if _, err := g.Embed(context.Background(), []string{"t0", "t1", "t2"}); err == nil {
		t.Fatal("expected embedding failure to propagate")
	}
}
