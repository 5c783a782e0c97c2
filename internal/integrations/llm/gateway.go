package llm

import (
	"context"
	"fmt"
	"time"

	"commentreview/internal/httpx"
	"commentreview/internal/logger"
)

// Completer sends one system instruction and one user message to a chat
// model and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Recorder receives request and retry observations. metrics.Recorder
// satisfies it.
type Recorder interface {
	ObserveLLMRequest(op, status string)
	ObserveLLMRetry(op string)
}

const (
	opChat  = "chat"
	opEmbed = "embed"

	defaultEmbeddingBatchSize = 100
)

// Gateway owns retry policy and reply parsing for every model call.
type Gateway struct {
	Completer Completer
	Embedder  Embedder
	Retry     httpx.Backoff
	Log       *logger.Logger
	Metrics   Recorder

	EmbeddingBatchSize int
}

// CompleteJSON asks the model for a JSON object. Transient failures are
// retried; a reply that cannot be salvaged into an object yields an empty
// map, never an error.
func (g *Gateway) CompleteJSON(ctx context.Context, system, user string) (map[string]any, error) {
	if g.Completer == nil {
		return nil, fmt.Errorf("llm gateway: no completer configured")
	}
	var raw string
	err := g.backoff(opChat).Do(ctx, func(ctx context.Context) error {
		reply, err := g.Completer.Complete(ctx, system, user)
		g.observe(opChat, err)
		if err != nil {
			return err
		}
		raw = reply
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	obj, ok := ParseModelJSON(raw)
	if !ok {
		g.log().Warn("model reply was not a JSON object, using empty result", "reply", raw, "reply_len", len(raw))
	}
	return obj, nil
}

// Embed embeds texts in fixed-size batches. Each batch is retried on its
// own; exhausting retries on any batch fails the whole call.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if g.Embedder == nil {
		return nil, fmt.Errorf("llm gateway: no embedder configured")
	}
	size := g.EmbeddingBatchSize
	if size <= 0 {
		size = defaultEmbeddingBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch := texts[start:end]

		var vecs [][]float32
		err := g.backoff(opEmbed).Do(ctx, func(ctx context.Context) error {
			v, err := g.Embedder.EmbedBatch(ctx, batch)
			if err == nil && len(v) != len(batch) {
				err = fmt.Errorf("embedding count mismatch: got %d want %d", len(v), len(batch))
			}
			g.observe(opEmbed, err)
			if err != nil {
				return err
			}
			vecs = v
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (g *Gateway) backoff(op string) httpx.Backoff {
	b := g.Retry
	if b.MaxAttempts == 0 {
		b = httpx.DefaultBackoff()
	}
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		if g.Metrics != nil {
			g.Metrics.ObserveLLMRetry(op)
		}
		g.log().Warn("transient model error, retrying", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
	}
	return b
}

func (g *Gateway) observe(op string, err error) {
	if g.Metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.Metrics.ObserveLLMRequest(op, status)
}

func (g *Gateway) log() *logger.Logger {
	if g.Log == nil {
		return logger.Nop()
	}
	return g.Log
}
