package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"commentreview/internal/httpx"
)

// AzureConfig addresses one Azure OpenAI resource.
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string
}

func (c AzureConfig) url(path string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		strings.TrimRight(c.Endpoint, "/"), url.PathEscape(c.Deployment), path, url.QueryEscape(c.APIVersion))
}

// AzureCompleter calls the chat completions endpoint with JSON-object
// response format.
type AzureCompleter struct {
	AzureConfig
	Temperature float64
	MaxTokens   int
	HTTP        *http.Client
}

type azureMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azureChatRequest struct {
	Messages       []azureMessage    `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type azureChatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *AzureCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	var msgs []azureMessage
	if system != "" {
		msgs = append(msgs, azureMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, azureMessage{Role: "user", Content: user})

	var resp azureChatResponse
	err := postJSON(ctx, a.HTTP, "azure chat", a.url("chat/completions"), a.APIKey, azureChatRequest{
		Messages:       msgs,
		Temperature:    a.Temperature,
		MaxTokens:      a.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure chat: no choices in response")
	}
	if resp.Choices[0].Message.Content == nil {
		return "{}", nil
	}
	return *resp.Choices[0].Message.Content, nil
}

// AzureEmbedder calls the embeddings endpoint.
type AzureEmbedder struct {
	AzureConfig
	HTTP *http.Client
}

type azureEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (a *AzureEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp azureEmbeddingResponse
	if err := postJSON(ctx, a.HTTP, "azure embeddings", a.url("embeddings"), a.APIKey, map[string]any{"input": texts}, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("azure embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("azure embeddings: missing vector for input %d", i)
		}
	}
	return out, nil
}

func postJSON(ctx context.Context, client *http.Client, op, endpoint, apiKey string, body, out any) error {
	if client == nil {
		client = httpx.ExternalClient()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshaling request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpx.StatusError{Op: op, Status: resp.StatusCode, Body: truncate(string(respBody), 300)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: parsing response: %w", op, err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
