package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaOptions are the sampling options sent with every chat request.
type OllamaOptions struct {
	Temperature   float64 `json:"temperature"`
	NumPredict    int     `json:"num_predict"`
	TopK          int     `json:"top_k"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

// DefaultOllamaOptions favour deterministic, long answers.
func DefaultOllamaOptions() OllamaOptions {
	return OllamaOptions{
		Temperature:   0.1,
		NumPredict:    2048,
		TopK:          50,
		TopP:          0.95,
		RepeatPenalty: 1.0,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  OllamaOptions `json:"options"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Ollama talks to the /api/chat endpoint of an Ollama server.
type Ollama struct {
	base
	endpoint string
	model    string
	options  OllamaOptions
}

var (
	_ Gateway = (*Ollama)(nil)
	_ Prober  = (*Ollama)(nil)
)

// NewOllama creates a client for the server at endpoint.
func NewOllama(endpoint, model string, options OllamaOptions, opts ...Option) *Ollama {
	return &Ollama{
		base:     newBase("ollama", opts),
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		options:  options,
	}
}

// Send posts prompt as a single user message, non-streaming, and returns
// the assistant message content.
func (c *Ollama) Send(ctx context.Context, prompt string) (reply string, err error) {
	start := time.Now()
	defer func() { c.observe(start, len(prompt), len(reply), err) }()

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  c.options,
	})
	if err != nil {
		return "", fmt.Errorf("gateway: ollama: marshal request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, c.endpoint+"/api/chat", body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("gateway: ollama: decode response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("gateway: ollama: %s", resp.Error)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Message.Content, nil
}

// Ping lists local models to check the server is reachable.
func (c *Ollama) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	return err
}
