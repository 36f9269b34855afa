package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kontrategy/kontrategy-api/internal/ai/prompt"
	"github.com/kontrategy/kontrategy-api/internal/config"
	"github.com/kontrategy/kontrategy-api/pkg/models"
)

const maxResponseBytes = 4 << 20

// Provider implements models.Scorer against the Chat Completions API. Any
// OpenAI-compatible server (vLLM, for instance) works through the same code.
type Provider struct {
	name   string
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return NewNamedProvider("openai", cfg)
}

// NewNamedProvider returns a Provider that reports name from Name().
func NewNamedProvider(name string, cfg config.OpenAIConfig) *Provider {
	return &Provider{name: name, cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) Score(ctx context.Context, req models.ScoreRequest) (string, error) {
	content := []contentPart{{Type: "text", Text: prompt.User(req)}}
	for _, u := range req.ImageURLs {
		content = append(content, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u, Detail: "low"}})
	}

	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []message{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: content},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.2,
		MaxTokens:      800,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s response: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, snippet(data))
	}

	var out chatResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", p.name, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response carried no choices", p.name)
	}
	return out.Choices[0].Message.Content, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

// --- Chat Completions wire types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var _ models.Scorer = (*Provider)(nil)
