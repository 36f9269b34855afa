package anthropic

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

const (
	apiVersion       = "2023-06-01"
	maxResponseBytes = 4 << 20
)

// Provider implements models.Scorer using the Anthropic Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) Score(ctx context.Context, req models.ScoreRequest) (string, error) {
	content := make([]block, 0, len(req.ImageURLs)+1)
	for _, u := range req.ImageURLs {
		content = append(content, block{Type: "image", Source: &imageSource{Type: "url", URL: u}})
	}
	content = append(content, block{Type: "text", Text: prompt.User(req)})

	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: 1024,
		System:    prompt.System,
		Messages:  []turn{{Role: "user", Content: content}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding messages request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading anthropic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return "", fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, msg)
	}

	var out messagesResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding anthropic response: %w", err)
	}

	var text strings.Builder
	for _, b := range out.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic response carried no text content")
	}
	return text.String(), nil
}

// --- Messages API wire types ---

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    string `json:"system"`
	Messages  []turn `json:"messages"`
}

type turn struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type messagesResponse struct {
	Content []block `json:"content"`
}

var _ models.Scorer = (*Provider)(nil)
