// Package llm 提供 OpenAI Chat 服务客户端
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/Jinstronda/jinstronda-memory/internal/config"
	"github.com/Jinstronda/jinstronda-memory/pkg/metrics"
)

var tracer = otel.Tracer("llm")

// ChatClient 对话接口，purpose 用于指标标签
type ChatClient interface {
	Chat(ctx context.Context, purpose, systemPrompt, userPrompt string) (string, error)
}

// Client OpenAI chat completions 客户端
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient 创建 Chat 客户端
func NewClient(cfg *config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Chat 单轮对话，返回首个 choice 的文本
func (c *Client) Chat(ctx context.Context, purpose, systemPrompt, userPrompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.Chat")
	defer span.End()

	start := time.Now()

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	reqBody, err := json.Marshal(&chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(c.model, purpose, "error").Inc()
		span.RecordError(err)
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(c.model, purpose, "error").Inc()
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		metrics.LLMCallTotal.WithLabelValues(c.model, purpose, "error").Inc()
		return "", fmt.Errorf("chat request failed: status=%d body=%s", httpResp.StatusCode, truncate(string(body), 200))
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.LLMCallTotal.WithLabelValues(c.model, purpose, "error").Inc()
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if resp.Error != nil {
		metrics.LLMCallTotal.WithLabelValues(c.model, purpose, "error").Inc()
		return "", fmt.Errorf("chat api error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMCallTotal.WithLabelValues(c.model, purpose, "error").Inc()
		return "", fmt.Errorf("chat response has no choices")
	}

	metrics.LLMCallTotal.WithLabelValues(c.model, purpose, "ok").Inc()
	metrics.LLMCallDuration.WithLabelValues(c.model, purpose).Observe(time.Since(start).Seconds())
	return resp.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
