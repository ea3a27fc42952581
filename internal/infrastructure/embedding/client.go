// Package embedding 提供 OpenAI Embedding 服务客户端
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/Jinstronda/jinstronda-memory/internal/config"
	"github.com/Jinstronda/jinstronda-memory/pkg/metrics"
)

var tracer = otel.Tracer("embedding")

// Embedder 向量化接口
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// 失败重试的退避间隔
var retryBackoffs = []time.Duration{time.Second, 2 * time.Second}

// Client OpenAI embeddings 客户端
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	httpClient *http.Client
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewClient 创建 Embedding 客户端
func NewClient(cfg *config.EmbeddingConfig, apiKey string) *Client {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-large"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Embed 分批向量化，单批失败最多重试两次（1s/2s 退避）
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, span := tracer.Start(ctx, "embedding.Embed")
	defer span.End()

	var all [][]float32
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := c.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		all = append(all, vectors...)
	}

	return all, nil
}

func (c *Client) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= len(retryBackoffs); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoffs[attempt-1]):
			}
		}

		vectors, err := c.doBatchEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) doBatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	reqBody, err := json.Marshal(&embedRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		metrics.EmbeddingCallTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("embedding request failed: status=%d", httpResp.StatusCode)
	}

	var resp embedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		metrics.EmbeddingCallTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index out of range: %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	metrics.EmbeddingCallTotal.WithLabelValues(c.model, "ok").Inc()
	metrics.EmbeddingCallDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	return vectors, nil
}
