package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/llm"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/persistence/redis"
	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
	"github.com/Jinstronda/jinstronda-memory/pkg/metrics"
)

var tracer = otel.Tracer("extractor")

// Extractor 会话抽取接口
type Extractor interface {
	Extract(ctx context.Context, containerTag string, session *memory.Session) (*memory.Extraction, error)
}

// Client 带缓存与并发闸门的抽取客户端
// 进程内 map 为主缓存，Redis 可选读穿；同一容器内同一 sessionId 的并发请求合并为单次调用
type Client struct {
	chat     llm.ChatClient
	sem      *semaphore.Weighted
	group    singleflight.Group
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]*memory.Extraction

	redisCache *redis.Cache
}

// NewClient 创建抽取客户端，redisCache 可为 nil
func NewClient(chat llm.ChatClient, maxConcurrent int64, cacheTTL time.Duration, redisCache *redis.Cache) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = 300
	}
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Client{
		chat:       chat,
		sem:        semaphore.NewWeighted(maxConcurrent),
		cacheTTL:   cacheTTL,
		cache:      make(map[string]*memory.Extraction),
		redisCache: redisCache,
	}
}

// Extract 抽取单个会话，结果按 (containerTag, sessionId) 缓存
func (c *Client) Extract(ctx context.Context, containerTag string, session *memory.Session) (*memory.Extraction, error) {
	ctx, span := tracer.Start(ctx, "extractor.Extract")
	defer span.End()

	key := containerTag + ":" + session.SessionID

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		metrics.ExtractionTotal.WithLabelValues("ok", "hit").Inc()
		return cached, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// 双重检查，合并窗口内可能已有完成者
		c.mu.RLock()
		cached, ok := c.cache[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		if c.redisCache != nil {
			if ext, ok := c.loadFromRedis(ctx, key); ok {
				c.store(key, ext)
				metrics.ExtractionTotal.WithLabelValues("ok", "redis").Inc()
				return ext, nil
			}
		}

		ext, err := c.extractRemote(ctx, session)
		if err != nil {
			return nil, err
		}

		c.store(key, ext)
		if c.redisCache != nil {
			if err := c.redisCache.Set(ctx, redisKey(key), ext, c.cacheTTL); err != nil {
				logger.Warn(ctx, "extraction cache write failed", "error", err.Error())
			}
		}
		return ext, nil
	})
	if err != nil {
		span.RecordError(err)
		metrics.ExtractionTotal.WithLabelValues("error", "miss").Inc()
		return nil, err
	}

	return result.(*memory.Extraction), nil
}

func (c *Client) extractRemote(ctx context.Context, session *memory.Session) (*memory.Extraction, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire extraction slot: %w", err)
	}
	defer c.sem.Release(1)

	start := time.Now()
	payload, err := c.chat.Chat(ctx, "extraction", extractionSystemPrompt, session.Text())
	if err != nil {
		metrics.ExtractionDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}
	metrics.ExtractionDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	metrics.ExtractionTotal.WithLabelValues("ok", "miss").Inc()

	return ParsePayload(payload), nil
}

func (c *Client) store(key string, ext *memory.Extraction) {
	c.mu.Lock()
	c.cache[key] = ext
	c.mu.Unlock()
}

func (c *Client) loadFromRedis(ctx context.Context, key string) (*memory.Extraction, bool) {
	data, err := c.redisCache.Get(ctx, redisKey(key))
	if err != nil {
		return nil, false
	}
	var ext memory.Extraction
	if err := json.Unmarshal(data, &ext); err != nil {
		logger.Warn(ctx, "extraction cache decode failed", "error", err.Error())
		return nil, false
	}
	return &ext, true
}

// ClearContainer 清除容器的本地与 Redis 抽取缓存
func (c *Client) ClearContainer(ctx context.Context, containerTag string) {
	prefix := containerTag + ":"
	c.mu.Lock()
	for key := range c.cache {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.cache, key)
		}
	}
	c.mu.Unlock()

	if c.redisCache != nil {
		if err := c.redisCache.InvalidateContainer(ctx, containerTag); err != nil {
			logger.Warn(ctx, "extraction cache invalidate failed", "error", err.Error())
		}
	}
}

func redisKey(key string) string {
	return "extract:" + key
}
