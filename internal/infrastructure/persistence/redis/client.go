// Package redis 提供抽取缓存的 Redis 连接与读穿实现
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/Jinstronda/jinstronda-memory/internal/config"
)

var tracer = otel.Tracer("redis")

const defaultDialTimeout = 5 * time.Second

// Client 抽取缓存使用的 Redis 连接
// 建连失败时调用方降级为纯进程内缓存
type Client struct {
	rdb *redis.Client
}

// NewClient 建连并验证可达性
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Client{rdb: rdb}, nil
}

// HealthCheck 探测连接可用性
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

// Close 关闭连接池
func (c *Client) Close() error {
	return c.rdb.Close()
}
