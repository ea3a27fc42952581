// Package main 记忆检索服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Jinstronda/jinstronda-memory/internal/application/ingest"
	"github.com/Jinstronda/jinstronda-memory/internal/application/search"
	"github.com/Jinstronda/jinstronda-memory/internal/config"
	"github.com/Jinstronda/jinstronda-memory/internal/container"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/embedding"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/extractor"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/llm"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/persistence/postgres"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/persistence/redis"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/persistence/snapshot"
	"github.com/Jinstronda/jinstronda-memory/internal/interfaces/http/handler"
	"github.com/Jinstronda/jinstronda-memory/internal/interfaces/http/router"
	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
	"github.com/Jinstronda/jinstronda-memory/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting rag-server",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	if cfg.LLM.APIKey == "" {
		logger.Fatal(ctx, "missing API key", fmt.Errorf("OPENAI_API_KEY is not set"))
	}

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Env:            cfg.App.Env,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 持久化后端：配置了 DATABASE_URL 时用 Postgres，否则用文件快照
	var (
		store    container.Store
		pgClient *postgres.Client
	)
	if cfg.Persistence.DatabaseURL != "" {
		pgClient, err = postgres.NewClient(cfg.Persistence.DatabaseURL, &cfg.Persistence.Postgres)
		if err != nil {
			logger.Fatal(ctx, "failed to init postgres", err)
		}
		defer func() { _ = pgClient.Close() }()

		if err := pgClient.Migrate(ctx); err != nil {
			logger.Fatal(ctx, "failed to migrate postgres", err)
		}
		store = postgres.NewStore(pgClient)
		log.Info("persistence backend", "backend", "postgres")
	} else {
		store = snapshot.NewStore(cfg.Persistence.CacheDir)
		log.Info("persistence backend", "backend", "snapshot", "dir", cfg.Persistence.CacheDir)
	}

	// Redis 抽取缓存（可选）
	var (
		redisClient *redis.Client
		redisCache  *redis.Cache
	)
	if cfg.Cache.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			log.Warn("redis unavailable, extraction cache disabled", "error", err)
		} else {
			defer func() { _ = redisClient.Close() }()
			redisCache = redis.NewCache(redisClient)
		}
	}

	chat := llm.NewClient(&cfg.LLM)
	embedder := embedding.NewClient(&cfg.Embedding, cfg.LLM.APIKey)
	extract := extractor.NewClient(chat, cfg.Extraction.MaxConcurrent, cfg.Extraction.CacheTTL, redisCache)

	manager := container.NewManager(store)
	orchestrator := ingest.NewOrchestrator(manager, extract, embedder, chat, ingest.Options{
		ExtractionBatchSize: cfg.Extraction.BatchSize,
		ChunkSize:           cfg.Retrieval.ChunkSize,
		ChunkOverlap:        cfg.Retrieval.ChunkOverlap,
	})
	pipeline := search.NewPipeline(manager, embedder, chat, search.Options{
		RerankEnabled:    cfg.Retrieval.RerankEnabled,
		RerankOverfetch:  cfg.Retrieval.RerankOverfetch,
		RewriteEnabled:   cfg.Retrieval.RewriteEnabled,
		GraphEnabled:     cfg.Retrieval.GraphEnabled,
		DecomposeEnabled: cfg.Retrieval.DecomposeEnabled,
	})

	healthHandler := handler.NewHealthHandler(pgClient, redisClient)
	memoryHandler := handler.NewMemoryHandler(manager, orchestrator, pipeline)
	r := router.New(cfg, healthHandler, memoryHandler)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
