// Package ingest 实现会话摄取编排
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Jinstronda/jinstronda-memory/internal/chunker"
	"github.com/Jinstronda/jinstronda-memory/internal/container"
	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/index/graph"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/embedding"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/llm"
	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
	"github.com/Jinstronda/jinstronda-memory/pkg/metrics"
)

var tracer = otel.Tracer("ingest")

const defaultExtractionBatch = 10

// Extractor 会话抽取端口
type Extractor interface {
	Extract(ctx context.Context, containerTag string, session *memory.Session) (*memory.Extraction, error)
	ClearContainer(ctx context.Context, containerTag string)
}

// Options 摄取参数
type Options struct {
	ExtractionBatchSize int
	ChunkSize           int
	ChunkOverlap        int
}

// Orchestrator 单容器批量摄取编排器
type Orchestrator struct {
	manager  *container.Manager
	extract  Extractor
	embedder embedding.Embedder
	chat     llm.ChatClient

	batchSize int
	chunkOpts chunker.Options

	counters counters
}

// NewOrchestrator 创建摄取编排器
func NewOrchestrator(manager *container.Manager, extract Extractor, embedder embedding.Embedder, chat llm.ChatClient, opts Options) *Orchestrator {
	if opts.ExtractionBatchSize <= 0 {
		opts.ExtractionBatchSize = defaultExtractionBatch
	}
	chunkOpts := chunker.DefaultOptions()
	if opts.ChunkSize > 0 {
		chunkOpts.ChunkSize = opts.ChunkSize
	}
	if opts.ChunkOverlap > 0 {
		chunkOpts.Overlap = opts.ChunkOverlap
	}
	return &Orchestrator{
		manager:   manager,
		extract:   extract,
		embedder:  embedder,
		chat:      chat,
		batchSize: opts.ExtractionBatchSize,
		chunkOpts: chunkOpts,
	}
}

type extractedSession struct {
	session    *memory.Session
	extraction *memory.Extraction
}

// Ingest 摄取一批会话，返回新建 chunk id 列表
// 单个会话抽取失败记日志后跳过，不影响其余会话
func (o *Orchestrator) Ingest(ctx context.Context, tag string, sessions []*memory.Session) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ingest.Orchestrator.Ingest",
		trace.WithAttributes(
			attribute.String("container.tag", tag),
			attribute.Int("ingest.sessions", len(sessions)),
		))
	defer span.End()

	start := time.Now()
	c, err := o.manager.EnsureLoaded(ctx, tag)
	if err != nil {
		span.RecordError(err)
		metrics.IngestTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	extracted := o.extractSessions(ctx, tag, c, sessions)

	chunks, facts, memoriesAll := o.buildRecords(tag, extracted)

	var profileFacts []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.embedChunks(gctx, chunks)
	})
	g.Go(func() error {
		return o.embedFacts(gctx, facts)
	})
	g.Go(func() error {
		profileFacts = o.buildProfile(gctx, memoriesAll)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		metrics.IngestTotal.WithLabelValues("error").Inc()
		metrics.IngestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	c.Lock()
	c.Hybrid.AddChunks(chunks)
	c.Facts.AddFacts(facts)
	if len(profileFacts) > 0 {
		c.Profile.Merge(profileFacts)
	}
	c.Unlock()

	// 提交后的持久化失败不回滚，内存状态为准
	if err := o.manager.Persist(ctx, tag); err != nil {
		logger.Warn(ctx, "container persist failed", "container_tag", tag, "error", err.Error())
	}

	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		ids = append(ids, chunk.ID)
	}

	metrics.IngestTotal.WithLabelValues("ok").Inc()
	metrics.IngestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	metrics.IngestChunks.WithLabelValues("ok").Observe(float64(len(chunks)))
	o.counters.log(ctx, tag)

	return ids, nil
}

// extractSessions 按固定批次抽取，批内并发，图写入在批后持写锁完成
func (o *Orchestrator) extractSessions(ctx context.Context, tag string, c *container.Container, sessions []*memory.Session) []extractedSession {
	var out []extractedSession

	for startIdx := 0; startIdx < len(sessions); startIdx += o.batchSize {
		endIdx := startIdx + o.batchSize
		if endIdx > len(sessions) {
			endIdx = len(sessions)
		}
		batch := sessions[startIdx:endIdx]

		extractions := make([]*memory.Extraction, len(batch))
		var wg sync.WaitGroup
		for i, session := range batch {
			wg.Add(1)
			go func(i int, session *memory.Session) {
				defer wg.Done()
				o.counters.total.Add(1)
				ext, err := o.extract.Extract(ctx, tag, session)
				if err != nil {
					o.counters.fail.Add(1)
					logger.Warn(ctx, "session extraction failed, skipping",
						"container_tag", tag,
						"session_id", session.SessionID,
						"error", err.Error(),
					)
					return
				}
				o.counters.ok.Add(1)
				extractions[i] = ext
			}(i, session)
		}
		wg.Wait()

		c.Lock()
		for i, session := range batch {
			ext := extractions[i]
			if ext == nil {
				continue
			}
			for _, ent := range ext.Entities {
				c.Graph.AddEntity(ent.Name, ent.Type, ent.Summary, session.SessionID)
			}
			for _, rel := range ext.Relations {
				c.Graph.AddRelationship(&memory.Relationship{
					Source:    rel.Source,
					Relation:  rel.Relation,
					Target:    rel.Target,
					Date:      rel.Date,
					SessionID: session.SessionID,
				})
			}
		}
		c.Unlock()

		for i, session := range batch {
			if extractions[i] != nil {
				out = append(out, extractedSession{session: session, extraction: extractions[i]})
			}
		}
	}

	return out
}

// buildRecords 由抽取结果构造 chunk 与 fact 记录
func (o *Orchestrator) buildRecords(tag string, extracted []extractedSession) ([]*memory.Chunk, []*memory.Fact, []string) {
	var chunks []*memory.Chunk
	var facts []*memory.Fact
	var memoriesAll []string

	for _, item := range extracted {
		text := strings.TrimSpace(item.extraction.MemoriesText)
		if text == "" {
			continue
		}
		memoriesAll = append(memoriesAll, text)

		date := item.session.Date
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}

		content := "# Memories from " + date + "\n\n" + text
		for i, piece := range chunker.Chunk(content, o.chunkOpts) {
			chunks = append(chunks, &memory.Chunk{
				ID:         fmt.Sprintf("%s_%s_%d", tag, item.session.SessionID, i),
				Content:    piece,
				SessionID:  item.session.SessionID,
				ChunkIndex: i,
				Date:       date,
			})
		}

		factIndex := 0
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			facts = append(facts, &memory.Fact{
				ID:        fmt.Sprintf("%s_%s_fact_%d", tag, item.session.SessionID, factIndex),
				Content:   line,
				SessionID: item.session.SessionID,
				FactIndex: factIndex,
				Date:      date,
			})
			factIndex++
		}
	}

	return chunks, facts, memoriesAll
}

func (o *Orchestrator) embedChunks(ctx context.Context, chunks []*memory.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

func (o *Orchestrator) embedFacts(ctx context.Context, facts []*memory.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	texts := make([]string, len(facts))
	for i, fact := range facts {
		texts[i] = fact.Content
	}
	vectors, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed facts: %w", err)
	}
	for i := range facts {
		facts[i].Embedding = vectors[i]
	}
	return nil
}

// StoreText 将自由文本作为单轮合成会话摄取
func (o *Orchestrator) StoreText(ctx context.Context, tag, text string) error {
	session := &memory.Session{
		SessionID: uuid.NewString(),
		Turns:     []memory.Turn{{Role: "user", Content: text}},
	}
	_, err := o.Ingest(ctx, tag, []*memory.Session{session})
	return err
}

// Clear 清空容器的索引、持久化状态与抽取缓存
func (o *Orchestrator) Clear(ctx context.Context, tag string) error {
	ctx, span := tracer.Start(ctx, "ingest.Orchestrator.Clear",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	if err := o.manager.Clear(ctx, tag); err != nil {
		span.RecordError(err)
		return err
	}
	o.extract.ClearContainer(ctx, tag)
	return nil
}

// DedupeGraph 清理容器图：删除垃圾边并合并同端点对上的同义关系名
func (o *Orchestrator) DedupeGraph(ctx context.Context, tag string) (graph.DedupeStats, error) {
	ctx, span := tracer.Start(ctx, "ingest.Orchestrator.DedupeGraph",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	c, err := o.manager.EnsureLoaded(ctx, tag)
	if err != nil {
		span.RecordError(err)
		return graph.DedupeStats{}, err
	}

	c.RLock()
	names := c.Graph.RelationNamesForDedupe(tag)
	c.RUnlock()

	vectors := make(map[string][]float32, len(names))
	if len(names) > 0 {
		embeddings, err := o.embedder.Embed(ctx, names)
		if err != nil {
			// 嵌入不可用时仍执行垃圾边清理
			logger.Warn(ctx, "relation name embedding failed", "container_tag", tag, "error", err.Error())
		} else {
			for i, name := range names {
				vectors[name] = embeddings[i]
			}
		}
	}

	c.Lock()
	stats := c.Graph.Dedupe(tag, vectors)
	c.Unlock()

	logger.Info(ctx, "graph dedupe finished",
		"container_tag", tag,
		"garbage_deleted", stats.GarbageDeleted,
		"clusters_merged", stats.ClustersMerged,
		"edges_deleted", stats.EdgesDeleted,
		"edges_before", stats.EdgesBefore,
		"edges_after", stats.EdgesAfter)

	if stats.GarbageDeleted > 0 || stats.EdgesDeleted > 0 {
		if err := o.manager.Persist(ctx, tag); err != nil {
			logger.Warn(ctx, "container persist failed", "container_tag", tag, "error", err.Error())
		}
	}
	return stats, nil
}
