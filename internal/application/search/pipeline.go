// Package search 实现端到端检索流水线
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jinstronda/jinstronda-memory/internal/container"
	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/index/facts"
	"github.com/Jinstronda/jinstronda-memory/internal/index/graph"
	"github.com/Jinstronda/jinstronda-memory/internal/index/hybrid"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/embedding"
	"github.com/Jinstronda/jinstronda-memory/internal/infrastructure/llm"
	"github.com/Jinstronda/jinstronda-memory/pkg/metrics"
)

var tracer = otel.Tracer("search")

const (
	defaultLimit       = 10
	factSearchLimit    = 30
	sessionBoost       = 0.1
	injectionFactCount = 10
)

// Options 流水线开关
type Options struct {
	RerankEnabled    bool
	RerankOverfetch  int
	RewriteEnabled   bool
	GraphEnabled     bool
	DecomposeEnabled bool
}

// Pipeline 检索流水线
type Pipeline struct {
	manager  *container.Manager
	embedder embedding.Embedder
	chat     llm.ChatClient
	opts     Options
}

// NewPipeline 创建检索流水线
func NewPipeline(manager *container.Manager, embedder embedding.Embedder, chat llm.ChatClient, opts Options) *Pipeline {
	if opts.RerankOverfetch <= 0 {
		opts.RerankOverfetch = defaultLimit
	}
	return &Pipeline{
		manager:  manager,
		embedder: embedder,
		chat:     chat,
		opts:     opts,
	}
}

// Search 执行检索，返回异构结果列表
// 不存在的容器返回空列表
func (p *Pipeline) Search(ctx context.Context, tag, query string, limit int) ([]*memory.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "search.Pipeline.Search",
		trace.WithAttributes(
			attribute.String("container.tag", tag),
			attribute.Int("search.limit", limit),
		))
	defer span.End()

	start := time.Now()
	if limit <= 0 {
		limit = defaultLimit
	}

	searchQuery := query
	if p.opts.RewriteEnabled {
		searchQuery = p.rewriteQuery(ctx, query)
	}

	queryEmbedding, err := p.embedQuery(ctx, searchQuery)
	if err != nil {
		span.RecordError(err)
		metrics.SearchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	c, err := p.manager.EnsureLoaded(ctx, tag)
	if err != nil {
		span.RecordError(err)
		metrics.SearchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	overfetch := limit
	if p.opts.RerankEnabled {
		if overfetch < p.opts.RerankOverfetch {
			overfetch = p.opts.RerankOverfetch
		}
	}

	var (
		factHits []facts.ScoredFact
		results  []*memory.SearchResult
		seeds    []string
	)

	c.RLock()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		factHits = c.Facts.Search(queryEmbedding, factSearchLimit)
	}()
	go func() {
		defer wg.Done()
		results = c.Hybrid.Search(queryEmbedding, searchQuery, overfetch)
	}()
	go func() {
		defer wg.Done()
		seeds = c.Graph.FindEntitiesInQuery(query)
	}()
	wg.Wait()
	c.RUnlock()

	if p.opts.DecomposeEnabled && isCountingQuery(query) {
		results = p.unionSubQueries(ctx, c, query, results, overfetch)
	}

	results = p.applyFactSignals(c, factHits, results)

	if p.opts.RerankEnabled && len(results) > limit {
		results = p.rerank(ctx, query, results, limit)
	} else if len(results) > limit {
		results = results[:limit]
	}

	if p.opts.GraphEnabled && len(seeds) > 0 {
		results = append(results, p.graphContext(c, seeds)...)
	}

	c.RLock()
	if c.Profile.HasData() {
		results = append(results, &memory.SearchResult{
			Type:    memory.ResultProfile,
			Content: c.Profile.Format(),
		})
	}
	c.RUnlock()

	metrics.SearchTotal.WithLabelValues("ok").Inc()
	metrics.SearchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

func (p *Pipeline) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// applyFactSignals 施加会话加权与父块注入
// 注入块携带 fact 得分，稀疏与稠密分量清零
func (p *Pipeline) applyFactSignals(c *container.Container, factHits []facts.ScoredFact, results []*memory.SearchResult) []*memory.SearchResult {
	if len(factHits) == 0 {
		return results
	}

	boostSessions := make(map[string]struct{}, len(factHits))
	for _, hit := range factHits {
		boostSessions[hit.Fact.SessionID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r.ChunkID != "" {
			seen[r.ChunkID] = struct{}{}
		}
		if _, ok := boostSessions[r.SessionID]; ok {
			r.Score += sessionBoost
		}
	}
	hybrid.SortResults(results)

	topFacts := factHits
	if len(topFacts) > injectionFactCount {
		topFacts = topFacts[:injectionFactCount]
	}

	c.RLock()
	for _, hit := range topFacts {
		for _, chunk := range c.Hybrid.ChunksBySession(hit.Fact.SessionID) {
			if _, ok := seen[chunk.ID]; ok {
				continue
			}
			if hit.Fact.Content == "" || !strings.Contains(chunk.Content, hit.Fact.Content) {
				continue
			}
			seen[chunk.ID] = struct{}{}
			results = append(results, &memory.SearchResult{
				Type:       memory.ResultChunk,
				Content:    chunk.Content,
				Score:      hit.Score,
				SessionID:  chunk.SessionID,
				ChunkIndex: chunk.ChunkIndex,
				ChunkID:    chunk.ID,
				Date:       chunk.Date,
			})
		}
	}
	c.RUnlock()

	hybrid.SortResults(results)
	return results
}

// graphContext 以种子实体做受限 BFS，产出独立的图结果记录
func (p *Pipeline) graphContext(c *container.Container, seeds []string) []*memory.SearchResult {
	c.RLock()
	entities, relationships := c.Graph.Context(seeds, graph.MaxHops)
	c.RUnlock()

	out := make([]*memory.SearchResult, 0, len(entities)+len(relationships))
	for _, ent := range entities {
		out = append(out, &memory.SearchResult{
			Type:       memory.ResultEntity,
			Content:    ent.Summary,
			Name:       ent.Name,
			EntityType: ent.Type,
		})
	}
	for _, rel := range relationships {
		out = append(out, &memory.SearchResult{
			Type:     memory.ResultRelationship,
			Content:  rel.Source + " " + rel.Relation + " " + rel.Target,
			Source:   rel.Source,
			Relation: rel.Relation,
			Target:   rel.Target,
			Date:     rel.Date,
		})
	}
	return out
}
