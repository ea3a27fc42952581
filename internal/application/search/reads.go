package search

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/index/graph"
)

const defaultMemoriesLimit = 100

// Memories 列出容器内已存储的 chunk
func (p *Pipeline) Memories(ctx context.Context, tag string, limit int) ([]*memory.Chunk, error) {
	ctx, span := tracer.Start(ctx, "search.Pipeline.Memories",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	if limit <= 0 {
		limit = defaultMemoriesLimit
	}

	c, err := p.manager.EnsureLoaded(ctx, tag)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.RLock()
	chunks := c.Hybrid.State()
	c.RUnlock()

	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// GraphRelations 检索端点命中查询词的关系
func (p *Pipeline) GraphRelations(ctx context.Context, tag, query string, limit int) ([]*memory.Relationship, error) {
	ctx, span := tracer.Start(ctx, "search.Pipeline.GraphRelations",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	c, err := p.manager.EnsureLoaded(ctx, tag)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.RLock()
	relations := c.Graph.SearchRelations(query, limit)
	c.RUnlock()
	return relations, nil
}

// GraphDeep 由查询发现种子实体后做受限 BFS
func (p *Pipeline) GraphDeep(ctx context.Context, tag, query string, maxHops int) ([]*memory.Entity, []*memory.Relationship, error) {
	ctx, span := tracer.Start(ctx, "search.Pipeline.GraphDeep",
		trace.WithAttributes(
			attribute.String("container.tag", tag),
			attribute.Int("graph.max_hops", maxHops),
		))
	defer span.End()

	if maxHops <= 0 || maxHops > graph.MaxHops {
		maxHops = graph.MaxHops
	}

	c, err := p.manager.EnsureLoaded(ctx, tag)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	c.RLock()
	seeds := c.Graph.FindEntitiesInQuery(query)
	entities, relationships := c.Graph.Context(seeds, maxHops)
	c.RUnlock()
	return entities, relationships, nil
}
