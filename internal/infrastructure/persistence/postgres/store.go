package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

const insertBatchSize = 500

var stateTables = []string{
	"memory_chunks",
	"memory_facts",
	"graph_entities",
	"graph_relationships",
	"profile_facts",
}

// Store 将容器状态整体读写到 PostgreSQL
type Store struct {
	client *Client
	tx     *TxManager
}

// NewStore 创建关系型容器存储
func NewStore(client *Client) *Store {
	return &Store{
		client: client,
		tx:     NewTxManager(client),
	}
}

// Save 以删除重写的方式落盘容器状态，整体在一个事务内
func (s *Store) Save(ctx context.Context, tag string, state *memory.ContainerState) error {
	ctx, span := tracer.Start(ctx, "postgres.Store.Save",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, s.client.db)

		if err := deleteContainer(db, tag); err != nil {
			return err
		}

		if len(state.Chunks) > 0 {
			rows := make([]chunkModel, 0, len(state.Chunks))
			for _, c := range state.Chunks {
				rows = append(rows, chunkModel{
					ID:           c.ID,
					ContainerTag: tag,
					Content:      c.Content,
					SessionID:    c.SessionID,
					ChunkIndex:   c.ChunkIndex,
					Date:         c.Date,
					EventDate:    c.EventDate,
					Embedding:    pgvector.NewVector(c.Embedding),
				})
			}
			if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert chunks: %w", err)
			}
		}

		if len(state.Facts) > 0 {
			rows := make([]factModel, 0, len(state.Facts))
			for _, f := range state.Facts {
				rows = append(rows, factModel{
					ID:           f.ID,
					ContainerTag: tag,
					Content:      f.Content,
					SessionID:    f.SessionID,
					FactIndex:    f.FactIndex,
					Date:         f.Date,
					EventDate:    f.EventDate,
					Embedding:    pgvector.NewVector(f.Embedding),
				})
			}
			if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert facts: %w", err)
			}
		}

		if len(state.Entities) > 0 {
			rows := make([]entityModel, 0, len(state.Entities))
			for _, e := range state.Entities {
				rows = append(rows, entityModel{
					ContainerTag: tag,
					Name:         e.Name,
					Type:         e.Type,
					Summary:      e.Summary,
					SessionIDs:   pq.StringArray(e.SessionIDs),
				})
			}
			if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert entities: %w", err)
			}
		}

		if len(state.Relationships) > 0 {
			rows := make([]relationshipModel, 0, len(state.Relationships))
			for _, r := range state.Relationships {
				rows = append(rows, relationshipModel{
					ContainerTag: tag,
					Source:       r.Source,
					Relation:     r.Relation,
					Target:       r.Target,
					Date:         r.Date,
					SessionID:    r.SessionID,
				})
			}
			if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert relationships: %w", err)
			}
		}

		if len(state.Profile) > 0 {
			rows := make([]profileFactModel, 0, len(state.Profile))
			for i, content := range state.Profile {
				rows = append(rows, profileFactModel{
					ContainerTag: tag,
					Position:     i,
					Content:      content,
				})
			}
			if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert profile facts: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Load 读取容器状态
func (s *Store) Load(ctx context.Context, tag string) (*memory.ContainerState, error) {
	ctx, span := tracer.Start(ctx, "postgres.Store.Load",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	db := getDB(ctx, s.client.db)
	state := &memory.ContainerState{}

	var chunkRows []chunkModel
	if err := db.Where("container_tag = ?", tag).Order("id ASC").Find(&chunkRows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	for _, row := range chunkRows {
		state.Chunks = append(state.Chunks, &memory.Chunk{
			ID:         row.ID,
			Content:    row.Content,
			SessionID:  row.SessionID,
			ChunkIndex: row.ChunkIndex,
			Date:       row.Date,
			EventDate:  row.EventDate,
			Embedding:  row.Embedding.Slice(),
		})
	}

	var factRows []factModel
	if err := db.Where("container_tag = ?", tag).Order("id ASC").Find(&factRows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	for _, row := range factRows {
		state.Facts = append(state.Facts, &memory.Fact{
			ID:        row.ID,
			Content:   row.Content,
			SessionID: row.SessionID,
			FactIndex: row.FactIndex,
			Date:      row.Date,
			EventDate: row.EventDate,
			Embedding: row.Embedding.Slice(),
		})
	}

	var entityRows []entityModel
	if err := db.Where("container_tag = ?", tag).Order("name ASC").Find(&entityRows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	for _, row := range entityRows {
		state.Entities = append(state.Entities, &memory.Entity{
			Name:       row.Name,
			Type:       row.Type,
			Summary:    row.Summary,
			SessionIDs: []string(row.SessionIDs),
		})
	}

	var relRows []relationshipModel
	if err := db.Where("container_tag = ?", tag).Order("id ASC").Find(&relRows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}
	for _, row := range relRows {
		state.Relationships = append(state.Relationships, &memory.Relationship{
			Source:    row.Source,
			Relation:  row.Relation,
			Target:    row.Target,
			Date:      row.Date,
			SessionID: row.SessionID,
		})
	}

	var profileRows []profileFactModel
	if err := db.Where("container_tag = ?", tag).Order("position ASC").Find(&profileRows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load profile facts: %w", err)
	}
	for _, row := range profileRows {
		state.Profile = append(state.Profile, row.Content)
	}

	return state, nil
}

// Clear 删除容器在所有状态表中的数据
func (s *Store) Clear(ctx context.Context, tag string) error {
	ctx, span := tracer.Start(ctx, "postgres.Store.Clear",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return deleteContainer(getDB(ctx, s.client.db), tag)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Tags 列出已有状态的容器标签
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.Store.Tags")
	defer span.End()

	db := getDB(ctx, s.client.db)
	seen := make(map[string]struct{})
	for _, table := range stateTables {
		var tags []string
		if err := db.Table(table).Distinct("container_tag").Pluck("container_tag", &tags).Error; err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to list container tags from %s: %w", table, err)
		}
		for _, tag := range tags {
			seen[tag] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// Has 容器是否存在已落盘状态
func (s *Store) Has(ctx context.Context, tag string) bool {
	ctx, span := tracer.Start(ctx, "postgres.Store.Has",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	db := getDB(ctx, s.client.db)
	for _, table := range stateTables {
		var count int64
		if err := db.Table(table).Where("container_tag = ?", tag).Count(&count).Error; err != nil {
			span.RecordError(err)
			continue
		}
		if count > 0 {
			return true
		}
	}
	return false
}

func deleteContainer(db *gorm.DB, tag string) error {
	for _, table := range stateTables {
		if err := db.Exec("DELETE FROM "+table+" WHERE container_tag = ?", tag).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
