package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

func sampleState() *memory.ContainerState {
	return &memory.ContainerState{
		Chunks: []*memory.Chunk{
			{ID: "c1", Content: "chunk one", SessionID: "s1", ChunkIndex: 0, Embedding: []float32{1, 0}},
		},
		Facts: []*memory.Fact{
			{ID: "f1", Content: "likes coffee", SessionID: "s1", Embedding: []float32{0, 1}},
		},
		Entities: []*memory.Entity{
			{Name: "alice", Type: "person", Summary: "engineer", SessionIDs: []string{"s1"}},
		},
		Relationships: []*memory.Relationship{
			{Source: "alice", Relation: "works_at", Target: "acme", SessionID: "s1"},
		},
		Profile: []string{"likes coffee"},
	}
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tag1", sampleState()))
	require.True(t, s.Has(ctx, "tag1"))

	loaded, err := s.Load(ctx, "tag1")
	require.NoError(t, err)
	require.Len(t, loaded.Chunks, 1)
	require.Equal(t, "c1", loaded.Chunks[0].ID)
	require.Equal(t, []float32{1, 0}, loaded.Chunks[0].Embedding)
	require.Len(t, loaded.Facts, 1)
	require.Len(t, loaded.Entities, 1)
	require.Len(t, loaded.Relationships, 1)
	require.Equal(t, []string{"likes coffee"}, loaded.Profile)
}

func TestStore_LoadMissingContainer(t *testing.T) {
	s := NewStore(t.TempDir())

	loaded, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, loaded.Chunks)
	require.Empty(t, loaded.Facts)
	require.Empty(t, loaded.Entities)
	require.Empty(t, loaded.Profile)
}

func TestStore_CorruptFileTreatedAsAbsent(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tag1", sampleState()))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tag1", searchFile), []byte("{broken"), 0o644))

	loaded, err := s.Load(ctx, "tag1")
	require.NoError(t, err)
	require.Empty(t, loaded.Chunks)
	// 其余文件不受影响
	require.Len(t, loaded.Facts, 1)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tag1", sampleState()))
	require.NoError(t, s.Clear(ctx, "tag1"))
	require.False(t, s.Has(ctx, "tag1"))

	// 清除不存在的容器不报错
	require.NoError(t, s.Clear(ctx, "missing"))
}

func TestStore_Tags(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	tags, err := s.Tags(ctx)
	require.NoError(t, err)
	require.Empty(t, tags)

	require.NoError(t, s.Save(ctx, "beta", sampleState()))
	require.NoError(t, s.Save(ctx, "alpha", sampleState()))

	tags, err = s.Tags(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, tags)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tag1", sampleState()))

	updated := sampleState()
	updated.Profile = []string{"switched to tea"}
	require.NoError(t, s.Save(ctx, "tag1", updated))

	loaded, err := s.Load(ctx, "tag1")
	require.NoError(t, err)
	require.Equal(t, []string{"switched to tea"}, loaded.Profile)
}
