package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/container"
	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

func rerankChunks() []*memory.Chunk {
	return []*memory.Chunk{
		{ID: "c1", Content: "User moved to Berlin.", SessionID: "s1", ChunkIndex: 0, Embedding: []float32{1, 0}},
		{ID: "c2", Content: "User adopted a cat.", SessionID: "s2", ChunkIndex: 0, Embedding: []float32{0.7, 0.7}},
		{ID: "c3", Content: "User changed jobs.", SessionID: "s3", ChunkIndex: 0, Embedding: []float32{0, 1}},
	}
}

func TestParseRerankPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		count   int
		want    []float64
		wantErr bool
	}{
		{
			name:    "plain array",
			payload: `[{"index":0,"score":0.5},{"index":2,"score":0.9}]`,
			count:   3,
			want:    []float64{0.5, 0, 0.9},
		},
		{
			name:    "fenced array",
			payload: "```json\n[{\"index\":1,\"score\":1}]\n```",
			count:   2,
			want:    []float64{0, 1},
		},
		{
			name:    "out of range index ignored",
			payload: `[{"index":5,"score":1}]`,
			count:   2,
			want:    []float64{0, 0},
		},
		{
			name:    "no array",
			payload: "cannot rank these",
			wantErr: true,
		},
		{
			name:    "broken json",
			payload: "[{broken]",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRerankPayload(tt.payload, tt.count)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPipeline_RerankReorders(t *testing.T) {
	m := container.NewManager(newMemStore())
	seed(m, "tag1", func(c *container.Container) {
		c.Hybrid.AddChunks(rerankChunks())
	})

	emb := &mapEmbedder{vectors: map[string][]float32{"zzz": {1, 0}}}
	chat := &stubChat{payloads: map[string]string{
		"rerank": `[{"index":2,"score":0.9},{"index":1,"score":0.5},{"index":0,"score":0.1}]`,
	}}
	p := NewPipeline(m, emb, chat, Options{RerankEnabled: true, RerankOverfetch: 10})

	results, err := p.Search(context.Background(), "tag1", "zzz", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "c3", results[0].ChunkID)
	require.Equal(t, "c2", results[1].ChunkID)
	require.InDelta(t, 0.9, results[0].RerankScore, 1e-9)
	require.Equal(t, []string{"rerank"}, chat.purposes)
}

func TestPipeline_RerankFallsBackOnChatError(t *testing.T) {
	m := container.NewManager(newMemStore())
	seed(m, "tag1", func(c *container.Container) {
		c.Hybrid.AddChunks(rerankChunks())
	})

	emb := &mapEmbedder{vectors: map[string][]float32{"zzz": {1, 0}}}
	chat := &stubChat{errs: map[string]error{"rerank": fmt.Errorf("upstream down")}}
	p := NewPipeline(m, emb, chat, Options{RerankEnabled: true, RerankOverfetch: 10})

	results, err := p.Search(context.Background(), "tag1", "zzz", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// 保持混合排序
	require.Equal(t, "c1", results[0].ChunkID)
	require.Equal(t, "c2", results[1].ChunkID)
}

func TestPipeline_RerankFallsBackOnBadPayload(t *testing.T) {
	m := container.NewManager(newMemStore())
	seed(m, "tag1", func(c *container.Container) {
		c.Hybrid.AddChunks(rerankChunks())
	})

	emb := &mapEmbedder{vectors: map[string][]float32{"zzz": {1, 0}}}
	chat := &stubChat{payloads: map[string]string{"rerank": "no scores today"}}
	p := NewPipeline(m, emb, chat, Options{RerankEnabled: true, RerankOverfetch: 10})

	results, err := p.Search(context.Background(), "tag1", "zzz", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "c1", results[0].ChunkID)
}
