package search

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/container"
	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

func TestIsCountingQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"how many cities did I visit", true},
		{"Count my trips", true},
		{"what is the number of pets", true},
		{"total amount spent on rent", true},
		{"HOW MANY times did we meet", true},
		{"where do I live", false},
		{"accountant salary", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			require.Equal(t, tt.want, isCountingQuery(tt.query))
		})
	}
}

func TestPipeline_Decompose(t *testing.T) {
	m := container.NewManager(newMemStore())
	ctx := context.Background()

	t.Run("parses dashed lines", func(t *testing.T) {
		chat := &stubChat{payloads: map[string]string{"decompose": "- first trip\n- second trip\n\nthird trip"}}
		p := NewPipeline(m, &mapEmbedder{}, chat, Options{DecomposeEnabled: true})
		require.Equal(t, []string{"first trip", "second trip", "third trip"}, p.decompose(ctx, "how many trips"))
	})

	t.Run("caps sub-query count", func(t *testing.T) {
		var lines []string
		for i := 0; i < 8; i++ {
			lines = append(lines, fmt.Sprintf("- sub %d", i))
		}
		chat := &stubChat{payloads: map[string]string{"decompose": strings.Join(lines, "\n")}}
		p := NewPipeline(m, &mapEmbedder{}, chat, Options{DecomposeEnabled: true})
		require.Len(t, p.decompose(ctx, "how many"), maxSubQueries)
	})

	t.Run("chat error yields nil", func(t *testing.T) {
		chat := &stubChat{errs: map[string]error{"decompose": fmt.Errorf("down")}}
		p := NewPipeline(m, &mapEmbedder{}, chat, Options{DecomposeEnabled: true})
		require.Nil(t, p.decompose(ctx, "how many"))
	})
}

func TestPipeline_UnionSubQueries(t *testing.T) {
	m := container.NewManager(newMemStore())
	c := seed(m, "tag1", func(c *container.Container) {
		c.Hybrid.AddChunks([]*memory.Chunk{
			{ID: "c1", Content: "User visited Paris.", SessionID: "s1", ChunkIndex: 0, Embedding: []float32{1, 0}},
			{ID: "c2", Content: "User visited Rome.", SessionID: "s2", ChunkIndex: 0, Embedding: []float32{0, 1}},
		})
	})

	emb := &mapEmbedder{vectors: map[string][]float32{
		"paris trip": {1, 0},
		"rome trip":  {0, 1},
	}}
	chat := &stubChat{payloads: map[string]string{"decompose": "- paris trip\n- rome trip"}}
	p := NewPipeline(m, emb, chat, Options{DecomposeEnabled: true})
	ctx := context.Background()

	base := []*memory.SearchResult{
		{Type: memory.ResultChunk, Content: "User visited Paris.", Score: 0.8, SessionID: "s1", ChunkIndex: 0, ChunkID: "c1"},
	}

	got := p.unionSubQueries(ctx, c, "how many cities", base, 1)
	require.Len(t, got, 2)

	ids := []string{got[0].ChunkID, got[1].ChunkID}
	require.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestPipeline_UnionSubQueriesNoDecomposition(t *testing.T) {
	m := container.NewManager(newMemStore())
	c := seed(m, "tag1", func(c *container.Container) {})

	chat := &stubChat{errs: map[string]error{"decompose": fmt.Errorf("down")}}
	p := NewPipeline(m, &mapEmbedder{}, chat, Options{DecomposeEnabled: true})

	base := []*memory.SearchResult{{Type: memory.ResultChunk, ChunkID: "c1"}}
	got := p.unionSubQueries(context.Background(), c, "how many", base, 5)
	require.Equal(t, base, got)
}
