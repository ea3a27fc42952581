package facts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

func fact(id, content, sessionID string, emb []float32) *memory.Fact {
	return &memory.Fact{ID: id, Content: content, SessionID: sessionID, Embedding: emb}
}

func TestStore_SearchOrdersByCosine(t *testing.T) {
	s := NewStore()
	s.AddFacts([]*memory.Fact{
		fact("f1", "likes coffee", "s1", []float32{1, 0}),
		fact("f2", "owns a dog", "s2", []float32{0, 1}),
		fact("f3", "drinks espresso", "s1", []float32{0.9, 0.1}),
	})

	got := s.Search([]float32{1, 0}, 2)
	require.Len(t, got, 2)
	require.Equal(t, "f1", got[0].Fact.ID)
	require.Equal(t, "f3", got[1].Fact.ID)
	require.Greater(t, got[0].Score, got[1].Score)
}

func TestStore_SearchTieBreaksOnID(t *testing.T) {
	s := NewStore()
	s.AddFacts([]*memory.Fact{
		fact("fb", "b", "s1", []float32{1, 0}),
		fact("fa", "a", "s1", []float32{1, 0}),
	})

	got := s.Search([]float32{1, 0}, 5)
	require.Len(t, got, 2)
	require.Equal(t, "fa", got[0].Fact.ID)
	require.Equal(t, "fb", got[1].Fact.ID)
}

func TestStore_SearchEmptyOrZeroLimit(t *testing.T) {
	s := NewStore()
	require.Nil(t, s.Search([]float32{1}, 5))

	s.AddFacts([]*memory.Fact{fact("f1", "x", "s1", []float32{1})})
	require.Nil(t, s.Search([]float32{1}, 0))
}

func TestStore_AddFactsIdempotent(t *testing.T) {
	s := NewStore()
	f := fact("f1", "x", "s1", []float32{1})
	s.AddFacts([]*memory.Fact{f, f, nil, {ID: ""}})
	require.Equal(t, 1, s.Count())
}

func TestStore_StateRestoreRoundtrip(t *testing.T) {
	s := NewStore()
	s.AddFacts([]*memory.Fact{
		fact("f2", "b", "s1", []float32{0, 1}),
		fact("f1", "a", "s1", []float32{1, 0}),
	})

	state := s.State()
	require.Len(t, state, 2)
	require.Equal(t, "f1", state[0].ID)

	restored := NewStore()
	restored.Restore(state)
	require.Equal(t, 2, restored.Count())
	require.True(t, restored.HasData())
}
