package hybrid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases", "Hello World", []string{"hello", "world"}},
		{"strips punctuation", "cat, dog! fish?", []string{"cat", "dog", "fish"}},
		{"drops single chars", "a b cd", []string{"cd"}},
		{"keeps digits", "version 42", []string{"version", "42"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBM25_ScoresTermMatches(t *testing.T) {
	idx := newBM25Index()
	idx.Add("d1", "the cat sat on the mat")
	idx.Add("d2", "dogs bark at the moon")
	idx.Add("d3", "cat cat cat everywhere")

	query := Tokenize("cat")

	s1 := idx.Score(query, "d1")
	s2 := idx.Score(query, "d2")
	s3 := idx.Score(query, "d3")

	require.Greater(t, s1, 0.0)
	require.Zero(t, s2)
	// 高词频文档得分更高
	require.Greater(t, s3, s1)
}

func TestBM25_UnknownDoc(t *testing.T) {
	idx := newBM25Index()
	idx.Add("d1", "hello world")
	require.Zero(t, idx.Score(Tokenize("hello"), "missing"))
}

func TestBM25_ReAddReplacesDoc(t *testing.T) {
	idx := newBM25Index()
	idx.Add("d1", "old content about cats")
	idx.Add("d1", "new content about dogs")

	require.Equal(t, 1, idx.Len())
	require.Zero(t, idx.Score(Tokenize("cats"), "d1"))
	require.Greater(t, idx.Score(Tokenize("dogs"), "d1"), 0.0)
}

func TestBM25_Remove(t *testing.T) {
	idx := newBM25Index()
	idx.Add("d1", "alpha beta")
	idx.Add("d2", "alpha gamma")
	idx.Remove("d1")

	require.Equal(t, 1, idx.Len())
	require.Zero(t, idx.Score(Tokenize("beta"), "d1"))
	require.Greater(t, idx.Score(Tokenize("alpha"), "d2"), 0.0)

	// 重复移除无副作用
	idx.Remove("d1")
	require.Equal(t, 1, idx.Len())
}
