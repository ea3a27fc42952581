package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk_Empty(t *testing.T) {
	require.Nil(t, Chunk("", DefaultOptions()))
	require.Nil(t, Chunk("   \n  ", DefaultOptions()))
}

func TestChunk_ShortText(t *testing.T) {
	chunks := Chunk("hello world", DefaultOptions())
	require.Len(t, chunks, 1)
	require.Equal(t, "hello world", chunks[0])
}

func TestChunk_InvalidOptionsFallBackToDefaults(t *testing.T) {
	text := strings.Repeat("word ", 10)
	chunks := Chunk(text, Options{ChunkSize: 0})
	require.Len(t, chunks, 1)
}

func TestChunk_SplitsLongText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 80; i++ {
		b.WriteString("This is a sentence about something that happened. ")
	}
	text := b.String()

	chunks := Chunk(text, Options{ChunkSize: 400, Overlap: 80})
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 400)
		require.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma delta. ", 40)
	chunks := Chunk(text, Options{ChunkSize: 300, Overlap: 50})
	require.Greater(t, len(chunks), 1)
	// 切分点应落在句号边界上
	require.True(t, strings.HasSuffix(chunks[0], "."), "chunk should end at a sentence boundary, got %q", chunks[0])
}

func TestChunk_OverlapRepeatsContent(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight nine ten ", 30)
	chunks := Chunk(text, Options{ChunkSize: 200, Overlap: 100})
	require.Greater(t, len(chunks), 1)

	// 相邻块应共享尾部内容
	tail := chunks[0][len(chunks[0])-20:]
	require.Contains(t, chunks[1], strings.TrimSpace(tail))
}

func TestChunk_NoSpacesHardCut(t *testing.T) {
	text := strings.Repeat("a", 1000)
	chunks := Chunk(text, Options{ChunkSize: 300, Overlap: 0})
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 300)
	}
}
