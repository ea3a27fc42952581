package extractor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

type fakeChat struct {
	calls   atomic.Int64
	payload string
	err     error
}

func (f *fakeChat) Chat(ctx context.Context, purpose, system, user string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.payload, nil
}

func session(id string) *memory.Session {
	return &memory.Session{
		SessionID: id,
		Turns:     []memory.Turn{{Role: "user", Content: "I moved to Berlin"}},
	}
}

func TestClient_ExtractCachesBySession(t *testing.T) {
	chat := &fakeChat{payload: "User moved to Berlin.\nENTITY|Berlin|place"}
	c := NewClient(chat, 10, 0, nil)
	ctx := context.Background()

	first, err := c.Extract(ctx, "tag", session("s1"))
	require.NoError(t, err)
	require.Equal(t, "User moved to Berlin.", first.MemoriesText)
	require.Len(t, first.Entities, 1)

	second, err := c.Extract(ctx, "tag", session("s1"))
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, int64(1), chat.calls.Load())
}

func TestClient_ExtractCacheKeyIncludesContainer(t *testing.T) {
	chat := &fakeChat{payload: "memory line"}
	c := NewClient(chat, 10, 0, nil)
	ctx := context.Background()

	_, err := c.Extract(ctx, "tag-a", session("s1"))
	require.NoError(t, err)
	_, err = c.Extract(ctx, "tag-b", session("s1"))
	require.NoError(t, err)
	require.Equal(t, int64(2), chat.calls.Load())
}

func TestClient_ExtractPropagatesError(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("upstream down")}
	c := NewClient(chat, 10, 0, nil)

	_, err := c.Extract(context.Background(), "tag", session("s1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "extraction call failed")
}

func TestClient_ClearContainerDropsCache(t *testing.T) {
	chat := &fakeChat{payload: "memory line"}
	c := NewClient(chat, 10, 0, nil)
	ctx := context.Background()

	_, err := c.Extract(ctx, "tag", session("s1"))
	require.NoError(t, err)

	c.ClearContainer(ctx, "tag")

	_, err = c.Extract(ctx, "tag", session("s1"))
	require.NoError(t, err)
	require.Equal(t, int64(2), chat.calls.Load())
}
