package memorysrv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWindowCache(t *testing.T, window int) (*WindowCache, *memory.InMemoryCache, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backend := memory.NewInMemoryCache()
	backend.SetClock(func() time.Time { return now })
	c := NewWindowCache(backend, &config.MemoryConfig{
		CacheTTL:    24 * time.Hour,
		CacheWindow: window,
		KeyPrefix:   "chat:memory:",
	})
	c.now = func() time.Time { return now }
	return c, backend, &now
}

func TestWindowCache_HitRefreshesTTL(t *testing.T) {
	c, backend, now := newWindowCache(t, 7)
	ctx := context.Background()
	id := kernel.ConversationID("c1")

	c.Replace(ctx, id, sys, nil, 0)
	*now = now.Add(20 * time.Hour)
	assert.Equal(t, 4*time.Hour, backend.TTL("chat:memory:c1"))

	_, ok := c.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, backend.TTL("chat:memory:c1"))
	assert.True(t, c.Exists(ctx, id))
}

func TestWindowCache_ReplaceSyncsCounterAndTrims(t *testing.T) {
	c, _, _ := newWindowCache(t, 3)
	ctx := context.Background()
	id := kernel.ConversationID("c1")

	turns := []memory.Turn{
		{ConversationID: id, Index: 4, Message: question},
		{ConversationID: id, Index: 5, Message: call},
		{ConversationID: id, Index: 6, Message: result},
		{ConversationID: id, Index: 7, Message: reply},
	}
	w := c.Replace(ctx, id, sys, turns, 9)

	assert.Equal(t, 9, w.CurrentTurnIndex)
	// start lands on the result at index 6 and moves past it.
	assert.Equal(t, []int{0, 7}, indices(w.Turns))

	got, ok := c.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, w.Messages(), got.Messages())
}

func TestWindowCache_AppendIncrementalCountsFromCache(t *testing.T) {
	c, _, _ := newWindowCache(t, 7)
	ctx := context.Background()
	id := kernel.ConversationID("c1")

	w := c.Replace(ctx, id, sys, []memory.Turn{{ConversationID: id, Index: 1, Message: question}}, 1)
	w = c.AppendIncremental(ctx, w, []llm.Message{question, call})

	assert.Equal(t, []int{0, 1, 2}, indices(w.Turns))
	assert.Equal(t, 2, w.CurrentTurnIndex)

	// Already cached messages are not appended twice.
	w = c.AppendIncremental(ctx, w, []llm.Message{question, call})
	assert.Len(t, w.Turns, 3)
}

func TestWindowCache_UnreadableValueIsMiss(t *testing.T) {
	c, backend, _ := newWindowCache(t, 7)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "chat:memory:c1", []byte{0xff, 0x00}, time.Hour))
	_, ok := c.Get(ctx, "c1")
	assert.False(t, ok)

	backend.FailWith("get", errors.New("connection reset"))
	_, ok = c.Get(ctx, "c1")
	assert.False(t, ok)
}

func TestWindowCache_WriteFailureIsSwallowed(t *testing.T) {
	c, backend, _ := newWindowCache(t, 7)
	ctx := context.Background()

	backend.FailWith("set", errors.New("read-only replica"))
	w := c.Replace(ctx, "c1", sys, nil, 0)
	require.NotNil(t, w)
	assert.False(t, c.Exists(ctx, "c1"))
}
