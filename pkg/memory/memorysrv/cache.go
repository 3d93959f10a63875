package memorysrv

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
)

// WindowCache keeps the bounded window of each conversation in a
// key-value backend. Backend failures never surface: a failed read is a
// miss and a failed write is logged and dropped.
type WindowCache struct {
	backend  memory.Cache
	ttl      time.Duration
	capacity int
	prefix   string
	now      func() time.Time
}

func NewWindowCache(backend memory.Cache, cfg *config.MemoryConfig) *WindowCache {
	return &WindowCache{
		backend:  backend,
		ttl:      cfg.CacheTTL,
		capacity: cfg.CacheWindow,
		prefix:   cfg.KeyPrefix,
		now:      time.Now,
	}
}

func (c *WindowCache) key(id kernel.ConversationID) string {
	return c.prefix + id.String()
}

// Get returns the cached window and refreshes its TTL.
func (c *WindowCache) Get(ctx context.Context, id kernel.ConversationID) (*memory.Window, bool) {
	key := c.key(id)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, memory.ErrCacheMiss()) {
			logx.WithFields(logx.Fields{
				"conversation_id": id,
				"error":           err.Error(),
			}).Warn("cache read failed, treating as miss")
		}
		return nil, false
	}

	w, degraded, err := memory.DecodeWindow(data)
	if err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("cached window unreadable, treating as miss")
		return nil, false
	}
	if degraded > 0 {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"placeholders":    degraded,
		}).Warn("cached window contained malformed tool payloads")
	}

	if err := c.backend.Expire(ctx, key, c.ttl); err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": id,
			"error":           err.Error(),
		}).Warn("cache ttl refresh failed")
	}
	return w, true
}

// Replace rebuilds the window from the system message and the given
// non-system turns (ascending), syncs the running counter to
// currentIndex, trims and stores it.
func (c *WindowCache) Replace(ctx context.Context, id kernel.ConversationID, system llm.Message, turns []memory.Turn, currentIndex int) *memory.Window {
	w := memory.NewWindow(id, system, c.now())
	w.Turns = append(w.Turns, turns...)
	w.CurrentTurnIndex = max(currentIndex, memory.MaxIndex(turns))
	return c.Store(ctx, w)
}

// AppendIncremental appends the messages of nonSystem beyond the count
// already in w, numbering them from the running counter, then trims and
// stores the window.
func (c *WindowCache) AppendIncremental(ctx context.Context, w *memory.Window, nonSystem []llm.Message) *memory.Window {
	now := c.now()
	for _, m := range nonSystem[min(w.NonSystemCount(), len(nonSystem)):] {
		w.Append(memory.Turn{
			ConversationID: w.ConversationID,
			Index:          w.CurrentTurnIndex + 1,
			Message:        m,
			CreatedAt:      now,
		})
	}
	return c.Store(ctx, w)
}

// Store trims w to capacity and writes it with a fresh TTL.
func (c *WindowCache) Store(ctx context.Context, w *memory.Window) *memory.Window {
	w.Turns = memory.Trim(w.Turns, c.capacity)
	w.LastAccessAt = c.now()

	data, err := memory.EncodeWindow(w)
	if err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": w.ConversationID,
			"error":           err.Error(),
		}).Warn("window encoding failed, cache not updated")
		return w
	}
	if err := c.backend.Set(ctx, c.key(w.ConversationID), data, c.ttl); err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": w.ConversationID,
			"error":           err.Error(),
		}).Warn("cache write failed")
	}
	return w
}

func (c *WindowCache) Delete(ctx context.Context, id kernel.ConversationID) error {
	return c.backend.Delete(ctx, c.key(id))
}

func (c *WindowCache) Exists(ctx context.Context, id kernel.ConversationID) bool {
	ok, err := c.backend.Exists(ctx, c.key(id))
	return err == nil && ok
}
