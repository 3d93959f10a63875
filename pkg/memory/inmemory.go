package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/kernel"
)

// ============================================================================
// InMemoryCache
// ============================================================================

// InMemoryCache is a Cache kept in process memory, used when no Redis is
// configured and in tests.
type InMemoryCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	now     func() time.Time
	faults  map[string]error
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
		faults:  make(map[string]error),
	}
}

// SetClock replaces the time source used for expiry.
func (c *InMemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// FailWith makes every call of op ("get", "set", "expire", "delete",
// "exists") return err until cleared with a nil err.
func (c *InMemoryCache) FailWith(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.faults, op)
		return
	}
	c.faults[op] = err
}

func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.faults["get"]; err != nil {
		return nil, err
	}

	entry, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss()
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, ErrCacheMiss()
	}
	return append([]byte(nil), entry.value...), nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.faults["set"]; err != nil {
		return err
	}

	entry := &cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *InMemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.faults["expire"]; err != nil {
		return err
	}

	if entry, ok := c.entries[key]; ok {
		entry.expiresAt = c.now().Add(ttl)
	}
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.faults["delete"]; err != nil {
		return err
	}

	delete(c.entries, key)
	return nil
}

func (c *InMemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.faults["exists"]; err != nil {
		return false, err
	}

	entry, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return entry.expiresAt.IsZero() || c.now().Before(entry.expiresAt), nil
}

// TTL returns the remaining lifetime of key, 0 when absent.
func (c *InMemoryCache) TTL(key string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || entry.expiresAt.IsZero() {
		return 0
	}
	return entry.expiresAt.Sub(c.now())
}

// ============================================================================
// InMemoryLog
// ============================================================================

// InMemoryLog is a Log kept in process memory.
type InMemoryLog struct {
	turns  map[kernel.ConversationID][]Turn
	mu     sync.RWMutex
	faults map[string]error
}

func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{
		turns:  make(map[kernel.ConversationID][]Turn),
		faults: make(map[string]error),
	}
}

// FailWith makes every call of op ("append", "recent", "max",
// "transcript", "delete") return err until cleared with a nil err.
func (l *InMemoryLog) FailWith(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.faults, op)
		return
	}
	l.faults[op] = err
}

func (l *InMemoryLog) Append(ctx context.Context, turn Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.faults["append"]; err != nil {
		return err
	}

	existing := l.turns[turn.ConversationID]
	i := sort.Search(len(existing), func(i int) bool { return existing[i].Index >= turn.Index })
	if i < len(existing) && existing[i].Index == turn.Index {
		return ErrDuplicateTurn().
			WithDetail("conversation_id", turn.ConversationID.String()).
			WithDetail("turn_index", turn.Index)
	}
	existing = append(existing, Turn{})
	copy(existing[i+1:], existing[i:])
	existing[i] = turn
	l.turns[turn.ConversationID] = existing
	return nil
}

func (l *InMemoryLog) RecentTurns(ctx context.Context, id kernel.ConversationID, limit int) ([]Turn, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.faults["recent"]; err != nil {
		return nil, err
	}

	all := l.turns[id]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	return append([]Turn(nil), all[len(all)-limit:]...), nil
}

func (l *InMemoryLog) MaxTurnIndex(ctx context.Context, id kernel.ConversationID) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.faults["max"]; err != nil {
		return 0, err
	}

	return MaxIndex(l.turns[id]), nil
}

func (l *InMemoryLog) Transcript(ctx context.Context, id kernel.ConversationID) ([]Turn, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.faults["transcript"]; err != nil {
		return nil, err
	}

	return append([]Turn(nil), l.turns[id]...), nil
}

func (l *InMemoryLog) DeleteConversation(ctx context.Context, id kernel.ConversationID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.faults["delete"]; err != nil {
		return err
	}

	delete(l.turns, id)
	return nil
}

// Len returns the number of recorded turns for id.
func (l *InMemoryLog) Len(id kernel.ConversationID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns[id])
}

var (
	_ Cache = (*InMemoryCache)(nil)
	_ Log   = (*InMemoryLog)(nil)
)
