package memory

import (
	"context"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/kernel"
)

// Log is the durable, append-only record of non-system turns. It is the
// source of truth for history and for the next turn index.
type Log interface {
	// Append writes one turn. A second write for the same
	// (conversation, index) fails with ErrDuplicateTurn.
	Append(ctx context.Context, turn Turn) error

	// RecentTurns returns at most limit turns with the highest indices,
	// ordered ascending.
	RecentTurns(ctx context.Context, id kernel.ConversationID, limit int) ([]Turn, error)

	// MaxTurnIndex returns 0 when nothing has been recorded.
	MaxTurnIndex(ctx context.Context, id kernel.ConversationID) (int, error)

	// Transcript returns every recorded turn ordered ascending.
	Transcript(ctx context.Context, id kernel.ConversationID) ([]Turn, error)

	// DeleteConversation removes all turns and the conversation record.
	DeleteConversation(ctx context.Context, id kernel.ConversationID) error
}

// Cache is a key-value backend holding opaque serialized values.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
