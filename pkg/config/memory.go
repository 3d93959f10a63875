package config

import (
	"fmt"
	"time"
)

// MemoryConfig sizes the conversation memory.
type MemoryConfig struct {
	// Backend is "redis" or "memory".
	Backend string
	// CacheTTL is refreshed on every cache read.
	CacheTTL time.Duration
	// CacheWindow is the window capacity W, System included.
	CacheWindow int
	// RebuildSize is how many non-system turns are read back from the
	// log when the cache is cold.
	RebuildSize int
	KeyPrefix   string
}

func loadMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Backend:     getEnv("CHAT_MEMORY_BACKEND", "redis"),
		CacheTTL:    getEnvDuration("CHAT_CACHE_TTL", 24*time.Hour),
		CacheWindow: getEnvInt("CHAT_CACHE_WINDOW", 7),
		RebuildSize: getEnvInt("CHAT_MEMORY_REBUILD_SIZE", 6),
		KeyPrefix:   getEnv("CHAT_CACHE_KEY_PREFIX", "chat:memory:"),
	}
}

func (m MemoryConfig) Validate() error {
	// System plus one tool call; below that a pending call is trimmed
	// before its result arrives.
	if m.CacheWindow < 2 {
		return fmt.Errorf("CHAT_CACHE_WINDOW must be at least 2")
	}
	if m.RebuildSize < 1 {
		return fmt.Errorf("CHAT_MEMORY_REBUILD_SIZE must be at least 1")
	}
	if m.CacheTTL <= 0 {
		return fmt.Errorf("CHAT_CACHE_TTL must be positive")
	}
	if m.Backend != "redis" && m.Backend != "memory" {
		return fmt.Errorf("CHAT_MEMORY_BACKEND must be redis or memory, got %q", m.Backend)
	}
	return nil
}
