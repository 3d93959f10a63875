package memoryx

import (
	"context"
	"sync"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
)

// Memory represents a conversation memory with system prompt management
type Memory interface {
	// Messages returns all messages including system prompt
	// May return error if retrieval fails (e.g., database error)
	Messages(ctx context.Context) ([]llm.Message, error)

	// Add adds a new message to memory
	// Returns error if the operation fails
	Add(ctx context.Context, message llm.Message) error

	// Clear resets the conversation
	Clear(ctx context.Context) error
}

// Provider is the memory store keyed by conversation id. Update receives
// the full ordered sequence after every step.
type Provider interface {
	Messages(ctx context.Context, id kernel.ConversationID) ([]llm.Message, error)
	Update(ctx context.Context, id kernel.ConversationID, msgs []llm.Message) error
	Delete(ctx context.Context, id kernel.ConversationID) error
}

// ConversationMemory binds a Provider to one conversation. Each Add reads
// the current history, appends the message and writes the whole sequence
// back.
type ConversationMemory struct {
	provider Provider
	id       kernel.ConversationID
}

func NewConversationMemory(provider Provider, id kernel.ConversationID) *ConversationMemory {
	return &ConversationMemory{provider: provider, id: id}
}

func (m *ConversationMemory) ID() kernel.ConversationID { return m.id }

func (m *ConversationMemory) Messages(ctx context.Context) ([]llm.Message, error) {
	return m.provider.Messages(ctx, m.id)
}

func (m *ConversationMemory) Add(ctx context.Context, message llm.Message) error {
	msgs, err := m.provider.Messages(ctx, m.id)
	if err != nil {
		return err
	}
	next := make([]llm.Message, 0, len(msgs)+1)
	next = append(next, msgs...)
	next = append(next, message)
	return m.provider.Update(ctx, m.id, next)
}

func (m *ConversationMemory) Clear(ctx context.Context) error {
	return m.provider.Delete(ctx, m.id)
}

// BufferMemory keeps messages in process. It is used for one-off runs
// that need no persistence.
type BufferMemory struct {
	mu     sync.Mutex
	system llm.Message
	msgs   []llm.Message
}

func NewBufferMemory(system llm.Message) *BufferMemory {
	return &BufferMemory{system: system}
}

func (b *BufferMemory) Messages(_ context.Context) ([]llm.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llm.Message, 0, len(b.msgs)+1)
	out = append(out, b.system)
	return append(out, b.msgs...), nil
}

func (b *BufferMemory) Add(_ context.Context, message llm.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if message.IsSystem() {
		b.system = message
		return nil
	}
	b.msgs = append(b.msgs, message)
	return nil
}

func (b *BufferMemory) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = nil
	return nil
}
