package conversationinfra

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/conversation"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
)

// InMemoryConversationRepository keeps conversations in process memory. It
// backs the "memory" backend and handler tests.
type InMemoryConversationRepository struct {
	mu    sync.RWMutex
	items map[kernel.ConversationID]conversation.Conversation
}

func NewInMemoryConversationRepository() *InMemoryConversationRepository {
	return &InMemoryConversationRepository{items: make(map[kernel.ConversationID]conversation.Conversation)}
}

func (r *InMemoryConversationRepository) Create(_ context.Context, c conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[c.ID]; ok && !existing.IsUnclaimed() {
		return conversation.ErrForbidden().WithDetail("conversation_id", c.ID.String())
	}
	r.items[c.ID] = c
	return nil
}

func (r *InMemoryConversationRepository) FindByID(_ context.Context, id kernel.ConversationID) (*conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, conversation.ErrNotFound().WithDetail("conversation_id", id.String())
	}
	return &c, nil
}

func (r *InMemoryConversationRepository) ListByOwner(_ context.Context, owner kernel.OwnerID) ([]*conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*conversation.Conversation
	for _, c := range r.items {
		if c.OwnerID == owner {
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *conversation.Conversation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (r *InMemoryConversationRepository) UpdateTitle(_ context.Context, id kernel.ConversationID, title string) error {
	return r.update(id, func(c *conversation.Conversation) error {
		c.Title = title
		return nil
	})
}

func (r *InMemoryConversationRepository) Claim(_ context.Context, id kernel.ConversationID, owner kernel.OwnerID) error {
	return r.update(id, func(c *conversation.Conversation) error {
		if !c.IsUnclaimed() {
			return conversation.ErrForbidden().WithDetail("conversation_id", id.String())
		}
		c.OwnerID = owner
		return nil
	})
}

func (r *InMemoryConversationRepository) Touch(_ context.Context, id kernel.ConversationID, at time.Time) error {
	return r.update(id, func(c *conversation.Conversation) error {
		c.Touch(at)
		return nil
	})
}

func (r *InMemoryConversationRepository) Delete(_ context.Context, id kernel.ConversationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *InMemoryConversationRepository) Exists(_ context.Context, id kernel.ConversationID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[id]
	return ok, nil
}

func (r *InMemoryConversationRepository) update(id kernel.ConversationID, fn func(*conversation.Conversation) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return conversation.ErrNotFound().WithDetail("conversation_id", id.String())
	}
	if err := fn(&c); err != nil {
		return err
	}
	r.items[id] = c
	return nil
}
