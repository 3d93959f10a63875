package conversation

import (
	"context"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
)

// Repository persists conversation metadata.
type Repository interface {
	Create(ctx context.Context, c Conversation) error
	FindByID(ctx context.Context, id kernel.ConversationID) (*Conversation, error)
	ListByOwner(ctx context.Context, owner kernel.OwnerID) ([]*Conversation, error)
	UpdateTitle(ctx context.Context, id kernel.ConversationID, title string) error
	Claim(ctx context.Context, id kernel.ConversationID, owner kernel.OwnerID) error
	Touch(ctx context.Context, id kernel.ConversationID, at time.Time) error
	Delete(ctx context.Context, id kernel.ConversationID) error
	Exists(ctx context.Context, id kernel.ConversationID) (bool, error)
}

// History is the memory side of a conversation.
type History interface {
	Delete(ctx context.Context, id kernel.ConversationID) error
	Transcript(ctx context.Context, id kernel.ConversationID) ([]memory.Turn, error)
}
