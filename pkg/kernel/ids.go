package kernel

import (
	"strings"

	"github.com/google/uuid"
)

// ConversationID identifies one conversation; it is the memory id the
// orchestration loop passes to the memory provider.
type ConversationID string

func NewConversationID() ConversationID {
	return ConversationID(uuid.NewString())
}

func (id ConversationID) String() string { return string(id) }

func (id ConversationID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }

// OwnerID identifies the caller that owns conversations.
type OwnerID string

func NewOwnerID(s string) OwnerID { return OwnerID(s) }

func (id OwnerID) String() string { return string(id) }

func (id OwnerID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }
