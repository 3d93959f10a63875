package memoryapi

import (
	"context"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/conversation"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/iam/auth"
	"github.com/Abraxas-365/chatmemory/pkg/iam/scopes"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
	"github.com/gofiber/fiber/v2"
)

// Store is the memory engine as seen by the API.
type Store interface {
	Window(ctx context.Context, id kernel.ConversationID) (*memory.Window, error)
	Update(ctx context.Context, id kernel.ConversationID, msgs []llm.Message) error
}

// Conversations resolves ownership of the conversation behind a history.
type Conversations interface {
	EnsureOwned(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID) (*conversation.Conversation, error)
	Touch(ctx context.Context, id kernel.ConversationID)
}

// ============================================================================
// DTOs
// ============================================================================

type UpdateMessagesRequest struct {
	Messages []llm.Message `json:"messages"`
}

type WindowResponse struct {
	ConversationID   kernel.ConversationID `json:"conversation_id"`
	CurrentTurnIndex int                   `json:"current_turn_index"`
	LastAccessAt     *time.Time            `json:"last_access_at,omitempty"`
	Turns            []memory.Turn         `json:"turns"`
}

func newWindowResponse(id kernel.ConversationID, w *memory.Window) WindowResponse {
	if w == nil {
		return WindowResponse{ConversationID: id, Turns: []memory.Turn{}}
	}
	at := w.LastAccessAt
	return WindowResponse{
		ConversationID:   id,
		CurrentTurnIndex: w.CurrentTurnIndex,
		LastAccessAt:     &at,
		Turns:            w.Turns,
	}
}

// ============================================================================
// Handlers
// ============================================================================

type MemoryHandlers struct {
	store         Store
	conversations Conversations
}

func NewMemoryHandlers(store Store, conversations Conversations) *MemoryHandlers {
	return &MemoryHandlers{store: store, conversations: conversations}
}

func (h *MemoryHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.AuthMiddleware) {
	router.Get("/conversations/:id/messages",
		authMiddleware.Authenticate(),
		authMiddleware.RequireScope(scopes.ScopeMemoryRead),
		h.GetMessages,
	)
	router.Put("/conversations/:id/messages",
		authMiddleware.Authenticate(),
		authMiddleware.RequireScope(scopes.ScopeMemoryWrite),
		h.UpdateMessages,
	)
}

// GetMessages returns the visible window, System first, with turn indices.
func (h *MemoryHandlers) GetMessages(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}
	id := kernel.ConversationID(c.Params("id"))

	if _, err := h.conversations.EnsureOwned(c.Context(), authContext, id); err != nil {
		return err
	}

	w, err := h.store.Window(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(newWindowResponse(id, w))
}

// UpdateMessages accepts the full ordered message list of a conversation
// and returns the reconciled window.
func (h *MemoryHandlers) UpdateMessages(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}
	id := kernel.ConversationID(c.Params("id"))

	var req UpdateMessagesRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation).WithCause(err)
	}

	if _, err := h.conversations.EnsureOwned(c.Context(), authContext, id); err != nil {
		return err
	}

	if err := h.store.Update(c.Context(), id, req.Messages); err != nil {
		return err
	}
	h.conversations.Touch(c.Context(), id)

	w, err := h.store.Window(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(newWindowResponse(id, w))
}
