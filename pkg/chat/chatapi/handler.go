package chatapi

import (
	"context"

	"github.com/Abraxas-365/chatmemory/pkg/chat"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/iam/auth"
	"github.com/Abraxas-365/chatmemory/pkg/iam/scopes"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

type Sender interface {
	Send(ctx context.Context, auth *kernel.AuthContext, req chat.SendRequest) (*chat.SendResponse, error)
}

type ChatHandlers struct {
	sender Sender
}

func NewChatHandlers(sender Sender) *ChatHandlers {
	return &ChatHandlers{sender: sender}
}

func (h *ChatHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.AuthMiddleware) {
	router.Post("/chat",
		authMiddleware.Authenticate(),
		authMiddleware.RequireScope(scopes.ScopeChatSend),
		h.Send,
	)
}

func (h *ChatHandlers) Send(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req chat.SendRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation).WithCause(err)
	}

	res, err := h.sender.Send(c.Context(), authContext, req)
	if err != nil {
		return err
	}

	return c.JSON(res)
}
