package conversationapi

import (
	"github.com/Abraxas-365/chatmemory/pkg/conversation/conversationsrv"
	"github.com/Abraxas-365/chatmemory/pkg/iam/auth"
	"github.com/Abraxas-365/chatmemory/pkg/iam/scopes"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

type ConversationHandlers struct {
	service *conversationsrv.ConversationService
}

func NewConversationHandlers(service *conversationsrv.ConversationService) *ConversationHandlers {
	return &ConversationHandlers{service: service}
}

func (h *ConversationHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.AuthMiddleware) {
	conversations := router.Group("/conversations", authMiddleware.Authenticate())

	conversations.Post("/", authMiddleware.RequireScope(scopes.ScopeConversationsWrite), h.StartConversation)
	conversations.Get("/:id", authMiddleware.RequireScope(scopes.ScopeConversationsRead), h.GetConversation)
	conversations.Delete("/:id", authMiddleware.RequireScope(scopes.ScopeConversationsDelete), h.DeleteConversation)
	conversations.Post("/:id/export", authMiddleware.RequireScope(scopes.ScopeConversationsExport), h.ExportConversation)
}

func (h *ConversationHandlers) StartConversation(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	conv, err := h.service.Start(c.Context(), authContext)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (h *ConversationHandlers) GetConversation(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	conv, err := h.service.Get(c.Context(), authContext, kernel.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	return c.JSON(conv)
}

func (h *ConversationHandlers) DeleteConversation(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	if err := h.service.Delete(c.Context(), authContext, kernel.ConversationID(c.Params("id"))); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ConversationHandlers) ExportConversation(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	res, err := h.service.Export(c.Context(), authContext, kernel.ConversationID(c.Params("id")))
	if err != nil {
		return err
	}

	return c.JSON(res)
}
