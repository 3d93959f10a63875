package chat

import (
	"net/http"

	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
)

// MaxMessageLength bounds a single user message in runes.
const MaxMessageLength = 8000

type SendRequest struct {
	ConversationID kernel.ConversationID `json:"conversation_id,omitempty"`
	Message        string                `json:"message"`
}

type SendResponse struct {
	ConversationID kernel.ConversationID `json:"conversation_id"`
	Reply          string                `json:"reply"`
}

// ============================================================================
// Errors
// ============================================================================

var ErrRegistry = errx.NewRegistry("CHAT")

var (
	CodeEmptyMessage   = ErrRegistry.Register("EMPTY_MESSAGE", errx.TypeValidation, http.StatusBadRequest, "Message is required")
	CodeMessageTooLong = ErrRegistry.Register("MESSAGE_TOO_LONG", errx.TypeValidation, http.StatusBadRequest, "Message is too long")
	CodeUnavailable    = ErrRegistry.Register("UNAVAILABLE", errx.TypeExternal, http.StatusServiceUnavailable, "Chat model is not configured")
	CodeAgentFailed    = ErrRegistry.Register("AGENT_FAILED", errx.TypeExternal, http.StatusBadGateway, "Agent did not produce a reply")
)

func ErrEmptyMessage() *errx.Error {
	return ErrRegistry.New(CodeEmptyMessage)
}

func ErrMessageTooLong() *errx.Error {
	return ErrRegistry.New(CodeMessageTooLong)
}

func ErrUnavailable() *errx.Error {
	return ErrRegistry.New(CodeUnavailable)
}

func ErrAgentFailed() *errx.Error {
	return ErrRegistry.New(CodeAgentFailed)
}
