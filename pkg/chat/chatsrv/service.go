package chatsrv

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/ai/llm/agentx"
	"github.com/Abraxas-365/chatmemory/pkg/ai/llm/memoryx"
	"github.com/Abraxas-365/chatmemory/pkg/ai/llm/toolx"
	"github.com/Abraxas-365/chatmemory/pkg/chat"
	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/conversation"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
)

// Conversations is the part of the conversation service a chat turn needs.
type Conversations interface {
	Resolve(ctx context.Context, auth *kernel.AuthContext, id kernel.ConversationID) (*conversation.Conversation, error)
	Touch(ctx context.Context, id kernel.ConversationID)
}

type ChatService struct {
	llm           llm.LLM
	memory        memoryx.Provider
	conversations Conversations
	tools         *toolx.ToolxClient
	cfg           config.AIConfig
}

// NewChatService builds the service. A nil model makes every Send fail
// with ErrUnavailable.
func NewChatService(
	model llm.LLM,
	memory memoryx.Provider,
	conversations Conversations,
	tools *toolx.ToolxClient,
	cfg config.AIConfig,
) *ChatService {
	return &ChatService{
		llm:           model,
		memory:        memory,
		conversations: conversations,
		tools:         tools,
		cfg:           cfg,
	}
}

// Send runs one agent turn for the caller. The conversation is resolved
// first, so an unknown or foreign id starts a fresh conversation.
func (s *ChatService) Send(ctx context.Context, auth *kernel.AuthContext, req chat.SendRequest) (*chat.SendResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, chat.ErrEmptyMessage()
	}
	if utf8.RuneCountInString(text) > chat.MaxMessageLength {
		return nil, chat.ErrMessageTooLong().WithDetail("max_length", chat.MaxMessageLength)
	}
	if s.llm == nil {
		return nil, chat.ErrUnavailable()
	}

	conv, err := s.conversations.Resolve(ctx, auth, req.ConversationID)
	if err != nil {
		return nil, err
	}

	agent := agentx.New(
		llm.NewClient(s.llm),
		memoryx.NewConversationMemory(s.memory, conv.ID),
		agentx.WithTools(s.tools),
		agentx.WithOptions(llm.WithUser(auth.OwnerID.String())),
		agentx.WithMaxAutoIterations(s.cfg.MaxAutoIterations),
		agentx.WithMaxTotalIterations(s.cfg.MaxTotalIterations),
		agentx.WithToolConcurrency(s.cfg.ToolConcurrency),
	)

	reply, err := agent.Run(ctx, text)
	s.conversations.Touch(ctx, conv.ID)
	if err != nil {
		logx.WithFields(logx.Fields{
			"conversation_id": conv.ID,
			"error":           err.Error(),
		}).Warn("agent turn failed")
		if errx.IsType(err, errx.TypeValidation) {
			return nil, err
		}
		return nil, chat.ErrAgentFailed().WithCause(err).WithDetail("conversation_id", conv.ID.String())
	}

	return &chat.SendResponse{ConversationID: conv.ID, Reply: reply}, nil
}
