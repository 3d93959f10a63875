package chatsrv

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/ai/llm/toolx"
	"github.com/Abraxas-365/chatmemory/pkg/ai/prompt"
	"github.com/Abraxas-365/chatmemory/pkg/chat"
	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/conversation/conversationinfra"
	"github.com/Abraxas-365/chatmemory/pkg/conversation/conversationsrv"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
	"github.com/Abraxas-365/chatmemory/pkg/memory/memorysrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []llm.Response
	err       error
	users     []string
}

func (f *fakeLLM) Chat(_ context.Context, _ []llm.Message, opts ...llm.Option) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, llm.Apply(opts...).User)
	if f.err != nil {
		return llm.Response{}, f.err
	}
	if len(f.responses) == 0 {
		return llm.Response{Message: llm.NewAgentMessage("ok")}, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

type fixture struct {
	svc   *ChatService
	log   *memory.InMemoryLog
	repo  *conversationinfra.InMemoryConversationRepository
	model *fakeLLM
}

func newFixture(t *testing.T, model *fakeLLM) *fixture {
	t.Helper()
	files, err := fsxlocal.NewLocalFileSystem(t.TempDir())
	require.NoError(t, err)

	log := memory.NewInMemoryLog()
	engine := memorysrv.NewEngine(memory.NewInMemoryCache(), log, prompt.Static("be brief"), &config.MemoryConfig{
		Backend:     "memory",
		CacheTTL:    time.Hour,
		CacheWindow: 7,
		RebuildSize: 6,
		KeyPrefix:   "chat:memory:",
	})
	repo := conversationinfra.NewInMemoryConversationRepository()
	conversations := conversationsrv.NewConversationService(repo, engine, files)

	f := &fixture{log: log, repo: repo, model: model}
	var m llm.LLM
	if model != nil {
		m = model
	}
	f.svc = NewChatService(m, engine, conversations, toolx.FromToolx(toolx.NewCurrentTime()), config.AIConfig{
		MaxAutoIterations:  3,
		MaxTotalIterations: 10,
		ToolConcurrency:    2,
	})
	return f
}

var caller = &kernel.AuthContext{OwnerID: "o1"}

func TestSend_ToolRoundTrip(t *testing.T) {
	model := &fakeLLM{responses: []llm.Response{
		{Invocations: []llm.Message{llm.NewToolInvocation("k1", "current_time", `{"timezone":"UTC"}`)}},
		{Message: llm.NewAgentMessage("It is noon.")},
	}}
	f := newFixture(t, model)

	res, err := f.svc.Send(context.Background(), caller, chat.SendRequest{Message: "  what time is it? "})
	require.NoError(t, err)
	assert.Equal(t, "It is noon.", res.Reply)
	require.False(t, res.ConversationID.IsEmpty())

	turns, err := f.log.Transcript(context.Background(), res.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, llm.NewUserMessage("what time is it?"), turns[0].Message)
	assert.Equal(t, llm.KindToolInvocation, turns[1].Message.Kind)
	assert.Equal(t, llm.KindToolResult, turns[2].Message.Kind)
	assert.Equal(t, "k1", turns[2].Message.CallID())
	assert.Equal(t, llm.NewAgentMessage("It is noon."), turns[3].Message)

	conv, err := f.repo.FindByID(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, kernel.OwnerID("o1"), conv.OwnerID)
	assert.Equal(t, []string{"o1", "o1"}, model.users)
}

func TestSend_ContinuesOwnedConversation(t *testing.T) {
	f := newFixture(t, &fakeLLM{})

	first, err := f.svc.Send(context.Background(), caller, chat.SendRequest{Message: "hi"})
	require.NoError(t, err)

	second, err := f.svc.Send(context.Background(), caller, chat.SendRequest{
		ConversationID: first.ConversationID,
		Message:        "again",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, 4, f.log.Len(first.ConversationID))
}

func TestSend_ForeignConversationStartsNew(t *testing.T) {
	f := newFixture(t, &fakeLLM{})

	first, err := f.svc.Send(context.Background(), caller, chat.SendRequest{Message: "hi"})
	require.NoError(t, err)

	other, err := f.svc.Send(context.Background(), &kernel.AuthContext{OwnerID: "o2"}, chat.SendRequest{
		ConversationID: first.ConversationID,
		Message:        "peek",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ConversationID, other.ConversationID)
	assert.Equal(t, 2, f.log.Len(first.ConversationID))
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t, &fakeLLM{})

	_, err := f.svc.Send(context.Background(), caller, chat.SendRequest{Message: "   "})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage())

	_, err = f.svc.Send(context.Background(), caller, chat.SendRequest{Message: strings.Repeat("a", chat.MaxMessageLength+1)})
	assert.ErrorIs(t, err, chat.ErrMessageTooLong())
}

func TestSend_NoModel(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Send(context.Background(), caller, chat.SendRequest{Message: "hi"})
	assert.ErrorIs(t, err, chat.ErrUnavailable())
}

func TestSend_ModelFailure(t *testing.T) {
	f := newFixture(t, &fakeLLM{err: errors.New("upstream down")})

	_, err := f.svc.Send(context.Background(), caller, chat.SendRequest{Message: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrAgentFailed())
	assert.True(t, errx.IsType(err, errx.TypeExternal))
}
