package conversationsrv

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/conversation"
	"github.com/Abraxas-365/chatmemory/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Mocks
// ============================================================================

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, c conversation.Conversation) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockRepo) FindByID(ctx context.Context, id kernel.ConversationID) (*conversation.Conversation, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*conversation.Conversation); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) ListByOwner(ctx context.Context, owner kernel.OwnerID) ([]*conversation.Conversation, error) {
	args := m.Called(ctx, owner)
	list, _ := args.Get(0).([]*conversation.Conversation)
	return list, args.Error(1)
}

func (m *mockRepo) UpdateTitle(ctx context.Context, id kernel.ConversationID, title string) error {
	return m.Called(ctx, id, title).Error(0)
}

func (m *mockRepo) Claim(ctx context.Context, id kernel.ConversationID, owner kernel.OwnerID) error {
	return m.Called(ctx, id, owner).Error(0)
}

func (m *mockRepo) Touch(ctx context.Context, id kernel.ConversationID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, id kernel.ConversationID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) Exists(ctx context.Context, id kernel.ConversationID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Delete(ctx context.Context, id kernel.ConversationID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockHistory) Transcript(ctx context.Context, id kernel.ConversationID) ([]memory.Turn, error) {
	args := m.Called(ctx, id)
	turns, _ := args.Get(0).([]memory.Turn)
	return turns, args.Error(1)
}

// ============================================================================
// Helpers
// ============================================================================

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc     *ConversationService
	repo    *mockRepo
	history *mockHistory
	files   *fsxlocal.LocalFileSystem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	files, err := fsxlocal.NewLocalFileSystem(t.TempDir())
	require.NoError(t, err)

	f := &fixture{repo: &mockRepo{}, history: &mockHistory{}, files: files}
	f.svc = NewConversationService(f.repo, f.history, files).WithClock(func() time.Time { return fixedNow })
	t.Cleanup(func() {
		f.repo.AssertExpectations(t)
		f.history.AssertExpectations(t)
	})
	return f
}

func owner(id string) *kernel.AuthContext {
	return &kernel.AuthContext{OwnerID: kernel.OwnerID(id)}
}

func owned(id, by string) *conversation.Conversation {
	return &conversation.Conversation{
		ID:             kernel.ConversationID(id),
		OwnerID:        kernel.OwnerID(by),
		Title:          "chat",
		CreatedAt:      fixedNow.Add(-time.Hour),
		LastActivityAt: fixedNow.Add(-time.Hour),
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.MatchedBy(func(c conversation.Conversation) bool {
		return c.OwnerID == "o1" && c.Title == "New chat_0504_10:30" && !c.ID.IsEmpty()
	})).Return(nil)

	c, err := f.svc.Start(ctx, owner("o1"))
	require.NoError(t, err)
	assert.Equal(t, fixedNow, c.CreatedAt)
}

func TestStart_RequiresOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), nil)
	assert.ErrorIs(t, err, conversation.ErrForbidden())

	_, err = f.svc.Start(context.Background(), owner(""))
	assert.ErrorIs(t, err, conversation.ErrForbidden())
}

func TestGet_OwnerCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o1"), nil)

	c, err := f.svc.Get(ctx, owner("o1"), "c1")
	require.NoError(t, err)
	assert.Equal(t, kernel.ConversationID("c1"), c.ID)

	_, err = f.svc.Get(ctx, owner("o2"), "c1")
	assert.ErrorIs(t, err, conversation.ErrForbidden())

	_, err = f.svc.Get(ctx, owner("o1"), "")
	assert.ErrorIs(t, err, memory.ErrConversationIDRequired())
}

func TestEnsureOwned(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing conversation with the given id", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", ctx, kernel.ConversationID("c9")).Return(nil, conversation.ErrNotFound())
		f.repo.On("Create", ctx, mock.MatchedBy(func(c conversation.Conversation) bool {
			return c.ID == "c9" && c.OwnerID == "o1"
		})).Return(nil)

		c, err := f.svc.EnsureOwned(ctx, owner("o1"), "c9")
		require.NoError(t, err)
		assert.Equal(t, kernel.ConversationID("c9"), c.ID)
	})

	t.Run("claims a conversation the log created", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", ""), nil)
		f.repo.On("Claim", ctx, kernel.ConversationID("c1"), kernel.OwnerID("o1")).Return(nil)

		c, err := f.svc.EnsureOwned(ctx, owner("o1"), "c1")
		require.NoError(t, err)
		assert.True(t, c.IsOwnedBy("o1"))
	})

	t.Run("rejects another owner's conversation", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o2"), nil)

		_, err := f.svc.EnsureOwned(ctx, owner("o1"), "c1")
		assert.ErrorIs(t, err, conversation.ErrForbidden())
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("db down")
		f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(nil, boom)

		_, err := f.svc.EnsureOwned(ctx, owner("o1"), "c1")
		assert.ErrorIs(t, err, boom)
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	isNew := mock.MatchedBy(func(c conversation.Conversation) bool { return c.OwnerID == "o1" })

	t.Run("empty id starts a conversation", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Create", ctx, isNew).Return(nil)

		c, err := f.svc.Resolve(ctx, owner("o1"), "")
		require.NoError(t, err)
		assert.False(t, c.ID.IsEmpty())
	})

	t.Run("owned id is reused", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o1"), nil)

		c, err := f.svc.Resolve(ctx, owner("o1"), "c1")
		require.NoError(t, err)
		assert.Equal(t, kernel.ConversationID("c1"), c.ID)
	})

	t.Run("unknown id starts a conversation", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", ctx, kernel.ConversationID("gone")).Return(nil, conversation.ErrNotFound())
		f.repo.On("Create", ctx, isNew).Return(nil)

		c, err := f.svc.Resolve(ctx, owner("o1"), "gone")
		require.NoError(t, err)
		assert.NotEqual(t, kernel.ConversationID("gone"), c.ID)
	})

	t.Run("foreign id starts a conversation", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", ctx, kernel.ConversationID("c2")).Return(owned("c2", "o2"), nil)
		f.repo.On("Create", ctx, isNew).Return(nil)

		c, err := f.svc.Resolve(ctx, owner("o1"), "c2")
		require.NoError(t, err)
		assert.NotEqual(t, kernel.ConversationID("c2"), c.ID)
	})
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o1"), nil)
	f.repo.On("UpdateTitle", ctx, kernel.ConversationID("c1"), "Groceries").Return(nil).Once()

	c, err := f.svc.Rename(ctx, owner("o1"), "c1", " Groceries ")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", c.Title)

	_, err = f.svc.Rename(ctx, owner("o1"), "c1", "")
	assert.ErrorIs(t, err, conversation.ErrInvalidTitle())
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("ListByOwner", ctx, kernel.OwnerID("o1")).Return([]*conversation.Conversation{owned("c1", "o1")}, nil)

	list, err := f.svc.List(ctx, owner("o1"))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTouch_LogsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("Touch", ctx, kernel.ConversationID("c1"), fixedNow).Return(errors.New("db down"))

	assert.NotPanics(t, func() { f.svc.Touch(ctx, "c1") })
}

func TestDelete_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o1"), nil)
	f.history.On("Delete", ctx, kernel.ConversationID("c1")).Return(nil).Once()
	f.repo.On("Delete", ctx, kernel.ConversationID("c1")).Return(nil).Once()

	require.NoError(t, f.svc.Delete(ctx, owner("o1"), "c1"))
}

func TestDelete_HistoryFailureStillDeletesMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o1"), nil)
	f.history.On("Delete", ctx, kernel.ConversationID("c1")).Return(errors.New("log down"))
	f.repo.On("Delete", ctx, kernel.ConversationID("c1")).Return(nil)

	require.NoError(t, f.svc.Delete(ctx, owner("o1"), "c1"))
}

func TestDelete_ForeignConversationIsUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o2"), nil)

	err := f.svc.Delete(ctx, owner("o1"), "c1")
	assert.ErrorIs(t, err, conversation.ErrForbidden())
	f.history.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o1"), nil)
	f.history.On("Transcript", ctx, kernel.ConversationID("c1")).Return([]memory.Turn{
		{ConversationID: "c1", Index: 1, Message: llm.NewUserMessage("what time is it?"), CreatedAt: fixedNow},
		{ConversationID: "c1", Index: 2, Message: llm.NewToolInvocation("call-1", "current_time", "{}"), CreatedAt: fixedNow},
		{ConversationID: "c1", Index: 3, Message: llm.NewToolResult("call-1", "current_time", "10:30"), CreatedAt: fixedNow},
		{ConversationID: "c1", Index: 4, Message: llm.NewAgentMessage("It is 10:30."), CreatedAt: fixedNow},
	}, nil)

	res, err := f.svc.Export(ctx, owner("o1"), "c1")
	require.NoError(t, err)
	assert.Equal(t, "transcripts/o1/c1.json", res.Path)
	assert.Equal(t, 4, res.Turns)

	data, err := f.files.ReadFile(ctx, res.Path)
	require.NoError(t, err)

	var doc conversation.Transcript
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Entries, 4)
	assert.Equal(t, "user", doc.Entries[0].Kind)
	assert.Equal(t, "what time is it?", doc.Entries[0].Text)
	assert.Equal(t, "call-1", doc.Entries[1].CallID)
	assert.Equal(t, "current_time", doc.Entries[1].Name)
	assert.Equal(t, "10:30", doc.Entries[2].Content)
	assert.Equal(t, 4, doc.Entries[3].TurnIndex)
	assert.Equal(t, kernel.ConversationID("c1"), doc.Conversation.ID)
}

func TestExport_TranscriptFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("log down")
	f.repo.On("FindByID", ctx, kernel.ConversationID("c1")).Return(owned("c1", "o1"), nil)
	f.history.On("Transcript", ctx, kernel.ConversationID("c1")).Return(nil, boom)

	_, err := f.svc.Export(ctx, owner("o1"), "c1")
	assert.ErrorIs(t, err, boom)
}
