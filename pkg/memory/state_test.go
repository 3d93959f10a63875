package memory

import (
	"testing"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	user   = llm.NewUserMessage("weather?")
	invX   = llm.NewToolInvocation("X", "get_weather", `{"city":"Lima"}`)
	resX   = llm.NewToolResult("X", "get_weather", "sunny")
	invY   = llm.NewToolInvocation("Y", "get_weather", `{"city":"Cusco"}`)
	answer = llm.NewAgentMessage("It is sunny.")
	follow = llm.NewUserMessage("next question")
)

func TestAssess(t *testing.T) {
	tests := []struct {
		name string
		in   []llm.Message
		want State
	}{
		{"empty", nil, StateClean},
		{"user", []llm.Message{user}, StateClean},
		{"pending", []llm.Message{user, invX}, StatePendingToolCall},
		{"paired", []llm.Message{user, invX, resX}, StateClean},
		{"user after call", []llm.Message{user, invX, follow}, StateNeedsRollback},
		{"call after call", []llm.Message{user, invX, invY}, StateNeedsRollback},
		{"text after call", []llm.Message{user, invX, answer}, StateNeedsRollback},
		{"foreign result after call", []llm.Message{user, invX, llm.NewToolResult("Y", "get_weather", "rain")}, StateNeedsRollback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assess(tt.in))
		})
	}
}

func TestPlanUpdate_PendingCallIsCacheOnly(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX}, []llm.Message{user})

	assert.Equal(t, RouteCacheOnly, plan.Route)
	assert.Empty(t, plan.Settled())
	require.Len(t, plan.Pending(), 1)
	assert.True(t, plan.Pending()[0].Equal(invX))
	assert.False(t, plan.DropCachedTail)
}

func TestPlanUpdate_UnsettledMessagesBeforePendingCallAreSettled(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX}, nil)

	assert.Equal(t, RouteCacheOnly, plan.Route)
	require.Len(t, plan.Settled(), 1)
	assert.True(t, plan.Settled()[0].Equal(user))
	require.Len(t, plan.Pending(), 1)
	assert.True(t, plan.Pending()[0].Equal(invX))
}

func TestPlanUpdate_ResultPersistsCachedInvocationWithIt(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX, resX}, []llm.Message{user, invX})

	assert.Equal(t, RoutePersistPair, plan.Route)
	assert.Equal(t, 1, plan.NewFrom)
	settled := plan.Settled()
	require.Len(t, settled, 2)
	assert.True(t, settled[0].Equal(invX))
	assert.True(t, settled[1].Equal(resX))
	assert.Empty(t, plan.Pending())
}

func TestPlanUpdate_PairWhenCacheIsCold(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX, resX}, []llm.Message{user})

	assert.Equal(t, RoutePersistPair, plan.Route)
	assert.Len(t, plan.Settled(), 2)
}

func TestPlanUpdate_RollbackDropsDanglingCall(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX, follow}, []llm.Message{user, invX})

	assert.True(t, plan.DropCachedTail)
	require.Len(t, plan.Discarded, 1)
	assert.Equal(t, "X", plan.Discarded[0].CallID)
	assert.Equal(t, RoutePersistNew, plan.Route)
	assert.Len(t, plan.Messages, 2)
	require.Len(t, plan.Settled(), 1)
	assert.True(t, plan.Settled()[0].Equal(follow))
}

func TestPlanUpdate_RollbackThenNewCall(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX, invY}, []llm.Message{user, invX})

	assert.True(t, plan.DropCachedTail)
	assert.Equal(t, RouteCacheOnly, plan.Route)
	require.Len(t, plan.Pending(), 1)
	assert.True(t, plan.Pending()[0].Equal(invY))
	assert.Empty(t, plan.Settled())
}

func TestPlanUpdate_RollbackOfUncachedCallKeepsCacheTail(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX, follow}, []llm.Message{user})

	assert.False(t, plan.DropCachedTail)
	require.Len(t, plan.Discarded, 1)
	require.Len(t, plan.Settled(), 1)
	assert.True(t, plan.Settled()[0].Equal(follow))
}

func TestPlanUpdate_StaleCachedCallIsDropped(t *testing.T) {
	// The caller's sequence no longer carries the cached call.
	plan := PlanUpdate([]llm.Message{user, follow}, []llm.Message{user, invX})

	assert.True(t, plan.DropCachedTail)
	assert.Nil(t, plan.Discarded)
	require.Len(t, plan.Settled(), 1)
	assert.True(t, plan.Settled()[0].Equal(follow))
}

func TestPlanUpdate_FinalTextPersistsOnlyNewMessages(t *testing.T) {
	cached := []llm.Message{user, invX, resX}
	plan := PlanUpdate([]llm.Message{user, invX, resX, answer}, cached)

	assert.Equal(t, RoutePersistNew, plan.Route)
	assert.Equal(t, 3, plan.NewFrom)
	require.Len(t, plan.Settled(), 1)
	assert.True(t, plan.Settled()[0].Equal(answer))
}

func TestPlanUpdate_NothingNew(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user}, []llm.Message{user, answer})
	assert.Empty(t, plan.New())

	plan = PlanUpdate(nil, []llm.Message{user})
	assert.Equal(t, RouteNone, plan.Route)
	assert.Empty(t, plan.New())
}

func TestPlanUpdate_DoesNotModifyInput(t *testing.T) {
	in := []llm.Message{user, invX, follow}
	_ = PlanUpdate(in, nil)
	assert.True(t, in[1].Equal(invX))
	assert.True(t, in[2].Equal(follow))
}

func TestPlanUpdate_TextAfterCachedCallAbandonsIt(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX, answer}, []llm.Message{user, invX})

	assert.True(t, plan.DropCachedTail)
	require.Len(t, plan.Discarded, 1)
	assert.Equal(t, "X", plan.Discarded[0].CallID)
	assert.Equal(t, RoutePersistNew, plan.Route)
	assert.Equal(t, 1, plan.NewFrom)
	require.Len(t, plan.Settled(), 1)
	assert.True(t, plan.Settled()[0].Equal(answer))
}

func TestPlanUpdate_InteriorUnansweredCallIsDropped(t *testing.T) {
	plan := PlanUpdate([]llm.Message{user, invX, answer, follow}, []llm.Message{user, answer})

	require.Len(t, plan.Messages, 3)
	assert.False(t, plan.DropCachedTail)
	require.Len(t, plan.Settled(), 1)
	assert.True(t, plan.Settled()[0].Equal(follow))
}

func TestPlanUpdate_LoneResultIsNotPersisted(t *testing.T) {
	plan := PlanUpdate([]llm.Message{resX}, nil)

	assert.Equal(t, 1, plan.DroppedResults)
	assert.Equal(t, RouteNone, plan.Route)
	assert.Empty(t, plan.Settled())

	plan = PlanUpdate([]llm.Message{user, resX}, []llm.Message{user})
	assert.Equal(t, 1, plan.DroppedResults)
	assert.Empty(t, plan.New())
}

func TestPlanBlindUpdate(t *testing.T) {
	tests := []struct {
		name    string
		in      []llm.Message
		settled []llm.Message
		pending []llm.Message
	}{
		{"final text", []llm.Message{user, answer, follow}, []llm.Message{follow}, nil},
		{"final pair", []llm.Message{user, invX, resX}, []llm.Message{invX, resX}, nil},
		{"final call", []llm.Message{user, invX}, nil, []llm.Message{invX}},
		{"abandoned call", []llm.Message{user, invX, follow}, []llm.Message{follow}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanBlindUpdate(tt.in)
			assert.Equal(t, tt.settled, nilIfEmpty(plan.Settled()))
			assert.Equal(t, tt.pending, nilIfEmpty(plan.Pending()))
		})
	}
}

func nilIfEmpty(msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return nil
	}
	return msgs
}
