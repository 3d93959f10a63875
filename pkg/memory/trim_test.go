package memory

import (
	"fmt"
	"testing"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turnsOf(msgs ...llm.Message) []Turn {
	out := make([]Turn, len(msgs))
	for i, m := range msgs {
		out[i] = Turn{ConversationID: "c1", Index: i, Message: m}
	}
	return out
}

func kinds(turns []Turn) []llm.Kind {
	out := make([]llm.Kind, len(turns))
	for i, t := range turns {
		out[i] = t.Message.Kind
	}
	return out
}

func TestTrim_SkipsForwardPastOrphanedResult(t *testing.T) {
	// System + 10 messages; relative 8 is a result, 9 an unmatched call.
	msgs := []llm.Message{llm.NewSystemMessage("sys")}
	for i := 0; i < 8; i++ {
		msgs = append(msgs, llm.NewUserMessage(fmt.Sprintf("u%d", i)))
	}
	msgs = append(msgs,
		llm.NewToolResult("c8", "search", "r8"),
		llm.NewToolInvocation("c9", "search", "{}"),
	)
	turns := turnsOf(msgs...)

	assert.Equal(t, 10, TrimStart(turns, 3))

	got := Trim(turns, 3)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, llm.KindSystem, got[0].Message.Kind)
	assert.Equal(t, 10, got[1].Index)
	assert.Equal(t, llm.KindToolInvocation, got[1].Message.Kind)
}

func TestTrim_KeepsSystemForAnyCapacity(t *testing.T) {
	turns := turnsOf(
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("a"),
		llm.NewAgentMessage("b"),
		llm.NewUserMessage("c"),
	)
	for capacity := -1; capacity <= 6; capacity++ {
		got := Trim(turns, capacity)
		require.NotEmpty(t, got, "capacity %d", capacity)
		assert.Equal(t, 0, got[0].Index, "capacity %d", capacity)
		assert.Equal(t, llm.KindSystem, got[0].Message.Kind, "capacity %d", capacity)
		assert.LessOrEqual(t, len(got), max(capacity, 1), "capacity %d", capacity)
	}
	assert.Equal(t, []llm.Kind{llm.KindSystem}, kinds(Trim(turns, 1)))
}

func TestTrim_HeadSkipAppliesWithinCapacity(t *testing.T) {
	turns := turnsOf(
		llm.NewSystemMessage("sys"),
		llm.NewToolResult("c0", "search", "r"),
		llm.NewAgentMessage("answer"),
	)
	got := Trim(turns, 7)
	assert.Equal(t, []llm.Kind{llm.KindSystem, llm.KindAgentText}, kinds(got))
}

func TestTrim_AllResultsLeavesSystemOnly(t *testing.T) {
	turns := turnsOf(
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("q"),
		llm.NewToolResult("a", "f", "1"),
		llm.NewToolResult("b", "f", "2"),
	)
	assert.Equal(t, []llm.Kind{llm.KindSystem}, kinds(Trim(turns, 3)))
}

func TestTrim_DoesNotModifyInput(t *testing.T) {
	turns := turnsOf(llm.NewSystemMessage("sys"), llm.NewUserMessage("a"), llm.NewUserMessage("b"))
	_ = Trim(turns, 2)
	assert.Len(t, turns, 3)
	assert.Equal(t, "a", turns[1].Message.Text)
}

func TestDropOrphans(t *testing.T) {
	turns := turnsOf(
		llm.NewToolResult("x", "f", "head"),
		llm.NewUserMessage("q"),
		llm.NewToolInvocation("a", "f", "{}"),
		llm.NewToolResult("a", "f", "ok"),
		llm.NewToolInvocation("b", "f", "{}"),
		llm.NewUserMessage("again"),
		llm.NewToolInvocation("c", "f", "{}"),
	)
	got := DropOrphans(turns)
	assert.Equal(t, []llm.Kind{
		llm.KindUser, llm.KindToolInvocation, llm.KindToolResult, llm.KindUser,
	}, kinds(got))
	assert.Equal(t, []int{1, 2, 3, 5}, []int{got[0].Index, got[1].Index, got[2].Index, got[3].Index})
}
