package memory

import "github.com/Abraxas-365/chatmemory/pkg/ai/llm"

// TrimStart returns the position of the first non-system turn kept when a
// window of turns (System at position 0) is bounded to capacity slots,
// System included. The start only moves forward past ToolResults so the
// retained head never answers an evicted ToolInvocation.
func TrimStart(turns []Turn, capacity int) int {
	if capacity < 1 {
		capacity = 1
	}
	size := len(turns)
	start := size - (capacity - 1)
	if start < 1 {
		start = 1
	}
	for start < size && turns[start].Message.IsToolResult() {
		start++
	}
	return start
}

// Trim returns [System] + turns[TrimStart:]. It does not modify turns.
func Trim(turns []Turn, capacity int) []Turn {
	if len(turns) == 0 {
		return nil
	}
	start := TrimStart(turns, capacity)
	out := make([]Turn, 0, 1+len(turns)-start)
	out = append(out, turns[0])
	return append(out, turns[start:]...)
}

// DropOrphans removes ToolInvocations not directly followed by their
// ToolResult and ToolResults not directly preceded by a ToolInvocation.
// It is applied to non-system turns read back from the log, where a crash
// between the two writes of a pair can leave one half behind.
func DropOrphans(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for i := 0; i < len(turns); i++ {
		t := turns[i]
		switch t.Message.Kind {
		case llm.KindSystem, llm.KindUser, llm.KindAgentText:
			out = append(out, t)
		case llm.KindToolInvocation:
			if i+1 < len(turns) && turns[i+1].Message.IsToolResult() {
				out = append(out, t, turns[i+1])
				i++
			}
		case llm.KindToolResult:
			// unpaired
		default:
		}
	}
	return out
}
