package memory

import "github.com/Abraxas-365/chatmemory/pkg/ai/llm"

// State classifies the tail of an incoming non-system sequence.
type State int

const (
	StateClean State = iota
	StatePendingToolCall
	StateNeedsRollback
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StatePendingToolCall:
		return "pending_tool_call"
	case StateNeedsRollback:
		return "needs_rollback"
	default:
		return "unknown"
	}
}

// Assess reports NeedsRollback when a ToolInvocation is followed by
// anything other than its own result, and PendingToolCall when the
// sequence ends on a ToolInvocation.
func Assess(nonSystem []llm.Message) State {
	n := len(nonSystem)
	if n >= 2 {
		last, prev := nonSystem[n-1], nonSystem[n-2]
		if prev.IsToolInvocation() && !answers(last, prev) {
			return StateNeedsRollback
		}
	}
	if n > 0 && nonSystem[n-1].IsToolInvocation() {
		return StatePendingToolCall
	}
	return StateClean
}

func answers(result, invocation llm.Message) bool {
	return result.IsToolResult() && invocation.IsToolInvocation() && result.CallID() == invocation.CallID()
}

// sanitize drops every ToolInvocation that is not directly followed by its
// result, except a trailing one, and every ToolResult that does not
// directly follow its invocation.
func sanitize(nonSystem []llm.Message) (kept []llm.Message, discarded []llm.ToolInvocation, orphans int) {
	kept = make([]llm.Message, 0, len(nonSystem))
	last := len(nonSystem) - 1
	for i, m := range nonSystem {
		switch {
		case m.IsToolInvocation() && i < last && !answers(nonSystem[i+1], m):
			discarded = append(discarded, *m.Invocation)
		case m.IsToolResult() && (i == 0 || !answers(m, nonSystem[i-1])):
			orphans++
		default:
			kept = append(kept, m)
		}
	}
	return kept, discarded, orphans
}

// Route is where the new messages of an update go.
type Route int

const (
	// RouteNone: nothing to do.
	RouteNone Route = iota
	// RouteCacheOnly: the sequence ends on a pending ToolInvocation; the
	// cache is extended and the log is untouched.
	RouteCacheOnly
	// RoutePersistPair: the sequence ends on a ToolResult answering the
	// ToolInvocation before it; both are written to the log.
	RoutePersistPair
	// RoutePersistNew: everything new is written to the log.
	RoutePersistNew
)

func (r Route) String() string {
	switch r {
	case RouteNone:
		return "none"
	case RouteCacheOnly:
		return "cache_only"
	case RoutePersistPair:
		return "persist_pair"
	case RoutePersistNew:
		return "persist_new"
	default:
		return "unknown"
	}
}

// UpdatePlan is the outcome of PlanUpdate.
type UpdatePlan struct {
	// Messages is the corrected non-system sequence.
	Messages []llm.Message
	// Discarded holds the unanswered calls removed by rollback.
	Discarded []llm.ToolInvocation
	// DroppedResults counts ToolResults removed because their invocation
	// was not directly before them.
	DroppedResults int
	// DropCachedTail asks for the cached pending ToolInvocation to be
	// removed and the running counter decremented by one.
	DropCachedTail bool
	Route          Route
	// NewFrom is the position in Messages of the first new message.
	NewFrom int
	// PendingFrom is the position of the first new message that stays
	// cache-only. Messages[NewFrom:PendingFrom] are written to the log.
	PendingFrom int
}

// New returns every message the plan appends to the window.
func (p UpdatePlan) New() []llm.Message {
	if p.NewFrom >= len(p.Messages) {
		return nil
	}
	return p.Messages[p.NewFrom:]
}

// Settled returns the new messages that are written to the log.
func (p UpdatePlan) Settled() []llm.Message {
	if p.NewFrom >= p.PendingFrom {
		return nil
	}
	return p.Messages[p.NewFrom:p.PendingFrom]
}

// Pending returns the new messages kept in the cache only.
func (p UpdatePlan) Pending() []llm.Message {
	if p.PendingFrom >= len(p.Messages) {
		return nil
	}
	return p.Messages[p.PendingFrom:]
}

// PlanUpdate is the transition function applied on every update. nonSystem
// is the incoming sequence without System; cached is the non-system content
// of the current window. It performs no I/O.
func PlanUpdate(nonSystem, cached []llm.Message) UpdatePlan {
	msgs, discarded, orphans := sanitize(nonSystem)
	plan := UpdatePlan{Discarded: discarded, DroppedResults: orphans}

	cachedCount := len(cached)
	if cachedCount > 0 && cached[cachedCount-1].IsToolInvocation() {
		pending := cached[cachedCount-1]
		for _, d := range discarded {
			if d.CallID == pending.CallID() {
				plan.DropCachedTail = true
			}
		}
		// A cached pending call the caller no longer carries at the same
		// position was abandoned.
		pos := cachedCount - 1
		if pos >= len(msgs) || !msgs[pos].IsToolInvocation() || msgs[pos].CallID() != pending.CallID() {
			plan.DropCachedTail = true
		}
	}
	if plan.DropCachedTail {
		cachedCount--
	}

	plan.route(msgs, cachedCount)
	return plan
}

// PlanBlindUpdate plans an update when the current window could not be
// loaded. Only the final message, or the final invocation and result
// pair, counts as new; the rest of the sequence is assumed to be logged
// already.
func PlanBlindUpdate(nonSystem []llm.Message) UpdatePlan {
	msgs, discarded, orphans := sanitize(nonSystem)
	plan := UpdatePlan{Discarded: discarded, DroppedResults: orphans}
	plan.route(msgs, len(msgs)-1)
	return plan
}

func (p *UpdatePlan) route(msgs []llm.Message, known int) {
	p.Messages = msgs
	n := len(msgs)
	if n == 0 {
		p.Route = RouteNone
		return
	}

	p.NewFrom = min(max(known, 0), n)
	// A result is never persisted apart from the invocation it answers.
	if p.NewFrom > 0 && p.NewFrom < n &&
		msgs[p.NewFrom].IsToolResult() && msgs[p.NewFrom-1].IsToolInvocation() {
		p.NewFrom--
	}

	p.PendingFrom = n
	last := msgs[n-1]
	switch last.Kind {
	case llm.KindToolInvocation:
		p.Route = RouteCacheOnly
		// Only the trailing call waits for its result; anything new
		// before it is already settled.
		p.PendingFrom = max(n-1, p.NewFrom)
	case llm.KindToolResult:
		p.Route = RoutePersistPair
	case llm.KindSystem, llm.KindUser, llm.KindAgentText:
		p.Route = RoutePersistNew
	default:
		p.Route = RoutePersistNew
	}
}
