// Package memory holds the conversation memory model: durable turns, the
// cached window projected from them, and the pure rules that keep the two
// consistent (trim, rollback and routing of updates).
package memory

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
)

// SystemTurnIndex is reserved for the system prompt.
const SystemTurnIndex = 0

// Turn is one message at its position in a conversation.
type Turn struct {
	ConversationID kernel.ConversationID `json:"conversation_id"`
	Index          int                   `json:"turn_index"`
	Message        llm.Message           `json:"message"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Window is the cached, bounded projection of a conversation.
// Turns[0] is always the System turn at index 0.
type Window struct {
	ConversationID   kernel.ConversationID
	Turns            []Turn
	CurrentTurnIndex int
	LastAccessAt     time.Time
}

func NewWindow(id kernel.ConversationID, system llm.Message, now time.Time) *Window {
	return &Window{
		ConversationID: id,
		Turns: []Turn{{
			ConversationID: id,
			Index:          SystemTurnIndex,
			Message:        system,
			CreatedAt:      now,
		}},
		LastAccessAt: now,
	}
}

func (w *Window) System() llm.Message {
	if len(w.Turns) == 0 {
		return llm.Message{}
	}
	return w.Turns[0].Message
}

func (w *Window) NonSystem() []Turn {
	if len(w.Turns) <= 1 {
		return nil
	}
	return w.Turns[1:]
}

func (w *Window) NonSystemCount() int {
	return len(w.NonSystem())
}

func (w *Window) NonSystemMessages() []llm.Message {
	return messagesOf(w.NonSystem())
}

// Messages returns the window as the ordered list handed to the orchestration loop.
func (w *Window) Messages() []llm.Message {
	return messagesOf(w.Turns)
}

// Tail returns the last non-system turn.
func (w *Window) Tail() (Turn, bool) {
	ns := w.NonSystem()
	if len(ns) == 0 {
		return Turn{}, false
	}
	return ns[len(ns)-1], true
}

// PendingInvocation returns the cached tail when it is an unanswered tool call.
func (w *Window) PendingInvocation() (Turn, bool) {
	t, ok := w.Tail()
	if !ok || !t.Message.IsToolInvocation() {
		return Turn{}, false
	}
	return t, true
}

// DropTail removes the last non-system turn and steps the counter back.
func (w *Window) DropTail() {
	if len(w.Turns) <= 1 {
		return
	}
	w.Turns = w.Turns[:len(w.Turns)-1]
	if w.CurrentTurnIndex > 0 {
		w.CurrentTurnIndex--
	}
}

// TruncateNonSystem keeps only the first n non-system turns.
func (w *Window) TruncateNonSystem(n int) {
	if n < 0 {
		n = 0
	}
	if 1+n < len(w.Turns) {
		w.Turns = w.Turns[:1+n]
	}
}

func (w *Window) Append(t Turn) {
	w.Turns = append(w.Turns, t)
	if t.Index > w.CurrentTurnIndex {
		w.CurrentTurnIndex = t.Index
	}
}

func (w *Window) Clone() *Window {
	c := *w
	c.Turns = append([]Turn(nil), w.Turns...)
	return &c
}

func messagesOf(turns []Turn) []llm.Message {
	out := make([]llm.Message, len(turns))
	for i, t := range turns {
		out[i] = t.Message
	}
	return out
}

// MaxIndex returns the highest turn index in turns, 0 when empty.
func MaxIndex(turns []Turn) int {
	highest := 0
	for _, t := range turns {
		if t.Index > highest {
			highest = t.Index
		}
	}
	return highest
}

// SplitSystem separates the first System message from the rest.
// Later System messages are dropped.
func SplitSystem(msgs []llm.Message) (system llm.Message, found bool, nonSystem []llm.Message) {
	nonSystem = make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSystem() {
			if !found {
				system, found = m, true
			}
			continue
		}
		nonSystem = append(nonSystem, m)
	}
	return system, found, nonSystem
}

// ============================================================================
// Errors
// ============================================================================

var ErrRegistry = errx.NewRegistry("MEMORY")

var (
	CodeCacheMiss      = ErrRegistry.Register("CACHE_MISS", errx.TypeNotFound, http.StatusNotFound, "Conversation window not cached")
	CodeDuplicateTurn  = ErrRegistry.Register("DUPLICATE_TURN", errx.TypeConflict, http.StatusConflict, "Turn index already recorded for conversation")
	CodeInvalidMessage = ErrRegistry.Register("INVALID_MESSAGE", errx.TypeValidation, http.StatusBadRequest, "Invalid message")
	CodeInvalidWindow  = ErrRegistry.Register("INVALID_WINDOW", errx.TypeInternal, http.StatusInternalServerError, "Cached window could not be decoded")
	CodeLogUnavailable = ErrRegistry.Register("LOG_UNAVAILABLE", errx.TypeInternal, http.StatusInternalServerError, "Conversation log unavailable")
	CodeConversationID = ErrRegistry.Register("CONVERSATION_ID_REQUIRED", errx.TypeValidation, http.StatusBadRequest, "Conversation id is required")
)

func ErrCacheMiss() *errx.Error {
	return ErrRegistry.New(CodeCacheMiss)
}

func ErrDuplicateTurn() *errx.Error {
	return ErrRegistry.New(CodeDuplicateTurn)
}

func ErrInvalidMessage() *errx.Error {
	return ErrRegistry.New(CodeInvalidMessage)
}

func ErrInvalidWindow() *errx.Error {
	return ErrRegistry.New(CodeInvalidWindow)
}

func ErrLogUnavailable() *errx.Error {
	return ErrRegistry.New(CodeLogUnavailable)
}

func ErrConversationIDRequired() *errx.Error {
	return ErrRegistry.New(CodeConversationID)
}
