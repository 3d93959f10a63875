package memory

import (
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/fxamacker/cbor/v2"
)

// Placeholders substituted for stored tool payloads that cannot be decoded.
const (
	PlaceholderToolCall   = "tool call in progress"
	PlaceholderToolResult = "unknown tool result"
	UnknownToolField      = "unknown"
)

// Payload is the stored form of a message body, shared by the log and
// the cache.
type Payload struct {
	Text      string `json:"text,omitempty" cbor:"text,omitempty"`
	CallID    string `json:"call_id,omitempty" cbor:"call_id,omitempty"`
	Name      string `json:"name,omitempty" cbor:"name,omitempty"`
	Arguments string `json:"arguments,omitempty" cbor:"arguments,omitempty"`
	Content   string `json:"content,omitempty" cbor:"content,omitempty"`
}

func EncodePayload(m llm.Message) Payload {
	switch m.Kind {
	case llm.KindSystem, llm.KindUser, llm.KindAgentText:
		return Payload{Text: m.Text}
	case llm.KindToolInvocation:
		if m.Invocation == nil {
			return Payload{}
		}
		return Payload{CallID: m.Invocation.CallID, Name: m.Invocation.Name, Arguments: m.Invocation.Arguments}
	case llm.KindToolResult:
		if m.Result == nil {
			return Payload{}
		}
		return Payload{CallID: m.Result.CallID, Name: m.Result.Name, Content: m.Result.Content}
	default:
		return Payload{Text: m.Text}
	}
}

// DecodeMessage rebuilds a message from its stored kind and payload. A
// tool payload missing its id or name, or an unknown kind, decodes to a
// placeholder and ok is false.
func DecodeMessage(kind llm.Kind, p Payload) (msg llm.Message, ok bool) {
	switch kind {
	case llm.KindSystem:
		return llm.NewSystemMessage(p.Text), true
	case llm.KindUser:
		return llm.NewUserMessage(p.Text), true
	case llm.KindAgentText:
		return llm.NewAgentMessage(p.Text), true
	case llm.KindToolInvocation:
		if p.CallID == "" || p.Name == "" {
			return llm.NewAgentMessage(PlaceholderToolCall), false
		}
		return llm.NewToolInvocation(p.CallID, p.Name, p.Arguments), true
	case llm.KindToolResult:
		if p.CallID != "" && p.Name != "" {
			return llm.NewToolResult(p.CallID, p.Name, p.Content), true
		}
		content := p.Content
		if content == "" {
			content = PlaceholderToolResult
		}
		return llm.NewToolResult(orUnknown(p.CallID), orUnknown(p.Name), content), false
	default:
		if p.Text != "" {
			return llm.NewAgentMessage(p.Text), false
		}
		return llm.NewAgentMessage(PlaceholderToolCall), false
	}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownToolField
	}
	return s
}

// ============================================================================
// Window codec
// ============================================================================

var (
	windowEncMode cbor.EncMode
	windowDecMode cbor.DecMode
)

func init() {
	var err error
	windowEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("memory: CBOR encoder initialization failed: " + err.Error())
	}
	windowDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("memory: CBOR decoder initialization failed: " + err.Error())
	}
}

type cachedTurn struct {
	Index     int     `cbor:"index"`
	Kind      string  `cbor:"kind"`
	Payload   Payload `cbor:"payload"`
	CreatedAt int64   `cbor:"created_at"`
}

type cachedWindow struct {
	ConversationID   string       `cbor:"conversation_id"`
	Turns            []cachedTurn `cbor:"turns"`
	CurrentTurnIndex int          `cbor:"current_turn_index"`
	LastAccessAt     int64        `cbor:"last_access_at"`
}

// EncodeWindow serializes a window for the cache backend.
func EncodeWindow(w *Window) ([]byte, error) {
	cw := cachedWindow{
		ConversationID:   w.ConversationID.String(),
		Turns:            make([]cachedTurn, len(w.Turns)),
		CurrentTurnIndex: w.CurrentTurnIndex,
		LastAccessAt:     w.LastAccessAt.UnixMilli(),
	}
	for i, t := range w.Turns {
		cw.Turns[i] = cachedTurn{
			Index:     t.Index,
			Kind:      string(t.Message.Kind),
			Payload:   EncodePayload(t.Message),
			CreatedAt: t.CreatedAt.UnixMilli(),
		}
	}
	data, err := windowEncMode.Marshal(cw)
	if err != nil {
		return nil, ErrInvalidWindow().WithCause(err)
	}
	return data, nil
}

// DecodeWindow parses a cached window. degraded counts turns replaced by
// placeholders. A window without its System turn at index 0 is invalid.
func DecodeWindow(data []byte) (w *Window, degraded int, err error) {
	var cw cachedWindow
	if err := windowDecMode.Unmarshal(data, &cw); err != nil {
		return nil, 0, ErrInvalidWindow().WithCause(err)
	}
	if len(cw.Turns) == 0 || cw.Turns[0].Index != SystemTurnIndex || llm.Kind(cw.Turns[0].Kind) != llm.KindSystem {
		return nil, 0, ErrInvalidWindow().WithDetail("reason", "missing system turn")
	}

	id := kernel.ConversationID(cw.ConversationID)
	w = &Window{
		ConversationID:   id,
		Turns:            make([]Turn, len(cw.Turns)),
		CurrentTurnIndex: cw.CurrentTurnIndex,
		LastAccessAt:     time.UnixMilli(cw.LastAccessAt),
	}
	for i, ct := range cw.Turns {
		msg, ok := DecodeMessage(llm.Kind(ct.Kind), ct.Payload)
		if !ok {
			degraded++
		}
		w.Turns[i] = Turn{
			ConversationID: id,
			Index:          ct.Index,
			Message:        msg,
			CreatedAt:      time.UnixMilli(ct.CreatedAt),
		}
	}
	return w, degraded, nil
}
