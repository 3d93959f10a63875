package llm

import (
	"errors"
	"fmt"
)

// Kind is the discriminant of the Message union.
type Kind string

const (
	KindSystem         Kind = "system"
	KindUser           Kind = "user"
	KindAgentText      Kind = "agent_text"
	KindToolInvocation Kind = "tool_invocation"
	KindToolResult     Kind = "tool_result"
)

// Kinds lists every member of the union in declaration order.
var Kinds = []Kind{KindSystem, KindUser, KindAgentText, KindToolInvocation, KindToolResult}

func (k Kind) Valid() bool {
	switch k {
	case KindSystem, KindUser, KindAgentText, KindToolInvocation, KindToolResult:
		return true
	default:
		return false
	}
}

// ToolInvocation is a request from the agent to run a tool.
type ToolInvocation struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the output returned for a ToolInvocation with the same CallID.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Message is a closed union over Kind. System, User and AgentText carry
// Text; ToolInvocation carries Invocation; ToolResult carries Result.
// Build messages with the constructors below.
type Message struct {
	Kind       Kind            `json:"kind"`
	Text       string          `json:"text,omitempty"`
	Invocation *ToolInvocation `json:"invocation,omitempty"`
	Result     *ToolResult     `json:"result,omitempty"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Function describes a callable function
type Function struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"` // JSON Schema object
}

// Tool represents a callable tool
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

func NewSystemMessage(text string) Message {
	return Message{Kind: KindSystem, Text: text}
}

func NewUserMessage(text string) Message {
	return Message{Kind: KindUser, Text: text}
}

func NewAgentMessage(text string) Message {
	return Message{Kind: KindAgentText, Text: text}
}

func NewToolInvocation(callID, name, arguments string) Message {
	return Message{
		Kind:       KindToolInvocation,
		Invocation: &ToolInvocation{CallID: callID, Name: name, Arguments: arguments},
	}
}

func NewToolResult(callID, name, content string) Message {
	return Message{
		Kind:   KindToolResult,
		Result: &ToolResult{CallID: callID, Name: name, Content: content},
	}
}

func (m Message) IsSystem() bool         { return m.Kind == KindSystem }
func (m Message) IsToolInvocation() bool { return m.Kind == KindToolInvocation }
func (m Message) IsToolResult() bool     { return m.Kind == KindToolResult }

// CallID returns the tool call id of an invocation or result, "" otherwise.
func (m Message) CallID() string {
	switch m.Kind {
	case KindToolInvocation:
		if m.Invocation != nil {
			return m.Invocation.CallID
		}
	case KindToolResult:
		if m.Result != nil {
			return m.Result.CallID
		}
	case KindSystem, KindUser, KindAgentText:
	}
	return ""
}

// Content renders the message payload as a single string for logs and exports.
func (m Message) Content() string {
	switch m.Kind {
	case KindSystem, KindUser, KindAgentText:
		return m.Text
	case KindToolInvocation:
		if m.Invocation == nil {
			return ""
		}
		return fmt.Sprintf("%s(%s)", m.Invocation.Name, m.Invocation.Arguments)
	case KindToolResult:
		if m.Result == nil {
			return ""
		}
		return m.Result.Content
	default:
		return ""
	}
}

var (
	ErrUnknownKind     = errors.New("llm: unknown message kind")
	ErrPayloadMismatch = errors.New("llm: payload does not match message kind")
)

// Validate checks that exactly the payload variant of Kind is set.
func (m Message) Validate() error {
	switch m.Kind {
	case KindSystem, KindUser, KindAgentText:
		if m.Invocation != nil || m.Result != nil {
			return fmt.Errorf("%w: %s carries a tool payload", ErrPayloadMismatch, m.Kind)
		}
	case KindToolInvocation:
		if m.Invocation == nil || m.Result != nil {
			return fmt.Errorf("%w: %s", ErrPayloadMismatch, m.Kind)
		}
	case KindToolResult:
		if m.Result == nil || m.Invocation != nil {
			return fmt.Errorf("%w: %s", ErrPayloadMismatch, m.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return nil
}

// Equal compares kind and payload.
func (m Message) Equal(o Message) bool {
	if m.Kind != o.Kind || m.Text != o.Text {
		return false
	}
	if (m.Invocation == nil) != (o.Invocation == nil) || (m.Result == nil) != (o.Result == nil) {
		return false
	}
	if m.Invocation != nil && *m.Invocation != *o.Invocation {
		return false
	}
	if m.Result != nil && *m.Result != *o.Result {
		return false
	}
	return true
}
