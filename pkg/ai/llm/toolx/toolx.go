package toolx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
)

type Toolx interface {
	Call(ctx context.Context, inputs string) (any, error)
	GetTool() llm.Tool
	Name() string
}

type ToolxClient struct {
	tools map[string]Toolx
}

func FromToolx(tools ...Toolx) *ToolxClient {
	toolMap := make(map[string]Toolx)
	for _, tool := range tools {
		toolMap[tool.Name()] = tool
	}
	return &ToolxClient{tools: toolMap}
}

// GetTools returns the tool definitions sorted by name.
func (t *ToolxClient) GetTools() []llm.Tool {
	tools := make([]llm.Tool, 0, len(t.tools))
	for _, tool := range t.tools {
		tools = append(tools, tool.GetTool())
	}
	slices.SortFunc(tools, func(a, b llm.Tool) int {
		return strings.Compare(a.Function.Name, b.Function.Name)
	})
	return tools
}

func (t *ToolxClient) Has(name string) bool {
	_, ok := t.tools[name]
	return ok
}

// Call runs the tool named by a ToolInvocation and returns the matching
// ToolResult. Tool failures become the result content so the model can see
// them; only a message that is not an invocation is an error.
func (t *ToolxClient) Call(ctx context.Context, invocation llm.Message) (llm.Message, error) {
	if !invocation.IsToolInvocation() || invocation.Invocation == nil {
		return llm.Message{}, ErrNotAnInvocation().WithDetail("kind", string(invocation.Kind))
	}
	inv := invocation.Invocation

	tool, ok := t.tools[inv.Name]
	if !ok {
		return llm.NewToolResult(inv.CallID, inv.Name, ErrToolNotFound().WithDetail("tool", inv.Name).Error()), nil
	}

	result, err := tool.Call(ctx, inv.Arguments)
	if err != nil {
		return llm.NewToolResult(inv.CallID, inv.Name, ErrToolFailed().WithCause(err).Error()), nil
	}

	var resultStr string
	switch v := result.(type) {
	case string:
		resultStr = v
	case []byte:
		resultStr = string(v)
	case int:
		resultStr = strconv.Itoa(v)
	case float64:
		resultStr = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		resultStr = strconv.FormatBool(v)
	case fmt.Stringer:
		resultStr = v.String()
	default:
		// Use JSON marshaling for complex types
		jsonBytes, jsonErr := json.Marshal(result)
		if jsonErr != nil {
			return llm.NewToolResult(inv.CallID, inv.Name, ErrToolFailed().WithCause(jsonErr).Error()), nil
		}
		resultStr = string(jsonBytes)
	}
	return llm.NewToolResult(inv.CallID, inv.Name, resultStr), nil
}

// ============================================================================
// Errors
// ============================================================================

var ErrRegistry = errx.NewRegistry("TOOL")

var (
	CodeToolNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "This tool does not exist")
	CodeToolFailed       = ErrRegistry.Register("FAILED", errx.TypeExternal, http.StatusBadGateway, "Error calling tool")
	CodeNotAnInvocation  = ErrRegistry.Register("NOT_AN_INVOCATION", errx.TypeValidation, http.StatusBadRequest, "Message is not a tool invocation")
	CodeInvalidArguments = ErrRegistry.Register("INVALID_ARGUMENTS", errx.TypeValidation, http.StatusBadRequest, "Invalid tool arguments")
)

func ErrToolNotFound() *errx.Error {
	return ErrRegistry.New(CodeToolNotFound)
}

func ErrToolFailed() *errx.Error {
	return ErrRegistry.New(CodeToolFailed)
}

func ErrNotAnInvocation() *errx.Error {
	return ErrRegistry.New(CodeNotAnInvocation)
}

func ErrInvalidArguments() *errx.Error {
	return ErrRegistry.New(CodeInvalidArguments)
}
