package agentx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/Abraxas-365/chatmemory/pkg/ai/llm/memoryx"
	"github.com/Abraxas-365/chatmemory/pkg/ai/llm/toolx"
	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/logx"
	"github.com/sourcegraph/conc/pool"
)

// Agent represents an LLM-powered agent with memory and tool capabilities
type Agent struct {
	client             *llm.Client
	tools              *toolx.ToolxClient
	memory             memoryx.Memory
	options            []llm.Option
	maxAutoIterations  int // Max iterations with "auto" tool choice
	maxTotalIterations int // Hard limit to prevent infinite loops
	toolConcurrency    int
}

// AgentOption configures an Agent
type AgentOption func(*Agent)

// WithOptions adds LLM options to the agent
func WithOptions(options ...llm.Option) AgentOption {
	return func(a *Agent) {
		a.options = append(a.options, options...)
	}
}

// WithTools adds tools to the agent
func WithTools(tools *toolx.ToolxClient) AgentOption {
	return func(a *Agent) {
		a.tools = tools
	}
}

// WithMaxAutoIterations sets the maximum number of "auto" tool choice iterations
func WithMaxAutoIterations(n int) AgentOption {
	return func(a *Agent) {
		a.maxAutoIterations = n
	}
}

// WithMaxTotalIterations sets the hard limit for total iterations
func WithMaxTotalIterations(n int) AgentOption {
	return func(a *Agent) {
		a.maxTotalIterations = n
	}
}

// WithToolConcurrency bounds how many tool calls of one response run at once.
func WithToolConcurrency(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.toolConcurrency = n
		}
	}
}

// New creates a new agent
func New(client *llm.Client, memory memoryx.Memory, opts ...AgentOption) *Agent {
	agent := &Agent{
		client:             client,
		memory:             memory,
		maxAutoIterations:  3,  // Default: 3 "auto" iterations
		maxTotalIterations: 10, // Hard limit for safety
		toolConcurrency:    4,
	}

	for _, opt := range opts {
		opt(agent)
	}

	return agent
}

// Run records the user message, then alternates model calls and tool
// executions until the model answers with text. Every message is added to
// memory as soon as it exists.
func (a *Agent) Run(ctx context.Context, userInput string) (string, error) {
	return a.run(ctx, userInput, nil)
}

func (a *Agent) run(ctx context.Context, userInput string, eval *AgentEvaluation) (string, error) {
	if err := a.memory.Add(ctx, llm.NewUserMessage(userInput)); err != nil {
		return "", fmt.Errorf("failed to add user message: %w", err)
	}

	for iteration := 0; ; iteration++ {
		if iteration > a.maxTotalIterations {
			return "", ErrMaxIterations().WithDetail("max_total_iterations", a.maxTotalIterations)
		}

		messages, err := a.memory.Messages(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to retrieve messages: %w", err)
		}

		response, err := a.client.Chat(ctx, messages, a.chatOptions(iteration)...)
		if err != nil {
			return "", ErrLLM().WithCause(err)
		}

		step := AgentStep{
			StepType:      stepType(iteration),
			InputMessages: messages,
			OutputMessage: response.Message,
			Invocations:   response.Invocations,
			TokenUsage:    response.Usage,
		}

		if !response.HasToolCalls() || a.tools == nil {
			reply := response.Message
			if reply.Kind != llm.KindAgentText {
				reply = llm.NewAgentMessage(reply.Text)
			}
			if err := a.memory.Add(ctx, reply); err != nil {
				return "", fmt.Errorf("failed to add assistant response: %w", err)
			}
			eval.record(step)
			return reply.Text, nil
		}

		if response.Message.Text != "" {
			if err := a.memory.Add(ctx, llm.NewAgentMessage(response.Message.Text)); err != nil {
				return "", fmt.Errorf("failed to add assistant response: %w", err)
			}
		}

		results, err := a.executeTools(ctx, response.Invocations)
		if err != nil {
			return "", err
		}
		for i, invocation := range response.Invocations {
			if err := a.memory.Add(ctx, invocation); err != nil {
				return "", fmt.Errorf("failed to add tool invocation: %w", err)
			}
			if err := a.memory.Add(ctx, results[i]); err != nil {
				return "", fmt.Errorf("failed to add tool response: %w", err)
			}
		}

		step.ToolResults = results
		eval.record(step)
	}
}

// chatOptions applies the smart tool choice: no preference on the first
// call, "auto" for the next maxAutoIterations calls, then "none".
func (a *Agent) chatOptions(iteration int) []llm.Option {
	options := append([]llm.Option(nil), a.options...)
	if a.tools == nil {
		return options
	}
	toolList := a.tools.GetTools()
	if len(toolList) == 0 {
		return options
	}
	options = append(options, llm.WithTools(toolList))

	switch {
	case iteration == 0:
	case iteration <= a.maxAutoIterations:
		options = append(options, llm.WithToolChoice("auto"))
	default:
		options = append(options, llm.WithToolChoice("none"))
	}
	return options
}

// executeTools runs the calls of one response concurrently. Results keep
// the order of the invocations.
func (a *Agent) executeTools(ctx context.Context, invocations []llm.Message) ([]llm.Message, error) {
	results := make([]llm.Message, len(invocations))

	p := pool.New().WithMaxGoroutines(a.toolConcurrency).WithContext(ctx)
	for i, invocation := range invocations {
		p.Go(func(ctx context.Context) error {
			res, err := a.tools.Call(ctx, invocation)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, ErrToolExecution().WithCause(err)
	}

	logx.WithFields(logx.Fields{
		"calls": len(invocations),
	}).Debug("tool calls executed")
	return results, nil
}

// ClearMemory resets the conversation
func (a *Agent) ClearMemory(ctx context.Context) error {
	return a.memory.Clear(ctx)
}

// AddMessage adds a message to memory
func (a *Agent) AddMessage(ctx context.Context, message llm.Message) error {
	return a.memory.Add(ctx, message)
}

// Messages returns all messages in memory
func (a *Agent) Messages(ctx context.Context) ([]llm.Message, error) {
	return a.memory.Messages(ctx)
}

// RunConversation runs a complete conversation with multiple turns
func (a *Agent) RunConversation(ctx context.Context, userInputs []string) ([]string, error) {
	var responses []string

	for _, input := range userInputs {
		response, err := a.Run(ctx, input)
		if err != nil {
			return responses, err
		}
		responses = append(responses, response)
	}

	return responses, nil
}

// EvaluateWithTools runs the agent and returns every model call it made
func (a *Agent) EvaluateWithTools(ctx context.Context, userInput string) (*AgentEvaluation, error) {
	eval := &AgentEvaluation{
		UserInput: userInput,
		Steps:     []AgentStep{},
	}
	result, err := a.run(ctx, userInput, eval)
	if err != nil {
		return eval, err
	}
	eval.FinalResponse = result
	return eval, nil
}

func stepType(iteration int) string {
	if iteration == 0 {
		return "initial"
	}
	return "response"
}

// Types for evaluation

type AgentEvaluation struct {
	UserInput     string      `json:"user_input"`
	Steps         []AgentStep `json:"steps"`
	FinalResponse string      `json:"final_response"`
}

func (e *AgentEvaluation) record(step AgentStep) {
	if e != nil {
		e.Steps = append(e.Steps, step)
	}
}

type AgentStep struct {
	StepType      string        `json:"step_type"`      // "initial", "response"
	InputMessages []llm.Message `json:"input_messages"` // Messages sent to the LLM
	OutputMessage llm.Message   `json:"output_message"` // Text returned by the LLM
	Invocations   []llm.Message `json:"invocations"`    // Tool calls made
	ToolResults   []llm.Message `json:"tool_results"`   // Responses from the tools
	TokenUsage    llm.Usage     `json:"token_usage"`    // Token usage information
}

// ============================================================================
// Errors
// ============================================================================

var ErrRegistry = errx.NewRegistry("AGENT")

var (
	CodeMaxIterations = ErrRegistry.Register("MAX_ITERATIONS", errx.TypeBusiness, http.StatusUnprocessableEntity, "Maximum total iterations exceeded")
	CodeLLM           = ErrRegistry.Register("LLM", errx.TypeExternal, http.StatusBadGateway, "Language model request failed")
	CodeToolExecution = ErrRegistry.Register("TOOL_EXECUTION", errx.TypeInternal, http.StatusInternalServerError, "Tool execution error")
)

func ErrMaxIterations() *errx.Error {
	return ErrRegistry.New(CodeMaxIterations)
}

func ErrLLM() *errx.Error {
	return ErrRegistry.New(CodeLLM)
}

func ErrToolExecution() *errx.Error {
	return ErrRegistry.New(CodeToolExecution)
}
