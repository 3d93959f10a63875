package aiopenai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"
)

// OpenAIProvider implements the LLM interface for OpenAI
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = "gpt-4o"
	}

	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(options...)

	return &OpenAIProvider{
		client: client,
		model:  model,
	}
}

func (p *OpenAIProvider) defaultChatOptions() *llm.ChatOptions {
	options := llm.DefaultOptions()
	options.Model = p.model
	return options
}

var ErrNoChoices = errors.New("openai: no choices in response")

// Chat implements the LLM interface
func (p *OpenAIProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	options := p.defaultChatOptions()
	for _, opt := range opts {
		opt(options)
	}

	openAIMessages, err := convertToOpenAIMessages(messages)
	if err != nil {
		return llm.Response{}, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, buildParams(openAIMessages, options))
	if err != nil {
		return llm.Response{}, err
	}

	return convertFromOpenAIResponse(completion)
}

func buildParams(messages []openai.ChatCompletionMessageParamUnion, options *llm.ChatOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    options.Model,
	}

	// Set optional parameters
	if options.Temperature != 0 {
		params.Temperature = openai.Float(float64(options.Temperature))
	}

	if options.TopP != 0 {
		params.TopP = openai.Float(float64(options.TopP))
	}

	if options.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(options.MaxCompletionTokens))
	}

	if options.User != "" {
		params.User = openai.String(options.User)
	}

	if len(options.Tools) > 0 {
		params.Tools = convertToOpenAITools(options.Tools)

		if options.ToolChoice != nil {
			params.ToolChoice = convertToOpenAIToolChoice(options.ToolChoice)
		}
	}

	return params
}

// convertToOpenAIMessages maps the message union onto chat completion
// messages. Each ToolInvocation becomes an assistant message with one tool
// call. Invocations without a directly following result, and results
// without a directly preceding invocation, are left out because the API
// rejects unanswered tool calls.
func convertToOpenAIMessages(messages []llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i, msg := range messages {
		switch msg.Kind {
		case llm.KindToolInvocation:
			if i+1 >= len(messages) || !answers(messages[i+1], msg) {
				continue
			}
		case llm.KindToolResult:
			if i == 0 || !answers(msg, messages[i-1]) {
				continue
			}
		case llm.KindSystem, llm.KindUser, llm.KindAgentText:
		}

		converted, err := convertToOpenAIMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

func answers(result, invocation llm.Message) bool {
	return result.IsToolResult() && invocation.IsToolInvocation() && result.CallID() == invocation.CallID()
}

func convertToOpenAIMessage(msg llm.Message) (openai.ChatCompletionMessageParamUnion, error) {
	if err := msg.Validate(); err != nil {
		return openai.ChatCompletionMessageParamUnion{}, err
	}

	switch msg.Kind {
	case llm.KindSystem:
		return openai.SystemMessage(msg.Text), nil
	case llm.KindUser:
		return openai.UserMessage(msg.Text), nil
	case llm.KindAgentText:
		return openai.AssistantMessage(msg.Text), nil
	case llm.KindToolInvocation:
		inv := msg.Invocation
		return openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Role: constant.Assistant("assistant"),
				ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID:   inv.CallID,
						Type: constant.Function("function"),
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      inv.Name,
							Arguments: inv.Arguments,
						},
					},
				}},
			},
		}, nil
	case llm.KindToolResult:
		return openai.ToolMessage(msg.Result.Content, msg.Result.CallID), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %q", llm.ErrUnknownKind, msg.Kind)
	}
}

func convertToOpenAITools(tools []llm.Tool) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		if tool.Type != "function" {
			continue
		}
		paramsJSON, _ := json.Marshal(tool.Function.Parameters)
		var parametersMap map[string]any
		_ = json.Unmarshal(paramsJSON, &parametersMap)

		result = append(result, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  openai.FunctionParameters(parametersMap),
		}))
	}

	return result
}

func convertToOpenAIToolChoice(toolChoice any) openai.ChatCompletionToolChoiceOptionUnionParam {
	if strChoice, ok := toolChoice.(string); ok {
		switch strChoice {
		case "auto", "none", "required":
			return openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(strChoice),
			}
		}
	}

	// Unknown choices fall back to auto
	return openai.ChatCompletionToolChoiceOptionUnionParam{
		OfAuto: openai.String("auto"),
	}
}

// convertFromOpenAIResponse splits the first choice into its text and one
// ToolInvocation per tool call, in order.
func convertFromOpenAIResponse(completion *openai.ChatCompletion) (llm.Response, error) {
	if len(completion.Choices) == 0 {
		return llm.Response{}, ErrNoChoices
	}

	choice := completion.Choices[0]

	response := llm.Response{
		Message: llm.NewAgentMessage(choice.Message.Content),
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		response.Invocations = append(response.Invocations,
			llm.NewToolInvocation(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	return response, nil
}
