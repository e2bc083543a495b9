package llm

import "github.com/kbukum/llmstream/document"

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role" yaml:"role" binding:"required,oneof=system user assistant tool"` // "system", "user", "assistant", "tool"
	Content string `json:"content" yaml:"content"`
	// ToolCalls are the calls an assistant message made, replayed in follow-up turns.
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls"`
	// ToolCallID links a "tool" message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty" yaml:"tool_call_id"`
}

// Tool declares a function the model may call.
type Tool struct {
	Name        string `json:"name" yaml:"name" binding:"required"`
	Description string `json:"description,omitempty" yaml:"description"`
	// Parameters is the JSON Schema of the function arguments.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters"`
}

// ToolCall is a function call requested by the model. Arguments holds the raw
// JSON text exactly as the provider produced it; see ParseArguments.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CompletionRequest is the universal input for all LLM providers.
type CompletionRequest struct {
	// Model overrides the adapter's default model.
	Model string `json:"model,omitempty" yaml:"model"`
	// Messages is the conversation history.
	Messages []Message `json:"messages" yaml:"messages" binding:"required,min=1,dive"`
	// SystemPrompt is prepended as a system message.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt"`
	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature" binding:"gte=0,lte=2"`
	// MaxTokens limits the response length. 0 means provider default.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens" binding:"gte=0"`
	// Tools are the functions offered to the model.
	Tools []Tool `json:"tools,omitempty" yaml:"tools" binding:"dive"`
	// Stream requests streaming mode. Set automatically by the streaming calls.
	Stream bool `json:"stream,omitempty" yaml:"stream"`
	// Extra holds provider-specific fields copied verbatim into the request body.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra"`
}

// Choice is one candidate answer.
type Choice struct {
	Index        int        `json:"index"`
	Role         string     `json:"role"`
	Content      string     `json:"content"`
	Reasoning    string     `json:"reasoning,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// CompletionResponse is the universal output from all LLM providers.
type CompletionResponse struct {
	// Content is the text of the first choice.
	Content string `json:"content"`
	// ToolCalls are the tool calls of the first choice.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// FinishReason is the provider's stop reason for the first choice.
	FinishReason string `json:"finish_reason,omitempty"`
	// Choices holds every candidate, in index order.
	Choices []Choice `json:"choices"`
	// Model is the model that produced the response.
	Model string `json:"model"`
	// Usage reports token consumption.
	Usage Usage `json:"usage"`
	// Raw is the provider document the response was read from. For streamed
	// calls it is the cumulative document assembled from the deltas.
	Raw *document.Value `json:"-"`
}

// NewCompletionResponse builds a response whose top-level fields mirror the
// first choice.
func NewCompletionResponse(model string, choices []Choice, usage Usage, raw *document.Value) *CompletionResponse {
	resp := &CompletionResponse{
		Choices: choices,
		Model:   model,
		Usage:   usage,
		Raw:     raw,
	}
	if len(choices) > 0 {
		resp.Content = choices[0].Content
		resp.ToolCalls = choices[0].ToolCalls
		resp.FinishReason = choices[0].FinishReason
	}
	return resp
}

// StreamChunk is a single piece of a streamed response.
type StreamChunk struct {
	// Content is the text fragment.
	Content string `json:"content"`
	// Done indicates this is the final chunk.
	Done bool `json:"done"`
	// Response is the assembled response, set on the final chunk.
	Response *CompletionResponse `json:"response,omitempty"`
	// Err is set when a streaming error occurs.
	Err error `json:"-"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsage builds a Usage, deriving the total when the provider omits it.
func NewUsage(prompt, completion, total int) Usage {
	if total == 0 {
		total = prompt + completion
	}
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}
