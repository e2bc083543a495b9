package openai

import (
	"io"

	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	"github.com/kbukum/llmstream/httpclient"
	"github.com/kbukum/llmstream/llm"
)

const (
	// DialectName is the registered name for the OpenAI dialect.
	DialectName = "openai"

	defaultOpenAIURL = "https://api.openai.com"
)

func init() {
	llm.RegisterDialect(DialectName, Dialect{})
}

// messageTable routes the fields of a choice delta into the choice message.
var messageTable = delta.Table{
	"content":           {Policy: delta.Concat, Emit: true},
	"reasoning_content": {Policy: delta.Concat},
	"refusal":           {Policy: delta.Concat},
	"tool_calls": {
		Policy:     delta.Indexed,
		IndexKey:   "index",
		StripIndex: true,
		Fields: delta.Table{
			"function": {Policy: delta.Nested, Fields: delta.Table{
				"arguments": {Policy: delta.Concat},
			}},
		},
	},
}

// Table routes chat.completion.chunk payloads into a chat.completion document.
var Table = delta.Table{
	"choices": {
		Policy:   delta.Indexed,
		IndexKey: "index",
		Slot:     choiceSlot,
		Fields: delta.Table{
			"delta": {Policy: delta.Nested, Into: "message", Fields: messageTable},
		},
	},
}

func choiceSlot(i int) *document.Value {
	slot := document.NewObject()
	slot.Set("index", document.NewInt(i))
	msg := slot.Set("message", document.NewObject())
	msg.Set("role", document.NewString("assistant"))
	return slot
}

// Dialect maps the universal types to the OpenAI chat completions API. It
// also serves OpenAI-compatible servers through a different base URL.
type Dialect struct{}

var _ llm.Dialect = Dialect{}

// Name returns the dialect name.
func (Dialect) Name() string { return DialectName }

// DefaultBaseURL returns the public API address.
func (Dialect) DefaultBaseURL() string { return defaultOpenAIURL }

// ChatPath returns the chat completions endpoint.
func (Dialect) ChatPath(llm.CompletionRequest) string { return "/v1/chat/completions" }

// HealthPath lists models.
func (Dialect) HealthPath() string { return "/v1/models" }

// StreamFormat returns SSE.
func (Dialect) StreamFormat() llm.StreamFormat { return llm.StreamSSE }

// Auth returns bearer credentials.
func (Dialect) Auth(apiKey string) *httpclient.AuthConfig { return httpclient.BearerAuth(apiKey) }

// NewMerger returns a Merger over Table.
func (Dialect) NewMerger(sink io.Writer) delta.Engine {
	return delta.New(Table, delta.WithSink(sink))
}

// --- internal OpenAI API types ---

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function function `json:"function"`
}

type function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type tool struct {
	Type     string   `json:"type"`
	Function toolSpec `json:"function"`
}

type toolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Temperature   float64        `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Tools         []tool         `json:"tools,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

// BuildRequest creates a chat completions request. Streaming requests ask
// for a final usage chunk so streamed and buffered responses report the same
// token counts.
func (Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msg := chatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, toolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: function{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		msgs = append(msgs, msg)
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	if req.Stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, tool{
			Type:     "function",
			Function: toolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	if len(req.Extra) == 0 {
		return body, nil
	}
	doc, err := document.FromAny(body)
	if err != nil {
		return nil, err
	}
	if err := llm.SetExtra(doc, req.Extra); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseResponse reads a chat.completion document.
func (Dialect) ParseResponse(body *document.Value) (*llm.CompletionResponse, error) {
	items := body.Get("choices").Items()
	choices := make([]llm.Choice, 0, len(items))
	for pos, c := range items {
		msg := c.Get("message")
		idx, ok := c.Get("index").AsInt()
		if !ok {
			idx = pos
		}
		choice := llm.Choice{
			Index:        idx,
			Role:         msg.Get("role").Text(),
			Content:      msg.Get("content").Text(),
			Reasoning:    msg.Get("reasoning_content").Text(),
			FinishReason: c.Get("finish_reason").Text(),
		}
		if choice.Role == "" {
			choice.Role = "assistant"
		}
		for _, tc := range msg.Get("tool_calls").Items() {
			fn := tc.Get("function")
			if fn == nil {
				continue
			}
			choice.ToolCalls = append(choice.ToolCalls, llm.ToolCall{
				ID:        tc.Get("id").Text(),
				Name:      fn.Get("name").Text(),
				Arguments: llm.ArgumentsText(fn.Get("arguments")),
			})
		}
		choices = append(choices, choice)
	}

	u := body.Get("usage")
	usage := llm.NewUsage(u.Get("prompt_tokens").Int(), u.Get("completion_tokens").Int(), u.Get("total_tokens").Int())
	return llm.NewCompletionResponse(body.Get("model").Text(), choices, usage, body), nil
}
