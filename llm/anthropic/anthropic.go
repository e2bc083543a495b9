package anthropic

import (
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	"github.com/kbukum/llmstream/httpclient"
	"github.com/kbukum/llmstream/llm"
)

const (
	// DialectName is the registered name for the Anthropic dialect.
	DialectName = "anthropic"

	// DefaultModel is used when neither the request nor the adapter names a model.
	DefaultModel = "claude-3-5-sonnet-latest"

	// DefaultMaxTokens is sent when the request sets no limit. The Messages
	// API requires max_tokens.
	DefaultMaxTokens = 1024

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	defaultAnthropicURL = "https://api.anthropic.com"
)

func init() {
	llm.RegisterDialect(DialectName, Dialect{})
}

// Dialect maps the universal types to the Anthropic Messages API.
type Dialect struct{}

var (
	_ llm.Dialect        = Dialect{}
	_ llm.HeaderProvider = Dialect{}
)

// Name returns the dialect name.
func (Dialect) Name() string { return DialectName }

// DefaultBaseURL returns the public API address.
func (Dialect) DefaultBaseURL() string { return defaultAnthropicURL }

// ChatPath returns the messages endpoint, which serves both modes.
func (Dialect) ChatPath(llm.CompletionRequest) string { return "/v1/messages" }

// HealthPath lists models.
func (Dialect) HealthPath() string { return "/v1/models" }

// StreamFormat returns SSE.
func (Dialect) StreamFormat() llm.StreamFormat { return llm.StreamSSE }

// Auth sends the key in the x-api-key header.
func (Dialect) Auth(apiKey string) *httpclient.AuthConfig {
	return httpclient.APIKeyAuthHeader(apiKey, "x-api-key")
}

// Headers returns the API version header.
func (Dialect) Headers() map[string]string {
	return map[string]string{"anthropic-version": APIVersion}
}

// NewMerger returns an Engine folding Messages API events.
func (Dialect) NewMerger(sink io.Writer) delta.Engine { return NewEngine(sink) }

// --- internal Anthropic API types ---

type block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Tools       []tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// BuildRequest creates a Messages API request. System messages join the
// top-level system prompt, tool results travel as tool_result blocks in a
// user turn, and consecutive turns of the same role are merged.
func (Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	body := messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	if body.Model == "" {
		body.Model = DefaultModel
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = DefaultMaxTokens
	}

	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		var role string
		var blocks []block
		switch m.Role {
		case "system":
			system = append(system, m.Content)
			continue
		case "tool":
			role = "user"
			blocks = []block{{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content}}
		case "assistant":
			role = "assistant"
			if m.Content != "" {
				blocks = append(blocks, block{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, block{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
		default:
			role = "user"
			blocks = []block{{Type: "text", Text: m.Content}}
		}
		if n := len(body.Messages); n > 0 && body.Messages[n-1].Role == role {
			body.Messages[n-1].Content = append(body.Messages[n-1].Content, blocks...)
			continue
		}
		body.Messages = append(body.Messages, message{Role: role, Content: blocks})
	}
	body.System = strings.Join(system, "\n\n")

	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		body.Tools = append(body.Tools, tool{Name: t.Name, Description: t.Description, InputSchema: schema})
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

// ParseResponse reads a message document. Text blocks form the content,
// thinking blocks the reasoning, and tool_use blocks the tool calls.
func (Dialect) ParseResponse(body *document.Value) (*llm.CompletionResponse, error) {
	choice := llm.Choice{
		Role:         body.Get("role").Text(),
		FinishReason: body.Get("stop_reason").Text(),
	}
	if choice.Role == "" {
		choice.Role = "assistant"
	}
	var text, thinking strings.Builder
	for _, b := range body.Get("content").Items() {
		switch b.Get("type").Text() {
		case "text":
			text.WriteString(b.Get("text").Text())
		case "thinking":
			thinking.WriteString(b.Get("thinking").Text())
		case "tool_use":
			choice.ToolCalls = append(choice.ToolCalls, llm.ToolCall{
				ID:        b.Get("id").Text(),
				Name:      b.Get("name").Text(),
				Arguments: llm.ArgumentsText(b.Get("input")),
			})
		}
	}
	choice.Content = text.String()
	choice.Reasoning = thinking.String()

	u := body.Get("usage")
	usage := llm.NewUsage(u.Get("input_tokens").Int(), u.Get("output_tokens").Int(), 0)
	return llm.NewCompletionResponse(body.Get("model").Text(), []llm.Choice{choice}, usage, body), nil
}
