package ollama

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	"github.com/kbukum/llmstream/httpclient"
	"github.com/kbukum/llmstream/llm"
)

const (
	// DialectName is the registered name for the Ollama dialect.
	DialectName = "ollama"

	// DefaultModel is used when neither the request nor the adapter names a model.
	DefaultModel = "llama3"

	defaultOllamaURL = "http://localhost:11434"
)

func init() {
	llm.RegisterDialect(DialectName, Dialect{})
}

// Table routes the fields of /api/chat stream lines. Every line repeats the
// top-level fields; the message fragments accumulate.
var Table = delta.Table{
	"message": {Policy: delta.Nested, Fields: delta.Table{
		"content":    {Policy: delta.Concat, Emit: true},
		"thinking":   {Policy: delta.Concat},
		"tool_calls": {Policy: delta.Append},
	}},
}

// Dialect maps the universal types to Ollama's native chat API.
type Dialect struct{}

var _ llm.Dialect = Dialect{}

// Name returns the dialect name.
func (Dialect) Name() string { return DialectName }

// DefaultBaseURL returns the local Ollama server address.
func (Dialect) DefaultBaseURL() string { return defaultOllamaURL }

// ChatPath returns the chat endpoint, which serves both modes.
func (Dialect) ChatPath(llm.CompletionRequest) string { return "/api/chat" }

// HealthPath lists local models, which succeeds whenever the server is up.
func (Dialect) HealthPath() string { return "/api/tags" }

// StreamFormat returns NDJSON.
func (Dialect) StreamFormat() llm.StreamFormat { return llm.StreamNDJSON }

// Auth returns bearer credentials, used by Ollama behind an authenticating proxy.
func (Dialect) Auth(apiKey string) *httpclient.AuthConfig { return httpclient.BearerAuth(apiKey) }

// NewMerger returns a Merger over Table.
func (Dialect) NewMerger(sink io.Writer) delta.Engine {
	return delta.New(Table, delta.WithSink(sink))
}

// --- internal Ollama API types ---

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
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

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	// Stream is always sent: Ollama streams unless told otherwise.
	Stream  bool     `json:"stream"`
	Tools   []tool   `json:"tools,omitempty"`
	Options *options `json:"options,omitempty"`
}

// BuildRequest creates an Ollama API request from a llm.CompletionRequest.
// Extra fields (e.g., "format", "keep_alive", "think") are copied verbatim.
func (Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msg := chatMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			args := json.RawMessage(tc.Arguments)
			if !json.Valid(args) {
				args = json.RawMessage("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, toolCall{Function: toolFunction{Name: tc.Name, Arguments: args}})
		}
		msgs = append(msgs, msg)
	}

	body := chatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   req.Stream,
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, tool{
			Type:     "function",
			Function: toolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		body.Options = &options{Temperature: req.Temperature, NumPredict: req.MaxTokens}
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

// ParseResponse reads a /api/chat response document.
func (Dialect) ParseResponse(body *document.Value) (*llm.CompletionResponse, error) {
	msg := body.Get("message")
	choice := llm.Choice{
		Role:         msg.Get("role").Text(),
		Content:      msg.Get("content").Text(),
		Reasoning:    msg.Get("thinking").Text(),
		FinishReason: body.Get("done_reason").Text(),
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

	usage := llm.NewUsage(body.Get("prompt_eval_count").Int(), body.Get("eval_count").Int(), 0)
	return llm.NewCompletionResponse(body.Get("model").Text(), []llm.Choice{choice}, usage, body), nil
}
