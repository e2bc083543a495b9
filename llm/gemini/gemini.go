package gemini

import (
	"io"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	"github.com/kbukum/llmstream/httpclient"
	"github.com/kbukum/llmstream/llm"
)

const (
	// DialectName is the registered name for the Gemini dialect.
	DialectName = "gemini"

	// DefaultModel is used when neither the request nor the adapter names a model.
	DefaultModel = "gemini-2.0-flash"

	defaultGeminiURL = "https://generativelanguage.googleapis.com"
)

func init() {
	llm.RegisterDialect(DialectName, Dialect{})
}

// Table routes streamGenerateContent payloads into one generateContent
// document. Consecutive text parts with the same thought flag and
// consecutive functionCall parts are coalesced; other parts are appended.
// Thought text is kept in the document but not sent to the sink.
var Table = delta.Table{
	"candidates": {
		Policy:   delta.Indexed,
		IndexKey: "index",
		Slot:     candidateSlot,
		Fields: delta.Table{
			"content": {Policy: delta.Nested, Fields: delta.Table{
				"parts": {
					Policy:   delta.Append,
					Coalesce: coalescePart,
					Mute:     isThought,
					Fields: delta.Table{
						"text": {Policy: delta.Concat, Emit: true},
					},
				},
			}},
		},
	},
}

func candidateSlot(int) *document.Value {
	return document.MustParse(`{"content":{"parts":[]}}`)
}

// coalescePart reports whether next continues the last stored part.
func coalescePart(last, next *document.Value) bool {
	if next.Has("text") {
		return last.Has("text") && isThought(last) == isThought(next)
	}
	return next.Get("functionCall").IsObject() && last.Get("functionCall").IsObject()
}

func isThought(part *document.Value) bool {
	b, _ := part.Get("thought").AsBool()
	return b
}

// Dialect maps the universal types to the Gemini generateContent API.
type Dialect struct{}

var _ llm.Dialect = Dialect{}

// Name returns the dialect name.
func (Dialect) Name() string { return DialectName }

// DefaultBaseURL returns the public API address.
func (Dialect) DefaultBaseURL() string { return defaultGeminiURL }

// ChatPath returns the model endpoint. Streaming requests ask for SSE framing.
func (Dialect) ChatPath(req llm.CompletionRequest) string {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	model = strings.TrimPrefix(model, "models/")
	if req.Stream {
		return "/v1beta/models/" + url.PathEscape(model) + ":streamGenerateContent?alt=sse"
	}
	return "/v1beta/models/" + url.PathEscape(model) + ":generateContent"
}

// HealthPath lists models.
func (Dialect) HealthPath() string { return "/v1beta/models" }

// StreamFormat returns SSE.
func (Dialect) StreamFormat() llm.StreamFormat { return llm.StreamSSE }

// Auth passes the key as the "key" query parameter.
func (Dialect) Auth(apiKey string) *httpclient.AuthConfig {
	return httpclient.APIKeyAuthQuery(apiKey, "key")
}

// NewMerger returns a Merger over Table, starting from {"candidates": []}.
func (Dialect) NewMerger(sink io.Writer) delta.Engine {
	return delta.New(Table, delta.WithSink(sink), delta.WithBody(document.MustParse(`{"candidates":[]}`)))
}

// --- internal Gemini API types ---

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []toolSet         `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// BuildRequest creates a generateContent request. System messages join the
// system instruction; assistant turns use the "model" role; tool results are
// sent as functionResponse parts named by the message's ToolCallID.
func (Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	body := generateRequest{}
	var system []part
	if req.SystemPrompt != "" {
		system = append(system, part{Text: req.SystemPrompt})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, part{Text: m.Content})
		case "assistant":
			c := content{Role: "model"}
			if m.Content != "" {
				c.Parts = append(c.Parts, part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := json.RawMessage(tc.Arguments)
				if !json.Valid(args) {
					args = nil
				}
				c.Parts = append(c.Parts, part{FunctionCall: &functionCall{Name: tc.Name, Args: args}})
			}
			body.Contents = append(body.Contents, c)
		case "tool":
			body.Contents = append(body.Contents, content{Role: "user", Parts: []part{{
				FunctionResponse: &functionResponse{Name: m.ToolCallID, Response: map[string]any{"content": m.Content}},
			}}})
		default:
			body.Contents = append(body.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		body.SystemInstruction = &content{Parts: system}
	}
	if len(req.Tools) > 0 {
		set := toolSet{}
		for _, t := range req.Tools {
			set.FunctionDeclarations = append(set.FunctionDeclarations, functionDeclaration{
				Name: t.Name, Description: t.Description, Parameters: t.Parameters,
			})
		}
		body.Tools = []toolSet{set}
	}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
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

// ParseResponse reads a generateContent document. Thought parts become the
// choice's reasoning; functionCall parts become tool calls.
func (Dialect) ParseResponse(body *document.Value) (*llm.CompletionResponse, error) {
	items := body.Get("candidates").Items()
	choices := make([]llm.Choice, 0, len(items))
	for pos, c := range items {
		idx, ok := c.Get("index").AsInt()
		if !ok {
			idx = pos
		}
		choice := llm.Choice{
			Index:        idx,
			Role:         "assistant",
			FinishReason: c.Get("finishReason").Text(),
		}
		var text, thoughts strings.Builder
		for _, p := range c.Lookup("content", "parts").Items() {
			switch {
			case p.Has("text") && isThought(p):
				thoughts.WriteString(p.Get("text").Text())
			case p.Has("text"):
				text.WriteString(p.Get("text").Text())
			case p.Get("functionCall").IsObject():
				fc := p.Get("functionCall")
				choice.ToolCalls = append(choice.ToolCalls, llm.ToolCall{
					ID:        fc.Get("id").Text(),
					Name:      fc.Get("name").Text(),
					Arguments: llm.ArgumentsText(fc.Get("args")),
				})
			}
		}
		choice.Content = text.String()
		choice.Reasoning = thoughts.String()
		choices = append(choices, choice)
	}

	u := body.Get("usageMetadata")
	usage := llm.NewUsage(
		u.Get("promptTokenCount").Int(),
		u.Get("candidatesTokenCount").Int(),
		u.Get("totalTokenCount").Int(),
	)
	return llm.NewCompletionResponse(body.Get("modelVersion").Text(), choices, usage, body), nil
}
