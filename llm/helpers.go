package llm

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/kbukum/llmstream/document"
)

// Executor is anything that answers a completion request, such as an
// Adapter or a wrapper around one.
type Executor interface {
	Execute(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Complete is a convenience helper: sends system + user prompts and returns the text response.
func Complete(ctx context.Context, p Executor, system, user string) (string, error) {
	resp, err := p.Execute(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CompleteStructured sends a prompt expecting JSON and unmarshals the response into result.
// It appends JSON formatting instructions to the system prompt.
func CompleteStructured(ctx context.Context, p Executor, system, user string, result any) error {
	system += "\n\nIMPORTANT: Respond with ONLY the JSON object. " +
		"No markdown, no code blocks, no explanations. " +
		"Start with { and end with }."

	resp, err := p.Execute(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return err
	}

	content := extractJSON(resp.Content)
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("llm: unmarshal structured response: %w", err)
	}
	return nil
}

// ParseArguments decodes the accumulated argument text of a tool call as one
// JSON document. Empty arguments decode to an empty object.
func ParseArguments(call ToolCall) (*document.Value, error) {
	if strings.TrimSpace(call.Arguments) == "" {
		return document.NewObject(), nil
	}
	args, err := document.Parse([]byte(call.Arguments))
	if err != nil {
		return nil, fmt.Errorf("llm: tool call %q arguments: %w", call.Name, err)
	}
	return args, nil
}

// DecodeArguments is ParseArguments into a Go value.
func DecodeArguments(call ToolCall, out any) error {
	args, err := ParseArguments(call)
	if err != nil {
		return err
	}
	return args.Decode(out)
}

// extractJSON pulls a JSON object from LLM output that may contain markdown fences.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Strip markdown code fences
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s[3:], "\n"); idx >= 0 {
			s = s[3+idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Find first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
