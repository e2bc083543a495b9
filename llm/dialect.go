package llm

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	"github.com/kbukum/llmstream/httpclient"
)

// StreamFormat indicates how a provider delivers streaming responses.
type StreamFormat int

const (
	// StreamNDJSON uses newline-delimited JSON (one JSON object per line).
	// Used by: Ollama native API.
	StreamNDJSON StreamFormat = iota
	// StreamSSE uses Server-Sent Events format.
	// Used by: OpenAI, Anthropic, Gemini.
	StreamSSE
)

// String returns the format name.
func (f StreamFormat) String() string {
	if f == StreamSSE {
		return "sse"
	}
	return "ndjson"
}

// Dialect maps universal LLM types to/from a specific provider's HTTP format.
//
// Each provider has its own Dialect implementation in a sub-package of llm.
// A dialect is stateless: everything that lives for one streamed response is
// owned by the engine returned from NewMerger.
//
// Register dialects at startup using [RegisterDialect], or pass directly to [NewWithDialect].
type Dialect interface {
	// Name returns the dialect identifier (e.g., "ollama", "openai").
	Name() string

	// DefaultBaseURL is used when the config leaves BaseURL empty.
	DefaultBaseURL() string

	// ChatPath returns the API endpoint path for req. It may carry a query
	// string and may differ between streamed and buffered requests.
	ChatPath(req CompletionRequest) string

	// HealthPath returns the health-check endpoint path. Empty means no health endpoint.
	HealthPath() string

	// BuildRequest maps a universal CompletionRequest to the provider's JSON request body.
	BuildRequest(req CompletionRequest) (any, error)

	// ParseResponse maps a provider response document to a CompletionResponse.
	// It serves buffered responses and the cumulative document of a stream alike.
	ParseResponse(body *document.Value) (*CompletionResponse, error)

	// StreamFormat returns how this provider delivers streaming data.
	StreamFormat() StreamFormat

	// NewMerger returns a fresh engine that folds this provider's stream
	// deltas into one response document, writing generated text to sink.
	// A nil sink disables incremental output.
	NewMerger(sink io.Writer) delta.Engine

	// Auth returns the credentials for apiKey in the provider's scheme.
	Auth(apiKey string) *httpclient.AuthConfig
}

// HeaderProvider is implemented by dialects that need fixed request headers
// (e.g., an API version).
type HeaderProvider interface {
	Headers() map[string]string
}

// --- Dialect Registry ---

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect adds a dialect to the global registry.
// Typically called from init() in dialect packages:
//
//	func init() {
//	    llm.RegisterDialect("ollama", Dialect{})
//	}
//
// Importing the dialect package registers it as a side-effect:
//
//	import _ "github.com/kbukum/llmstream/llm/ollama"
func RegisterDialect(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = d
}

// GetDialect retrieves a dialect by name from the global registry.
func GetDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("llm: unknown dialect %q (forgot to import driver?)", name)
	}
	return d, nil
}

// Dialects returns the names of all registered dialects, sorted.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	return slices.Sorted(maps.Keys(dialects))
}
