// Package llm provides a config-driven LLM client with incremental streaming.
//
// The adapter works with any provider (OpenAI, Anthropic, Gemini, Ollama)
// via the Dialect pattern, similar to how database/sql works with driver
// packages.
//
// # Architecture
//
// The llm package provides:
//   - Universal types: [CompletionRequest], [CompletionResponse], [StreamChunk], [Message], [Usage]
//   - [Dialect] interface: maps universal types to/from provider-specific HTTP format
//   - [Adapter]: composes the HTTP client with a Dialect to create a complete LLM client
//   - Dialect registry: [RegisterDialect] / [GetDialect] for config-driven dialect selection
//   - Convenience helpers: [Complete], [CompleteStructured], [ParseArguments]
//
// # Streaming
//
// A streamed call feeds the response body through an eventstream.Parser and
// merges every decoded payload into the cumulative document owned by the
// dialect's merge engine. Generated text reaches the caller's sink as soon
// as it is merged. When the body ends, the cumulative document goes through
// the same Dialect.ParseResponse used for buffered calls:
//
//	resp, err := adapter.StreamTo(ctx, llm.CompletionRequest{
//	    Messages: []llm.Message{{Role: "user", Content: "Hello!"}},
//	}, os.Stdout)
//
// # Usage
//
// Import a dialect package for side-effect registration, then create an adapter:
//
//	import (
//	    "github.com/kbukum/llmstream/llm"
//	    _ "github.com/kbukum/llmstream/llm/ollama"
//	)
//
//	adapter, err := llm.New(llm.Config{
//	    Dialect: "ollama",
//	    BaseURL: "http://localhost:11434",
//	    Model:   "qwen2.5:1.5b",
//	})
//
//	resp, err := adapter.Execute(ctx, llm.CompletionRequest{
//	    Messages: []llm.Message{{Role: "user", Content: "Hello!"}},
//	})
//
// Or pass a dialect directly without the global registry:
//
//	adapter, err := llm.NewWithDialect(openai.Dialect{}, llm.Config{...})
package llm
