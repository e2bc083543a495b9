package llm

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/llmstream/httpclient"
	"github.com/kbukum/llmstream/resilience"
)

const defaultTimeout = 120 * time.Second

// Config holds configuration for creating an LLM adapter.
// It is provider-agnostic: the Dialect field selects the provider mapping.
type Config struct {
	// Name identifies this adapter instance (e.g., "primary-llm", "fallback-llm").
	Name string `yaml:"name" mapstructure:"name"`

	// Dialect selects the provider mapping ("openai", "anthropic", "gemini", "ollama").
	// Must match a dialect registered via RegisterDialect.
	Dialect string `yaml:"dialect" mapstructure:"dialect" validate:"required"`

	// BaseURL is the provider's API base URL. Empty uses the dialect default.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// APIKey is turned into credentials by the dialect unless Auth is set.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Model is the default model to use (e.g., "gpt-4o", "qwen2.5:1.5b").
	Model string `yaml:"model" mapstructure:"model"`

	// Temperature is the default sampling temperature.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens is the default maximum tokens for responses. 0 means provider default.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`

	// Timeout for buffered HTTP requests. Defaults to 120s. Streams are
	// bounded by their context only.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// ReadIdleTimeout is the HTTP/2 ping interval on idle connections.
	ReadIdleTimeout time.Duration `yaml:"read_idle_timeout" mapstructure:"read_idle_timeout" validate:"gte=0"`

	// Auth overrides the credentials derived from APIKey.
	Auth *httpclient.AuthConfig `yaml:"-" mapstructure:"-"`

	// Headers are additional HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Retry configures retry behavior for buffered requests. Streams are never retried.
	Retry *resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`

	// CircuitBreaker fails calls fast while the provider keeps failing.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`

	// RateLimiter paces requests to the provider.
	RateLimiter *resilience.RateLimiterConfig `yaml:"rate_limiter" mapstructure:"rate_limiter"`
}

// applyDefaults sets default values for unset config fields.
func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Name == "" && c.Dialect != "" {
		c.Name = c.Dialect + "-llm"
	}
}

var validate = validator.New()

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("llm: invalid config: %w", err)
	}
	return nil
}
