package httpclient

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/resilience"
)

const (
	defaultTimeout         = 60 * time.Second
	defaultReadIdleTimeout = 30 * time.Second
)

// Config configures the HTTP client.
type Config struct {
	// BaseURL is prepended to all request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Timeout bounds buffered requests. Streams are bounded by their context only.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// ReadIdleTimeout is the HTTP/2 health-check interval on idle connections.
	ReadIdleTimeout time.Duration `yaml:"read_idle_timeout" mapstructure:"read_idle_timeout" validate:"gte=0"`

	// Auth is applied to all requests unless a request overrides it.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`

	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Retry configures retry of buffered requests. Nil disables retry.
	Retry *resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`

	// CircuitBreaker fails requests fast after repeated upstream failures.
	// It guards both buffered requests and stream opens. Nil disables it.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`

	// RateLimiter paces every request sent by this client. Nil disables it.
	RateLimiter *resilience.RateLimiterConfig `yaml:"rate_limiter" mapstructure:"rate_limiter"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = defaultReadIdleTimeout
	}
}

var validate = validator.New()

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("httpclient: invalid config: %w", err)
	}
	return nil
}

// DefaultRetryConfig returns a retry config that retries only retryable AppErrors.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = apperrors.IsRetryable
	return &cfg
}
