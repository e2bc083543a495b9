package relay

import (
	"fmt"

	"github.com/kbukum/llmstream/resilience"
)

// Config holds relay server configuration.
type Config struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"` // seconds
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`

	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Streams caps concurrent upstream streams. Requests past the cap get 503.
	Streams resilience.BulkheadConfig `yaml:"streams" mapstructure:"streams"`
}

// ApplyDefaults sets default values for unset fields. There is no write
// timeout: streamed responses last as long as the upstream stream.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 4 << 20
	}
	if c.Streams.MaxConcurrent == 0 {
		c.Streams.MaxConcurrent = 64
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
