package main

import (
	"fmt"

	"github.com/kbukum/llmstream/config"
	"github.com/kbukum/llmstream/llm"
	"github.com/kbukum/llmstream/observability"
	"github.com/kbukum/llmstream/relay"
)

const serviceName = "llmstream"

// AppConfig is the configuration of the llmstream binary.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	LLM           llm.Config           `yaml:"llm" mapstructure:"llm"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Relay         relay.Config         `yaml:"relay" mapstructure:"relay"`
}

// ApplyDefaults fills unset fields.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.LLM.Dialect == "" {
		c.LLM.Dialect = "ollama"
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Relay.ApplyDefaults()
}

// Validate checks the service fields and the struct tags of every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := config.ValidateStruct(c); err != nil {
		return err
	}
	return nil
}

// loadConfig reads the config file and LLMSTREAM_* environment, then
// applies flag overrides.
func loadConfig(path string, f *llmFlags) (*AppConfig, error) {
	var opts []config.LoaderOption
	opts = append(opts, config.WithEnvPrefix("LLMSTREAM"))
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	cfg := &AppConfig{}
	if err := config.Load(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	f.apply(&cfg.LLM)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// llmFlags are command-line overrides of the llm section.
type llmFlags struct {
	dialect string
	model   string
	baseURL string
	apiKey  string
}

func (f *llmFlags) apply(c *llm.Config) {
	if f.dialect != "" {
		c.Dialect = f.dialect
	}
	if f.model != "" {
		c.Model = f.model
	}
	if f.baseURL != "" {
		c.BaseURL = f.baseURL
	}
	if f.apiKey != "" {
		c.APIKey = f.apiKey
	}
}
