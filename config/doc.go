// Package config loads service configuration from a YAML file, a .env file
// and the process environment using Viper.
//
// Environment variables override file values. With the LLMSTREAM prefix,
// LLMSTREAM_LLM_BASE_URL sets llm.base_url.
//
//	var cfg AppConfig
//	err := config.Load("llmstream", &cfg, config.WithEnvPrefix("LLMSTREAM"))
package config
