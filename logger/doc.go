// Package logger provides structured logging on top of zerolog.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("relay")
//	log.Info("stream started", logger.Fields("dialect", "openai"))
package logger
