// Package logger provides structured logging for lexstream using zerolog.
//
// It supports multiple output formats (JSON, console), log level
// configuration, and component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.GetGlobalLogger().WithComponent("stream")
//	log.Warn("progress regressed", logger.Fields(logger.FieldStreamKey, key))
package logger
