// Package logging provides structured logging for the Catenis API emulator.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the emulator, and defines the Sink
// interface every component depends on instead of a concrete logger type.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting emulator", "api_port", 3500)
//	logger.Error("failed to bind listener", "error", err)
package logging
