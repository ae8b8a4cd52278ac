// Package log provides structured event capture for server discovery.
//
// This package defines the Logger interface and Event type for recording
// what a discovery attempt did: which tiers ran, which candidates they
// produced, how validation went, and how the orchestrator state moved.
// It is separate from operational logging (slog) - event capture provides
// a complete machine-readable trace for debugging flaky networks.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/unamentis/discovery.ulog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files use CBOR encoding with integer keys. Use Reader to iterate
// and filter a captured file.
package log
