// Package logger provides structured logging for stillpoint on log/slog.
//
//   - logger.go: handler construction, level control, the default logger
//   - context.go: run ID propagation through context.Context
//   - redact.go: secret and payload masking
//
// The level is held in a shared slog.LevelVar, so a configuration reload
// can change it without rebuilding loggers that components already hold.
package logger
