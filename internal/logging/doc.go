// Package logging builds the slog loggers used across ClipForge and defines
// the shared structured-field vocabulary (job id, stage, correlation id).
package logging
