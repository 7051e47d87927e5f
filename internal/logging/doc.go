// Package logging assembles structured slog loggers and formatting helpers used
// across gemdesk.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so ingestion runs can tag every
// line with the pipeline name and run id. Run logs can be teed into a
// pipeline's own logs directory with TeeLogger and NewFileHandler. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
