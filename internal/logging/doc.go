// Package logging assembles structured slog loggers and formatting helpers used
// across cinecat.
//
// It owns the configurable console/JSON handlers, tees output into the log
// file under the configured log directory, and exposes context-aware helpers
// so ingestion code can tag log lines with session identifiers and components.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
