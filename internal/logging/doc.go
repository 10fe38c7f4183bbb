// Package logging assembles the structured slog loggers used across slidecast.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes attribute helpers plus standardized field keys so orchestrators
// tag log lines uniformly with project, segment, task, and batch identifiers.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
