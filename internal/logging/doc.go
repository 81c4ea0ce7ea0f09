// Package logging provides slog-based structured logging for mediaprep.
//
// It offers a console handler for interactive use, a JSON handler for
// machine consumption, standardized field keys, and helpers that enrich
// loggers from context (item, step, correlation identifiers).
package logging
