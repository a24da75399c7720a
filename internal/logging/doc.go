// Package logging assembles structured slog loggers and formatting helpers
// used across Weft components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request code can
// automatically tag log lines with project, session, and correlation
// identifiers. Prefer these constructors over hand-rolled slog setup so every
// component emits data with the same shape.
package logging
