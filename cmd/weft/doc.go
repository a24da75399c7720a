// Package main hosts the weft CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon's operator API: session inspection, diff review,
// draft staging, apply/discard, project management, and configuration
// scaffolding. It centralizes configuration resolution and server address
// discovery so subcommands can focus on presentation.
package main
