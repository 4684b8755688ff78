// Package logging assembles structured slog loggers and formatting helpers used
// across docdesk.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so operations can tag log lines
// with document IDs, acting users, and request IDs. The daemon tees every
// record into storage/logs/docdesk.log as JSON regardless of the console
// format.
package logging
