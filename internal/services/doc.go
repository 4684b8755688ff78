// Package services defines shared utilities consumed by the triage
// operations and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp document IDs, acting users, and correlation
//     identifiers for logging and auditing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into stable wire codes and HTTP statuses.
//
// Use these helpers when wiring new operations so error handling and
// observability stay uniform across the CLI and the HTTP API.
package services
