// Package triage exposes the document desk operations shared by the HTTP API
// and the CLI: listing, inspection, corrections, manual and automatic
// routing, classification, upload and preview.
//
// Service owns the per-document lock, resolves the acting user from the
// request context and delegates state transitions to the routing engine.
package triage
