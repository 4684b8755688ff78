// Package daemon runs the long-lived docdesk process.
//
// It wires the scanner poller and the HTTP API around a triage.Service into a
// single lifecycle, guarded by a flock so only one daemon serves a storage
// root at a time. Request handling stays thin: handlers decode input, call the
// service, and map error markers onto status codes.
package daemon
