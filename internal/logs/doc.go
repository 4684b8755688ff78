// Package logs reads the process-wide action log.
//
// Lines are decoded into audit.Line values with bounded memory: a negative
// offset returns the last N matching entries, a non-negative offset resumes
// where a previous read stopped, and follow mode waits for new lines until a
// deadline or context cancellation. Lines that do not decode are counted and
// skipped.
package logs
