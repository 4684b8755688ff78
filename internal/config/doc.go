// Package config loads, normalizes, and validates docdesk configuration.
//
// It owns the TOML schema, applies defaults and environment overrides, expands
// user paths, and exposes helpers for sample config generation. Other packages
// consume the resulting Config rather than reading files or environment
// variables directly.
package config
