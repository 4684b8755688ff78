// Package record defines the persisted document record and its lifecycle
// states.
//
// A Record carries the raw classifier output, human corrections, the routing
// decision and an append-only history. Consumers read fields through
// EffectiveValue and EffectiveScore so corrections and confidence overrides
// take precedence without ever rewriting what the classifier returned.
package record
