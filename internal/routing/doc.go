// Package routing moves documents between lifecycle states.
//
// Every transition relocates the PDF into the canonical directory of the
// target state, rewrites the record's state and filePath, appends one history
// entry, persists the record and refreshes the JSON side-car beside the file.
// Auto-routing derives the target from the aggregated confidence of the
// record's scored fields; bulk auto-routing applies it to the whole inbox.
package routing
