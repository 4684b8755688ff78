// Command docdesk runs the document intake desk.
//
// `docdesk serve` starts the daemon: the scanner poller plus the HTTP API.
// The remaining commands operate on the storage root directly, which makes
// them usable for scripting and for repairs while the daemon is stopped.
package main
