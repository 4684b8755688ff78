// Package metastore persists one document record per docId.
//
// Two backends implement Store: FileStore writes storage/meta/<docId>.json
// atomically, SQLiteStore keeps the same JSON in an embedded SQLite database.
// Locker serializes read-modify-write cycles on a single record within the
// process; writers in other processes remain last-writer-wins.
package metastore
