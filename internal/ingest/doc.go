// Package ingest brings new PDFs into the inbox.
//
// Three entry points share one pipeline: the scanner Poller watching the
// source directory, IngestUpload for files received over the API, and
// IngestFile for one-shot CLI ingestion. Each relocates the PDF into
// storage/inbox with collision-safe naming, counts its pages and creates the
// document record with a single "moved" history entry.
package ingest
