// Package ingestion turns uploaded files into searchable documents.
//
// Pipeline.Ingest runs the whole flow for one file: extract text, split it
// into overlapping chunks, embed every chunk, append the vectors to the
// document's own index, then persist the document and its chunks. Ingestion
// is all or nothing; a failure after the index is written removes both the
// index and any stored rows.
//
// IngestAll fans several files out over an ants worker pool. Each document
// owns a separate index file, so concurrent ingestions never contend for
// the same lock.
package ingestion
