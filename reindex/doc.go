// Package reindex rebuilds per-document vector indexes from stored chunks.
//
// Use it after an index file is lost or corrupted, or after swapping the
// embedding model for another of the same dimension. Chunks are embedded in
// batches with retry and exponential backoff, and each rebuilt index
// atomically replaces the old file while the path lock is held.
package reindex
