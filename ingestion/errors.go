package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when a document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexDirRequired is returned when no index directory is configured.
	ErrIndexDirRequired = errors.New("index directory required")

	// ErrHandleMismatch is returned when the index assigns handles that do
	// not equal chunk ordinals, which happens only if the per-document index
	// was written concurrently outside the lock.
	ErrHandleMismatch = errors.New("index handles do not match chunk ordinals")
)
