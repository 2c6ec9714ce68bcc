package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRepositoryRequired is returned when a document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrOrdinalGap is returned when stored chunk ordinals are not 0..n-1,
	// so rebuilt handles could not equal ordinals.
	ErrOrdinalGap = errors.New("chunk ordinals are not contiguous")
)
