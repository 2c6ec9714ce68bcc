package storage

import "errors"

// Errors returned by DocumentRepository implementations. Callers outside this
// package usually see ErrNotFound translated to core.ErrDocumentNotFound.
var (
	// ErrNotFound is returned when a document or chunk record does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicateKey is returned by Create when the document ID is taken.
	ErrDuplicateKey = errors.New("storage: document already exists")

	// ErrStorageClosed is returned by any call made after Close.
	ErrStorageClosed = errors.New("storage: repository is closed")

	// ErrSerializationFailed wraps mus decoding failures of stored records.
	ErrSerializationFailed = errors.New("storage: corrupt record")
)
