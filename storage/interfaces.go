package storage

import (
	"context"

	"github.com/poiesic/docqa/core"
)

// DocumentRepository persists document metadata and chunk text.
// Implementations must be safe for concurrent use.
type DocumentRepository interface {
	// CreateDocument stores a new document.
	// Returns ErrDuplicateKey if a document with the same ID exists.
	CreateDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments returns every document, oldest first.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document and all of its chunks.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunks stores chunks keyed by (DocumentID, Ordinal).
	// Saving a chunk with an existing key replaces it.
	SaveChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunkText resolves an index handle to the text of the chunk whose
	// ordinal equals the handle.
	// Returns ErrNotFound if no such chunk exists.
	GetChunkText(ctx context.Context, documentID string, handle int) (string, error)

	// ListChunks returns a document's chunks ordered by ordinal.
	ListChunks(ctx context.Context, documentID string) ([]*core.Chunk, error)

	// Close releases resources held by the repository.
	Close() error
}
