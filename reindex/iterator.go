package reindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// DocumentIterator walks documents one at a time, loading each document's
// chunks lazily.
type DocumentIterator struct {
	repo storage.DocumentRepository
	docs []*core.Document
	pos  int
}

// NewDocumentIterator iterates the documents named by ids, or every stored
// document when ids is empty. Unknown ids fail with core.ErrDocumentNotFound.
func NewDocumentIterator(ctx context.Context, repo storage.DocumentRepository, ids ...string) (*DocumentIterator, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	var docs []*core.Document
	if len(ids) == 0 {
		all, err := repo.ListDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		docs = all
	} else {
		docs = make([]*core.Document, 0, len(ids))
		for _, id := range ids {
			doc, err := repo.GetDocument(ctx, id)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get document %s: %w", id, err)
			}
			docs = append(docs, doc)
		}
	}
	return &DocumentIterator{repo: repo, docs: docs}, nil
}

// Len returns the number of documents to visit.
func (it *DocumentIterator) Len() int {
	return len(it.docs)
}

// TotalChunks returns the sum of ChunkCount across all documents.
func (it *DocumentIterator) TotalChunks() int {
	total := 0
	for _, doc := range it.docs {
		total += doc.ChunkCount
	}
	return total
}

// Next returns the next document and its chunks ordered by ordinal.
// It returns a nil document once the iterator is exhausted.
func (it *DocumentIterator) Next(ctx context.Context) (*core.Document, []*core.Chunk, error) {
	if it.pos >= len(it.docs) {
		return nil, nil, nil
	}
	doc := it.docs[it.pos]
	it.pos++

	chunks, err := it.repo.ListChunks(ctx, doc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list chunks for %s: %w", doc.ID, err)
	}
	return doc, chunks, nil
}
