package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a repository on top of backend.
// The backend stays owned by the caller.
func NewDocumentRepository(backend *Backend) (storage.DocumentRepository, error) {
	return newDocumentRepository(backend)
}

func newDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	if backend == nil {
		return nil, errors.New("badger backend required")
	}
	return &DocumentRepository{backend: backend}, nil
}

// Close is a no-op; the backend is closed by its owner.
func (r *DocumentRepository) Close() error {
	return nil
}

func (r *DocumentRepository) checkOpen() error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// CreateDocument stores a new document.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.ID)
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func readDocument(tx *badger.Txn, id string) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// ListDocuments returns every document ordered by creation time.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	docs := make([]*core.Document, 0)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(docs, func(a, b *core.Document) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return docs, nil
}

// DeleteDocument removes the document record, then its chunks. Once the
// record is gone the document is unreachable, so a failure while removing
// chunks leaves only unreferenced data behind.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	keys, err := r.chunkKeys(id)
	if err != nil {
		return err
	}
	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (r *DocumentRepository) chunkKeys(documentID string) ([][]byte, error) {
	var keys [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(documentID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	return keys, err
}

// SaveChunks stores chunks in a single transaction. Batches too large for
// one transaction are committed in several.
func (r *DocumentRepository) SaveChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	tx := r.backend.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := makeChunkKey(chunk.DocumentID, chunk.Ordinal)
		value := storage.MarshalChunk(chunk)
		err := tx.Set(key, value)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = r.backend.db.NewTransaction(true)
			err = tx.Set(key, value)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunkText returns the text of the chunk whose ordinal equals handle.
func (r *DocumentRepository) GetChunkText(ctx context.Context, documentID string, handle int) (string, error) {
	if err := r.checkOpen(); err != nil {
		return "", err
	}
	if handle < 0 {
		return "", fmt.Errorf("%w: chunk %s/%d", storage.ErrNotFound, documentID, handle)
	}

	var text string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeChunkKey(documentID, handle))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: chunk %s/%d", storage.ErrNotFound, documentID, handle)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			chunk, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			text = chunk.Text
			return nil
		})
	}, false)
	return text, err
}

// ListChunks returns a document's chunks ordered by ordinal.
func (r *DocumentRepository) ListChunks(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	chunks := make([]*core.Chunk, 0)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				chunks = append(chunks, chunk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}
