// Package storagetest holds behaviour tests shared by every
// storage.DocumentRepository implementation.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty repository. Cleanup is registered on t.
type Factory func(t *testing.T) storage.DocumentRepository

// NewDocument returns a valid document with chunkCount chunks declared.
func NewDocument(id string, chunkCount int, createdAt time.Time) *core.Document {
	dim := 0
	if chunkCount > 0 {
		dim = 4
	}
	return &core.Document{
		ID:         id,
		Filename:   id + ".txt",
		CreatedAt:  createdAt.UTC().Truncate(time.Microsecond),
		ChunkCount: chunkCount,
		Metadata: core.DocumentMetadata{
			Version:      core.MetadataVersion,
			EmbeddingDim: dim,
			TotalChunks:  chunkCount,
			SourceExt:    core.FormatTXT,
			ContentHash:  core.ContentHash(id),
		},
		IndexPath: "indexes/" + id + ".dqix",
	}
}

// NewChunks returns n chunks for documentID with ordinals 0..n-1.
func NewChunks(documentID string, n int) []*core.Chunk {
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			DocumentID:   documentID,
			Ordinal:      i,
			Text:         fmt.Sprintf("%s chunk %d", documentID, i),
			EmbeddingDim: 4,
		}
	}
	return chunks
}

// Run executes the shared suite against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		doc := NewDocument("doc-a", 3, base)

		require.NoError(t, repo.CreateDocument(ctx, doc))

		got, err := repo.GetDocument(ctx, "doc-a")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, doc.Filename, got.Filename)
		assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, doc.ChunkCount, got.ChunkCount)
		assert.Equal(t, doc.Metadata, got.Metadata)
		assert.Equal(t, doc.IndexPath, got.IndexPath)
	})

	t.Run("get missing document", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetDocument(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("create duplicate", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateDocument(ctx, NewDocument("dup", 0, base)))
		err := repo.CreateDocument(ctx, NewDocument("dup", 0, base))
		require.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("create invalid", func(t *testing.T) {
		repo := newRepo(t)
		doc := NewDocument("bad", 2, base)
		doc.Metadata.TotalChunks = 5
		err := repo.CreateDocument(ctx, doc)
		require.ErrorIs(t, err, core.ErrInvalidDocument)
	})

	t.Run("list ordered by creation", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateDocument(ctx, NewDocument("zeta", 0, base.Add(2*time.Hour))))
		require.NoError(t, repo.CreateDocument(ctx, NewDocument("alpha", 0, base.Add(time.Hour))))
		require.NoError(t, repo.CreateDocument(ctx, NewDocument("mid", 0, base)))

		docs, err := repo.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "mid", docs[0].ID)
		assert.Equal(t, "alpha", docs[1].ID)
		assert.Equal(t, "zeta", docs[2].ID)
	})

	t.Run("list empty", func(t *testing.T) {
		repo := newRepo(t)
		docs, err := repo.ListDocuments(ctx)
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	t.Run("save chunks and resolve handles", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateDocument(ctx, NewDocument("doc-b", 3, base)))
		require.NoError(t, repo.SaveChunks(ctx, NewChunks("doc-b", 3)...))

		for handle := 0; handle < 3; handle++ {
			text, err := repo.GetChunkText(ctx, "doc-b", handle)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("doc-b chunk %d", handle), text)
		}

		_, err := repo.GetChunkText(ctx, "doc-b", 3)
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = repo.GetChunkText(ctx, "doc-b", -1)
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = repo.GetChunkText(ctx, "other", 0)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("save chunks replaces existing ordinal", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.SaveChunks(ctx, NewChunks("doc-c", 2)...))
		replacement := &core.Chunk{DocumentID: "doc-c", Ordinal: 1, Text: "rewritten", EmbeddingDim: 4}
		require.NoError(t, repo.SaveChunks(ctx, replacement))

		text, err := repo.GetChunkText(ctx, "doc-c", 1)
		require.NoError(t, err)
		assert.Equal(t, "rewritten", text)

		chunks, err := repo.ListChunks(ctx, "doc-c")
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})

	t.Run("save invalid chunk", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.SaveChunks(ctx, &core.Chunk{DocumentID: "doc-d", Ordinal: 0, Text: "  "})
		require.ErrorIs(t, err, core.ErrInvalidChunk)

		chunks, err := repo.ListChunks(ctx, "doc-d")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("list chunks in ordinal order", func(t *testing.T) {
		repo := newRepo(t)
		chunks := NewChunks("doc-e", 300)
		// Save out of order; ordinals 256+ exercise multi-byte keys.
		require.NoError(t, repo.SaveChunks(ctx, chunks[150:]...))
		require.NoError(t, repo.SaveChunks(ctx, chunks[:150]...))

		got, err := repo.ListChunks(ctx, "doc-e")
		require.NoError(t, err)
		require.Len(t, got, 300)
		for i, c := range got {
			assert.Equal(t, i, c.Ordinal)
			assert.Equal(t, "doc-e", c.DocumentID)
		}
	})

	t.Run("delete removes document and chunks", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateDocument(ctx, NewDocument("doc-f", 2, base)))
		require.NoError(t, repo.SaveChunks(ctx, NewChunks("doc-f", 2)...))
		require.NoError(t, repo.CreateDocument(ctx, NewDocument("doc-g", 1, base)))
		require.NoError(t, repo.SaveChunks(ctx, NewChunks("doc-g", 1)...))

		require.NoError(t, repo.DeleteDocument(ctx, "doc-f"))

		_, err := repo.GetDocument(ctx, "doc-f")
		require.ErrorIs(t, err, storage.ErrNotFound)
		chunks, err := repo.ListChunks(ctx, "doc-f")
		require.NoError(t, err)
		assert.Empty(t, chunks)

		// Other documents are untouched.
		text, err := repo.GetChunkText(ctx, "doc-g", 0)
		require.NoError(t, err)
		assert.Equal(t, "doc-g chunk 0", text)
	})

	t.Run("delete missing document", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.DeleteDocument(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
