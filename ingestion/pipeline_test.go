package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

// faultyRepository injects failures into an otherwise working repository.
type faultyRepository struct {
	storage.DocumentRepository
	saveChunksErr error
	deleteErr     error
}

func (r *faultyRepository) SaveChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if r.saveChunksErr != nil {
		return r.saveChunksErr
	}
	return r.DocumentRepository.SaveChunks(ctx, chunks...)
}

func (r *faultyRepository) DeleteDocument(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.DocumentRepository.DeleteDocument(ctx, id)
}

func setupTestRepository(t *testing.T) storage.DocumentRepository {
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func setupTestPipeline(t *testing.T, repo storage.DocumentRepository, embedder *mock.MockEmbedder, opts ...Option) (*Pipeline, string) {
	indexDir := filepath.Join(t.TempDir(), "indexes")
	p, err := NewPipeline(repo, embedder, indexDir, append([]Option{WithLocker(vectorindex.NewLocker())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p, indexDir
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func indexFiles(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), IndexExt) {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestNewPipeline(t *testing.T) {
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedderWithDimension(testDim)

	t.Run("nil repository", func(t *testing.T) {
		_, err := NewPipeline(nil, embedder, "idx")
		require.ErrorIs(t, err, ErrRepositoryRequired)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewPipeline(repo, nil, "idx")
		require.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("empty index dir", func(t *testing.T) {
		_, err := NewPipeline(repo, embedder, "")
		require.ErrorIs(t, err, ErrIndexDirRequired)
	})

	t.Run("invalid chunking", func(t *testing.T) {
		_, err := NewPipeline(repo, embedder, "idx", WithChunking(100, 100))
		require.ErrorIs(t, err, core.ErrInvalidChunkConfig)
	})

	t.Run("with options", func(t *testing.T) {
		p, err := NewPipeline(repo, embedder, "idx", WithPoolSize(3), WithLogger(nil), WithChunking(50, 10))
		require.NoError(t, err)
		defer p.Release()
		assert.Equal(t, 3, p.pool.Cap())
		assert.Equal(t, 50, p.splitter.ChunkSize())
		assert.Equal(t, filepath.Join("idx", "abc"+IndexExt), p.IndexPath("abc"))
	})
}

func TestPipeline_Ingest(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedderWithDimension(testDim)
	p, indexDir := setupTestPipeline(t, repo, embedder)

	path := writeFile(t, "upload.txt", strings.Repeat("a", 1700))
	doc, err := p.Ingest(ctx, Source{Path: path, Filename: "report.txt"})
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "report.txt", doc.Filename)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, 3, doc.Metadata.TotalChunks)
	assert.Equal(t, testDim, doc.Metadata.EmbeddingDim)
	assert.Equal(t, core.FormatTXT, doc.Metadata.SourceExt)
	assert.Equal(t, core.ContentHash(strings.Repeat("a", 1700)), doc.Metadata.ContentHash)
	assert.Equal(t, filepath.Join(indexDir, doc.ID+IndexExt), doc.IndexPath)

	stored, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ChunkCount, stored.ChunkCount)

	chunks, err := repo.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Text, 800)
	assert.Len(t, chunks[1].Text, 800)
	assert.Len(t, chunks[2].Text, 300)

	ix, err := vectorindex.OpenOrCreate(doc.IndexPath, testDim)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Total())

	// Each chunk's own vector is its nearest neighbour, so handles map to ordinals.
	for _, chunk := range chunks {
		vec, err := embedder.EmbedText(ctx, chunk.Text)
		require.NoError(t, err)
		handles, distances, err := ix.Search(vec, 1)
		require.NoError(t, err)
		require.Len(t, handles, 1)
		assert.InDelta(t, 0, distances[0], 1e-6)
		text, err := repo.GetChunkText(ctx, doc.ID, handles[0])
		require.NoError(t, err)
		assert.Equal(t, chunk.Text, text)
	}
}

func TestPipeline_Ingest_DefaultsFromPath(t *testing.T) {
	repo := setupTestRepository(t)
	p, _ := setupTestPipeline(t, repo, mock.NewMockEmbedderWithDimension(testDim))

	path := writeFile(t, "notes.TXT", "short note")
	doc, err := p.Ingest(context.Background(), Source{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "notes.TXT", doc.Filename)
	assert.Equal(t, 1, doc.ChunkCount)
}

func TestPipeline_Ingest_Rejections(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedderWithDimension(testDim)
	p, indexDir := setupTestPipeline(t, repo, embedder)

	t.Run("unsupported format", func(t *testing.T) {
		_, err := p.Ingest(ctx, Source{Path: writeFile(t, "slides.docx", "text")})
		require.ErrorIs(t, err, core.ErrUnsupportedFormat)
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := p.Ingest(ctx, Source{Path: writeFile(t, "blank.txt", "  \n\t ")})
		require.ErrorIs(t, err, core.ErrEmptyDocument)
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := p.Ingest(ctx, Source{Path: filepath.Join(t.TempDir(), "missing.txt")})
		require.ErrorIs(t, err, core.ErrExtraction)
	})

	t.Run("embedding failure", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("connection refused")
		}
		defer func() { embedder.EmbedTextsFunc = nil }()

		_, err := p.Ingest(ctx, Source{Path: writeFile(t, "doc.txt", "content")})
		require.ErrorIs(t, err, core.ErrEmbedding)
	})

	t.Run("inconsistent embeddings", func(t *testing.T) {
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{}, nil
		}
		defer func() { embedder.EmbedTextsFunc = nil }()

		_, err := p.Ingest(ctx, Source{Path: writeFile(t, "doc.txt", "content")})
		require.ErrorIs(t, err, core.ErrEmbedding)
	})

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, indexFiles(t, indexDir))
}

func TestPipeline_Ingest_BatchesEmbeddings(t *testing.T) {
	repo := setupTestRepository(t)
	embedder := mock.NewMockEmbedderWithDimension(testDim)
	p, _ := setupTestPipeline(t, repo, embedder, WithChunking(10, 0), WithEmbedBatchSize(2))

	doc, err := p.Ingest(context.Background(), Source{Path: writeFile(t, "doc.txt", strings.Repeat("x", 50))})
	require.NoError(t, err)
	assert.Equal(t, 5, doc.ChunkCount)
	assert.Equal(t, 3, embedder.CallCount())
}

func TestPipeline_Ingest_RollsBackOnChunkFailure(t *testing.T) {
	ctx := context.Background()
	base := setupTestRepository(t)
	repo := &faultyRepository{DocumentRepository: base, saveChunksErr: errors.New("disk full")}
	p, indexDir := setupTestPipeline(t, repo, mock.NewMockEmbedderWithDimension(testDim))

	_, err := p.Ingest(ctx, Source{Path: writeFile(t, "doc.txt", "some content")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	docs, err := base.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, indexFiles(t, indexDir))
}

func TestPipeline_Ingest_ReportsRollbackFailure(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("disk full")
	cleanup := errors.New("store offline")
	repo := &faultyRepository{
		DocumentRepository: setupTestRepository(t),
		saveChunksErr:      cause,
		deleteErr:          cleanup,
	}
	p, indexDir := setupTestPipeline(t, repo, mock.NewMockEmbedderWithDimension(testDim))

	_, err := p.Ingest(ctx, Source{Path: writeFile(t, "doc.txt", "some content")})
	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, cleanup)
	// The index is still removed even though the row could not be.
	assert.Empty(t, indexFiles(t, indexDir))
}

func TestPipeline_IngestAll(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	p, indexDir := setupTestPipeline(t, repo, mock.NewMockEmbedderWithDimension(testDim), WithPoolSize(2))

	sources := []Source{
		{Path: writeFile(t, "one.txt", "first document")},
		{Path: writeFile(t, "two.md", "unsupported")},
		{Path: writeFile(t, "three.txt", "third document")},
		{Path: writeFile(t, "four.txt", "fourth document")},
	}
	results := p.IngestAll(ctx, sources)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, sources[i], r.Source)
	}
	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, core.ErrUnsupportedFormat)
	require.NoError(t, results[2].Err)
	require.NoError(t, results[3].Err)
	assert.Equal(t, "one.txt", results[0].Document.Filename)
	assert.Nil(t, results[1].Document)

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Len(t, indexFiles(t, indexDir), 3)
}

func TestPipeline_Delete(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	p, indexDir := setupTestPipeline(t, repo, mock.NewMockEmbedderWithDimension(testDim))

	keep, err := p.Ingest(ctx, Source{Path: writeFile(t, "keep.txt", "keep me")})
	require.NoError(t, err)
	drop, err := p.Ingest(ctx, Source{Path: writeFile(t, "drop.txt", "drop me")})
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, drop.ID))

	_, err = repo.GetDocument(ctx, drop.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	chunks, err := repo.ListChunks(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.False(t, vectorindex.Exists(drop.IndexPath))

	assert.True(t, vectorindex.Exists(keep.IndexPath))
	assert.Equal(t, []string{keep.ID + IndexExt}, indexFiles(t, indexDir))

	err = p.Delete(ctx, drop.ID)
	require.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestPipeline_Delete_StoreFailureKeepsDocumentUsable(t *testing.T) {
	ctx := context.Background()
	repo := &faultyRepository{DocumentRepository: setupTestRepository(t)}
	p, _ := setupTestPipeline(t, repo, mock.NewMockEmbedderWithDimension(testDim))

	doc, err := p.Ingest(ctx, Source{Path: writeFile(t, "doc.txt", "still here")})
	require.NoError(t, err)

	repo.deleteErr = errors.New("store offline")
	err = p.Delete(ctx, doc.ID)
	require.ErrorIs(t, err, repo.deleteErr)

	// Neither half of the document was removed.
	_, err = repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, vectorindex.Exists(doc.IndexPath))

	repo.deleteErr = nil
	require.NoError(t, p.Delete(ctx, doc.ID))
	assert.False(t, vectorindex.Exists(doc.IndexPath))
}

func TestPipeline_Delete_IndexFailureStillDeletesDocument(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	p, _ := setupTestPipeline(t, repo, mock.NewMockEmbedderWithDimension(testDim))

	doc, err := p.Ingest(ctx, Source{Path: writeFile(t, "doc.txt", "going away")})
	require.NoError(t, err)

	// A non-empty directory in place of the index cannot be removed.
	require.NoError(t, os.Remove(doc.IndexPath))
	require.NoError(t, os.MkdirAll(filepath.Join(doc.IndexPath, "stuck"), 0o755))

	require.NoError(t, p.Delete(ctx, doc.ID))
	_, err = repo.GetDocument(ctx, doc.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
