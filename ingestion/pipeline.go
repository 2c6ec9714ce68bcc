// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/chunker"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/vectorindex"
)

// IndexExt is the file extension of per-document index files.
const IndexExt = ".dqix"

// Source identifies a file to ingest.
type Source struct {
	// Path is the location of the stored file.
	Path string
	// Filename is the user-facing name. Defaults to the base of Path.
	Filename string
	// Ext selects the parser. Defaults to the extension of Path.
	Ext string
}

// Result is the outcome of ingesting one Source.
type Result struct {
	Source   Source
	Document *core.Document
	Err      error
}

// Pipeline orchestrates document ingestion and deletion.
type Pipeline struct {
	repository storage.DocumentRepository
	extractor  *extract.Extractor
	splitter   *chunker.Splitter
	embedder   *chunkEmbedder
	locker     *vectorindex.Locker
	indexDir   string
	pool       *ants.Pool
	batchSize  int
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by IngestAll.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(chunkSize, overlap int) Option {
	return func(p *Pipeline) error {
		splitter, err := chunker.New(chunkSize, overlap)
		if err != nil {
			return err
		}
		p.splitter = splitter
		return nil
	}
}

// WithLocker sets the locker guarding index writes.
// Default is vectorindex.SharedLocker().
func WithLocker(locker *vectorindex.Locker) Option {
	return func(p *Pipeline) error {
		if locker != nil {
			p.locker = locker
		}
		return nil
	}
}

// WithEmbedBatchSize bounds the number of chunks per embedder call.
// Default is DefaultEmbedBatchSize.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		p.batchSize = size
		return nil
	}
}

// NewPipeline creates a pipeline writing index files under indexDir.
func NewPipeline(
	repository storage.DocumentRepository,
	embedder ai.Embedder,
	indexDir string,
	opts ...Option,
) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if indexDir == "" {
		return nil, ErrIndexDirRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository: repository,
		splitter:   chunker.NewDefault(),
		locker:     vectorindex.SharedLocker(),
		indexDir:   indexDir,
		pool:       pool,
		batchSize:  DefaultEmbedBatchSize,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "ingestion")
	p.extractor = extract.New(extract.WithLogger(p.logger))
	p.embedder, err = newChunkEmbedder(embedder, p.batchSize, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// IndexPath returns where the index of documentID is stored.
func (p *Pipeline) IndexPath(documentID string) string {
	return filepath.Join(p.indexDir, documentID+IndexExt)
}

// Ingest extracts, chunks, embeds, and indexes one file and records it as a
// new document. Nothing is left behind when it fails.
func (p *Pipeline) Ingest(ctx context.Context, src Source) (*core.Document, error) {
	start := time.Now()
	ext := src.Ext
	if ext == "" {
		ext = filepath.Ext(src.Path)
	}
	ext = core.NormalizeExt(ext)
	if !core.IsSupportedFormat(ext) {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}
	filename := src.Filename
	if filename == "" {
		filename = filepath.Base(src.Path)
	}
	logger := p.logger.With("filename", filename)

	text, err := p.extractor.ExtractText(ctx, src.Path, ext)
	if err != nil {
		return nil, err
	}
	if text.Content == "" {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyDocument, filename)
	}

	pieces := p.splitter.Pieces(text.Content)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyDocument, filename)
	}
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	vectors, dim, err := p.embedder.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	indexPath := p.IndexPath(id)
	unlock, err := p.locker.Lock(ctx, indexPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			logger.Warn("failed to release index lock", "path", indexPath, "err", uerr)
		}
	}()

	ix, err := vectorindex.OpenOrCreate(indexPath, dim)
	if err != nil {
		return nil, err
	}
	handles, err := ix.Add(vectors)
	if err != nil {
		return nil, p.rollback(ctx, nil, indexPath, err)
	}
	for i, h := range handles {
		if h != i {
			return nil, p.rollback(ctx, nil, indexPath,
				fmt.Errorf("%w: chunk %d got handle %d", ErrHandleMismatch, i, h))
		}
	}

	doc := &core.Document{
		ID:         id,
		Filename:   filename,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		ChunkCount: len(pieces),
		Metadata: core.DocumentMetadata{
			Version:      core.MetadataVersion,
			EmbeddingDim: dim,
			TotalChunks:  len(pieces),
			SourceExt:    ext,
			ContentHash:  core.ContentHash(text.Content),
		},
		IndexPath: indexPath,
	}
	if err := p.repository.CreateDocument(ctx, doc); err != nil {
		return nil, p.rollback(ctx, nil, indexPath, err)
	}

	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			DocumentID:   id,
			Ordinal:      i,
			Page:         text.PageAt(piece.Start),
			Text:         piece.Text,
			EmbeddingDim: dim,
		}
	}
	if err := p.repository.SaveChunks(ctx, chunks...); err != nil {
		return nil, p.rollback(ctx, doc, indexPath, err)
	}

	logger.Info("ingested document",
		"document_id", id,
		"chunks", len(pieces),
		"dimension", dim,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return doc, nil
}

// rollback undoes a partial ingestion. Cleanup failures are logged and
// joined with cause.
func (p *Pipeline) rollback(ctx context.Context, doc *core.Document, indexPath string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if doc != nil {
		if err := p.repository.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Errorf("rollback document %s: %w", doc.ID, err))
		}
	}
	if err := vectorindex.Remove(indexPath); err != nil {
		errs = append(errs, fmt.Errorf("rollback index %s: %w", indexPath, err))
	}
	if len(errs) == 0 {
		return cause
	}
	rollbackErr := errors.Join(errs...)
	p.logger.Error("ingestion rollback incomplete", "path", indexPath, "cause", cause, "err", rollbackErr)
	return errors.Join(cause, rollbackErr)
}

// IngestAll ingests sources concurrently on the worker pool. Results are
// returned in input order; one failure does not stop the others.
func (p *Pipeline) IngestAll(ctx context.Context, sources []Source) []Result {
	results := make([]Result, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		results[i].Source = src
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			doc, err := p.Ingest(ctx, src)
			results[i].Document = doc
			results[i].Err = err
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
		}
	}
	wg.Wait()
	return results
}

// Delete removes a document and its chunks and then its index. The store
// row goes first: once it is gone nothing refers to the index, so a failed
// index removal only leaves an unreachable file behind.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	doc, err := p.repository.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return err
	}

	unlock, err := p.locker.Lock(ctx, doc.IndexPath)
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.repository.DeleteDocument(ctx, documentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, documentID)
		}
		return err
	}
	if err := vectorindex.Remove(doc.IndexPath); err != nil {
		p.logger.Warn("index file left behind", "document_id", documentID, "path", doc.IndexPath, "err", err)
	}
	p.logger.Info("deleted document", "document_id", documentID)
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
