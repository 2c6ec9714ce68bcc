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


// Package docqa answers questions about uploaded PDF and text documents.
//
// A Library wires a document store, an AI provider, the upload loader, the
// ingestion pipeline and the retrieval orchestrator over one data directory:
//
//	data/
//	  store/        badger document store (or docqa.db for sqlite)
//	  documents/    uploads staged for ingestion
//	  indexes/      one vector index per document
package docqa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/loader"
	"github.com/poiesic/docqa/reindex"
	"github.com/poiesic/docqa/retrieval"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/storage/sqlstore"
)

// Library is a document question-answering service over one data directory.
type Library struct {
	backend      *badger.Backend // nil unless the badger store is used
	repo         storage.DocumentRepository
	provider     ai.AIProvider
	ownsProvider bool
	loader       *loader.Loader
	pipeline     *ingestion.Pipeline
	orchestrator *retrieval.Orchestrator
	indexDir     string
	baseLogger   *slog.Logger
	logger       *slog.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*libraryOptions)

type libraryOptions struct {
	store         string
	inMemory      bool
	aiConfig      *ai.Config
	provider      ai.AIProvider
	pipelineOpts  []ingestion.Option
	retrievalOpts []retrieval.Option
	logger        *slog.Logger
}

// WithStore selects the document store, config.StoreBadger (default) or
// config.StoreSQLite.
func WithStore(store string) LibraryOption {
	return func(o *libraryOptions) {
		o.store = store
	}
}

// WithInMemoryStore keeps documents and chunks in memory. Index files are
// still written under the data directory.
func WithInMemoryStore() LibraryOption {
	return func(o *libraryOptions) {
		o.inMemory = true
	}
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
func WithAIConfig(cfg *ai.Config) LibraryOption {
	return func(o *libraryOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The caller keeps ownership; Close does not close it.
func WithProvider(provider ai.AIProvider) LibraryOption {
	return func(o *libraryOptions) {
		o.provider = provider
	}
}

// WithPipelineOptions passes options through to the ingestion pipeline.
func WithPipelineOptions(opts ...ingestion.Option) LibraryOption {
	return func(o *libraryOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithRetrievalOptions passes options through to the retrieval orchestrator.
func WithRetrievalOptions(opts ...retrieval.Option) LibraryOption {
	return func(o *libraryOptions) {
		o.retrievalOpts = append(o.retrievalOpts, opts...)
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) LibraryOption {
	return func(o *libraryOptions) {
		o.logger = logger
	}
}

// OptionsFromConfig translates a loaded configuration into library options.
func OptionsFromConfig(cfg *config.Config) ([]LibraryOption, error) {
	aiCfg, err := cfg.AIConfig()
	if err != nil {
		return nil, err
	}
	pipelineOpts := []ingestion.Option{
		ingestion.WithChunking(cfg.Chunking.Size, cfg.Chunking.Overlap),
	}
	if cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	if cfg.Ingestion.EmbedBatchSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithEmbedBatchSize(cfg.Ingestion.EmbedBatchSize))
	}
	return []LibraryOption{
		WithStore(cfg.Store),
		WithAIConfig(aiCfg),
		WithPipelineOptions(pipelineOpts...),
		WithRetrievalOptions(retrieval.WithDefaultTopK(cfg.TopK)),
	}, nil
}

// NewLibrary opens or creates a library rooted at dataDir.
func NewLibrary(dataDir string, opts ...LibraryOption) (*Library, error) {
	options := &libraryOptions{
		store:    config.StoreBadger,
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	lib := &Library{
		indexDir:   filepath.Join(dataDir, "indexes"),
		baseLogger: logger,
		logger:     logger.With("component", "library"),
	}
	if err := lib.openStore(dataDir, options); err != nil {
		return nil, err
	}

	if options.provider != nil {
		lib.provider = options.provider
	} else {
		provider, err := openai.NewProvider(options.aiConfig)
		if err != nil {
			lib.closeStore()
			return nil, err
		}
		lib.provider = provider
		lib.ownsProvider = true
	}

	ldr, err := loader.New(filepath.Join(dataDir, "documents"), loader.WithLogger(logger))
	if err != nil {
		lib.Close()
		return nil, err
	}
	lib.loader = ldr

	pipeline, err := ingestion.NewPipeline(lib.repo, lib.provider.Embedder(), lib.indexDir,
		append([]ingestion.Option{ingestion.WithLogger(logger)}, options.pipelineOpts...)...)
	if err != nil {
		lib.Close()
		return nil, err
	}
	lib.pipeline = pipeline

	orchestrator, err := retrieval.NewOrchestrator(lib.repo, lib.provider,
		append([]retrieval.Option{retrieval.WithLogger(logger)}, options.retrievalOpts...)...)
	if err != nil {
		lib.Close()
		return nil, err
	}
	lib.orchestrator = orchestrator
	return lib, nil
}

func (lib *Library) openStore(dataDir string, options *libraryOptions) error {
	switch options.store {
	case config.StoreBadger, "":
		backend, err := badger.OpenBackend(filepath.Join(dataDir, "store"), options.inMemory)
		if err != nil {
			return err
		}
		repo, err := badger.NewDocumentRepository(backend)
		if err != nil {
			backend.Close()
			return err
		}
		lib.backend = backend
		lib.repo = repo
	case config.StoreSQLite:
		dsn := "file::memory:"
		if !options.inMemory {
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			dsn = filepath.Join(dataDir, "docqa.db")
		}
		repo, err := sqlstore.Open(dsn)
		if err != nil {
			return err
		}
		lib.repo = repo
	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownStore, options.store)
	}
	return nil
}

func (lib *Library) closeStore() error {
	var errs []error
	if lib.repo != nil {
		if err := lib.repo.Close(); err != nil {
			lib.logger.Error("error closing document repository", "err", err)
			errs = append(errs, err)
		}
	}
	if lib.backend != nil {
		if err := lib.backend.Close(); err != nil {
			lib.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the worker pool, the provider it created and the store.
func (lib *Library) Close() error {
	if lib.pipeline != nil {
		lib.pipeline.Release()
	}
	if lib.ownsProvider && lib.provider != nil {
		if err := lib.provider.Close(); err != nil {
			lib.logger.Error("error closing AI provider", "err", err)
		}
	}
	return lib.closeStore()
}

// Repository returns the document store.
func (lib *Library) Repository() storage.DocumentRepository {
	return lib.repo
}

// IndexDir returns the directory holding per-document indexes.
func (lib *Library) IndexDir() string {
	return lib.indexDir
}

// Upload stages r under a collision-free name and ingests it as filename.
// The staged copy is removed once ingestion finishes either way.
func (lib *Library) Upload(ctx context.Context, filename string, r io.Reader) (*core.Document, error) {
	file, err := lib.loader.Save(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lib.loader.Remove(context.WithoutCancel(ctx), file.Path); err != nil {
			lib.logger.Warn("failed to remove staged upload", "path", file.Path, "err", err)
		}
	}()
	return lib.pipeline.Ingest(ctx, ingestion.Source{Path: file.Path, Filename: file.Filename, Ext: file.Ext})
}

// Ingest ingests a file already on disk.
func (lib *Library) Ingest(ctx context.Context, path string) (*core.Document, error) {
	return lib.pipeline.Ingest(ctx, ingestion.Source{Path: path})
}

// IngestAll ingests files concurrently. Results are in input order.
func (lib *Library) IngestAll(ctx context.Context, paths ...string) []ingestion.Result {
	sources := make([]ingestion.Source, len(paths))
	for i, path := range paths {
		sources[i] = ingestion.Source{Path: path}
	}
	return lib.pipeline.IngestAll(ctx, sources)
}

// Ask answers question from the topK most relevant chunks of documentID.
// A topK <= 0 uses the configured default.
func (lib *Library) Ask(ctx context.Context, documentID, question string, topK int) (*core.Answer, error) {
	return lib.orchestrator.Answer(ctx, documentID, question, topK)
}

// AskWithMonitor is Ask reporting each stage to monitor.
func (lib *Library) AskWithMonitor(ctx context.Context, documentID, question string, topK int, monitor retrieval.Monitor) (*core.Answer, error) {
	return lib.orchestrator.AnswerWithMonitor(ctx, documentID, question, topK, monitor)
}

// Documents lists every ingested document, oldest first.
func (lib *Library) Documents(ctx context.Context) ([]*core.Document, error) {
	return lib.repo.ListDocuments(ctx)
}

// Document returns one document.
func (lib *Library) Document(ctx context.Context, documentID string) (*core.Document, error) {
	doc, err := lib.repo.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, documentID)
	}
	return doc, err
}

// Delete removes a document, its chunks and its index.
func (lib *Library) Delete(ctx context.Context, documentID string) error {
	return lib.pipeline.Delete(ctx, documentID)
}

// Reindex rebuilds the indexes of the given documents, or of all documents
// when ids is empty.
func (lib *Library) Reindex(ctx context.Context, cfg reindex.Config, progress io.Writer, ids ...string) (reindex.Summary, error) {
	r, err := reindex.NewReindexer(lib.repo, lib.provider.Embedder(),
		reindex.WithConfig(cfg),
		reindex.WithProgress(progress),
		reindex.WithLogger(lib.baseLogger))
	if err != nil {
		return reindex.Summary{}, err
	}
	return r.Run(ctx, ids...)
}
