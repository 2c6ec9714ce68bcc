package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/vectorindex"
)

// Config holds configuration for a reindexing run.
type Config struct {
	// BatchSize is the number of chunks embedded per request.
	BatchSize int

	// ReportInterval is how many chunks pass between progress reports.
	ReportInterval int

	// MaxRetries is the number of attempts per batch.
	MaxRetries int

	// RetryDelay is the delay before the first retry. It doubles on each
	// subsequent attempt.
	RetryDelay time.Duration
}

// DefaultConfig returns the default reindexing configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:      64,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Summary describes a completed run.
type Summary struct {
	Documents int
	Chunks    int
	Elapsed   time.Duration
}

// Option configures a Reindexer.
type Option func(*Reindexer) error

// WithConfig replaces the default batching and retry settings.
func WithConfig(config Config) Option {
	return func(r *Reindexer) error {
		r.config = config
		return nil
	}
}

// WithProgress reports progress to w. Default is no output.
func WithProgress(w io.Writer) Option {
	return func(r *Reindexer) error {
		r.progress = w
		return nil
	}
}

// WithLocker sets the locker guarding index writes.
// Default is vectorindex.SharedLocker().
func WithLocker(locker *vectorindex.Locker) Option {
	return func(r *Reindexer) error {
		if locker != nil {
			r.locker = locker
		}
		return nil
	}
}

// WithLogger sets a custom logger for the reindexer.
// If nil is passed, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// Reindexer rebuilds vector indexes from the chunks held in a repository.
type Reindexer struct {
	repo     storage.DocumentRepository
	embedder ai.Embedder
	locker   *vectorindex.Locker
	config   Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReindexer creates a reindexer over repo using embedder.
func NewReindexer(repo storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Reindexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	r := &Reindexer{
		repo:     repo,
		embedder: embedder,
		locker:   vectorindex.SharedLocker(),
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reindexer")
	return r, nil
}

// Run rebuilds the indexes of the documents named by ids, or of every
// document when ids is empty. It stops at the first failing document.
// Documents already rebuilt keep their new index.
func (r *Reindexer) Run(ctx context.Context, ids ...string) (Summary, error) {
	start := time.Now()

	iter, err := NewDocumentIterator(ctx, r.repo, ids...)
	if err != nil {
		return Summary{}, err
	}
	processor, err := NewBatchProcessor(r.embedder, r.config, r.logger)
	if err != nil {
		return Summary{}, err
	}

	tracker := NewProgressTracker(r.progress, "chunks", iter.TotalChunks(), r.config.ReportInterval)
	tracker.Start()
	r.logger.Info("starting reindex", "documents", iter.Len(), "chunks", iter.TotalChunks())

	var summary Summary
	for {
		doc, chunks, err := iter.Next(ctx)
		if err != nil {
			return summary, err
		}
		if doc == nil {
			break
		}
		if err := r.rebuild(ctx, processor, doc, chunks, tracker.Increment); err != nil {
			r.logger.Error("reindex failed", "document_id", doc.ID, "err", err)
			return summary, fmt.Errorf("reindex %s: %w", doc.ID, err)
		}
		summary.Documents++
		summary.Chunks += len(chunks)
	}

	tracker.Finish()
	summary.Elapsed = time.Since(start)
	r.logger.Info("reindex complete",
		"documents", summary.Documents, "chunks", summary.Chunks, "elapsed", summary.Elapsed)
	return summary, nil
}

func (r *Reindexer) rebuild(ctx context.Context, processor *BatchProcessor, doc *core.Document,
	chunks []*core.Chunk, onBatch func(int)) error {
	for i, chunk := range chunks {
		if chunk.Ordinal != i {
			return fmt.Errorf("%w: expected ordinal %d, found %d", ErrOrdinalGap, i, chunk.Ordinal)
		}
	}

	unlock, err := r.locker.Lock(ctx, doc.IndexPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			r.logger.Warn("failed to release index lock", "path", doc.IndexPath, "err", err)
		}
	}()

	if len(chunks) == 0 {
		r.logger.Debug("document has no chunks, removing index", "document_id", doc.ID)
		return vectorindex.Remove(doc.IndexPath)
	}

	vectors, err := processor.Embed(ctx, chunks, onBatch)
	if err != nil {
		return err
	}
	dim := len(vectors[0])
	if expected := doc.Metadata.EmbeddingDim; expected > 0 && dim != expected {
		return fmt.Errorf("%w: embedder produced %d dimensions, document expects %d",
			core.ErrDimensionMismatch, dim, expected)
	}

	if _, err := vectorindex.CreateStandalone(vectors, doc.IndexPath, dim); err != nil {
		return err
	}
	r.logger.Debug("rebuilt index", "document_id", doc.ID, "chunks", len(chunks), "dim", dim)
	return nil
}
