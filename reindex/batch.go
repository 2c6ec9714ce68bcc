package reindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

// BatchProcessor embeds chunk texts in batches, retrying failed batches.
type BatchProcessor struct {
	embedder   ai.Embedder
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewBatchProcessor creates a processor using the batching and retry
// settings from config.
func NewBatchProcessor(embedder ai.Embedder, config Config, logger *slog.Logger) (*BatchProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := config.BatchSize
	if batchSize < 1 {
		batchSize = DefaultConfig().BatchSize
	}
	maxRetries := config.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &BatchProcessor{
		embedder:   embedder,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		retryDelay: config.RetryDelay,
		logger:     logger,
	}, nil
}

// Embed returns one vector per chunk, in chunk order. onBatch, when not
// nil, is called with the size of each completed batch.
func (bp *BatchProcessor) Embed(ctx context.Context, chunks []*core.Chunk, onBatch func(n int)) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to embed", core.ErrEmptyInput)
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += bp.batchSize {
		end := min(start+bp.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		var batch [][]float32
		err := RetryWithBackoff(ctx, func() error {
			var embedErr error
			batch, embedErr = bp.embedder.EmbedTexts(ctx, texts)
			return embedErr
		}, bp.maxRetries, bp.retryDelay)
		if err != nil {
			bp.logger.Error("failed to embed batch", "from", start, "to", end, "err", err)
			if errors.Is(err, core.ErrEmbedding) || errors.Is(err, core.ErrEmptyInput) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
		}
		if _, err := ai.CheckEmbeddings(len(texts), batch); err != nil {
			return nil, err
		}

		vectors = append(vectors, batch...)
		if onBatch != nil {
			onBatch(len(texts))
		}
	}

	if _, err := ai.CheckEmbeddings(len(chunks), vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}
