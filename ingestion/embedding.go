package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

// DefaultEmbedBatchSize bounds how many chunks are sent to the embedder per call.
const DefaultEmbedBatchSize = 64

// chunkEmbedder embeds chunk texts in bounded batches.
type chunkEmbedder struct {
	embedder  ai.Embedder
	batchSize int
	logger    *slog.Logger
}

func newChunkEmbedder(embedder ai.Embedder, batchSize int, logger *slog.Logger) (*chunkEmbedder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if batchSize < 1 {
		batchSize = DefaultEmbedBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &chunkEmbedder{
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

// embed returns one vector per text, all of one dimension, and that dimension.
func (ce *chunkEmbedder) embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	if len(texts) == 0 {
		return nil, 0, fmt.Errorf("%w: no chunks to embed", core.ErrEmptyInput)
	}
	ce.logger.Debug("embedding chunks", "chunks", len(texts), "batch_size", ce.batchSize)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ce.batchSize {
		end := min(start+ce.batchSize, len(texts))
		batch, err := ce.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			ce.logger.Error("error generating embeddings", "from", start, "to", end, "err", err)
			if errors.Is(err, core.ErrEmbedding) || errors.Is(err, core.ErrEmptyInput) {
				return nil, 0, err
			}
			return nil, 0, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
		}
		if _, err := ai.CheckEmbeddings(end-start, batch); err != nil {
			return nil, 0, err
		}
		vectors = append(vectors, batch...)
	}

	dim, err := ai.CheckEmbeddings(len(texts), vectors)
	if err != nil {
		return nil, 0, err
	}
	return vectors, dim, nil
}
