package ai

import "context"

// Embedder turns text into fixed-dimension vectors.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText embeds a single string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds texts in one batch. The result has one vector per
	// input, in input order, all of the same dimension. An empty batch
	// returns core.ErrEmptyInput.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a single prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate sends prompt to the language model and returns its reply.
	// Transport or service failures return core.ErrAnswerGeneration.
	Generate(ctx context.Context, prompt string) (string, error)
}

// AIProvider aggregates the model services used by ingestion and retrieval.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
