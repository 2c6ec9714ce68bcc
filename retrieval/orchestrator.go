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


package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/vectorindex"
)

// DefaultTopK is the number of chunks retrieved when the caller asks for none.
const DefaultTopK = 5

// Orchestrator answers questions against ingested documents.
type Orchestrator struct {
	repository  storage.DocumentRepository
	embedder    ai.Embedder
	generator   ai.Generator
	defaultTopK int
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithDefaultTopK sets the number of chunks retrieved when Answer is
// called with topK <= 0.
func WithDefaultTopK(k int) Option {
	return func(o *Orchestrator) error {
		if k < 1 {
			return fmt.Errorf("default top k must be positive, got %d", k)
		}
		o.defaultTopK = k
		return nil
	}
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(repository storage.DocumentRepository, provider ai.AIProvider, opts ...Option) (*Orchestrator, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	o := &Orchestrator{
		repository:  repository,
		embedder:    provider.Embedder(),
		generator:   provider.Generator(),
		defaultTopK: DefaultTopK,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "retrieval")
	return o, nil
}

// Answer answers question using the topK chunks of documentID closest to it.
func (o *Orchestrator) Answer(ctx context.Context, documentID, question string, topK int) (*core.Answer, error) {
	return o.AnswerWithMonitor(ctx, documentID, question, topK, nil)
}

// AnswerWithMonitor is Answer with a monitor receiving every state transition.
func (o *Orchestrator) AnswerWithMonitor(ctx context.Context, documentID, question string, topK int, monitor Monitor) (*core.Answer, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	start := time.Now()
	logger := o.logger.With("document_id", documentID)
	monitor.Start(documentID, question)

	stage := StageReceived
	fail := func(err error) (*core.Answer, error) {
		logger.Error("question failed", "stage", stage, "kind", core.KindOf(err), "err", err)
		monitor.Fail(stage, err)
		return nil, &StageError{Stage: stage, Err: err}
	}

	if strings.TrimSpace(question) == "" {
		return fail(fmt.Errorf("%w: question is empty", core.ErrEmptyInput))
	}
	if topK <= 0 {
		topK = o.defaultTopK
	}

	doc, err := o.repository.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(fmt.Errorf("%w: %s", core.ErrDocumentNotFound, documentID))
	}
	if err != nil {
		return fail(err)
	}

	query, err := o.embedQuestion(ctx, question)
	if err != nil {
		return fail(err)
	}
	stage = StageEmbedded
	monitor.AfterEmbedding(len(query))

	handles, distances, err := o.search(doc, query, topK)
	if err != nil {
		return fail(err)
	}
	stage = StageRetrieved
	monitor.AfterRetrieval(handles, distances)

	texts := make([]string, 0, len(handles))
	sources := make([]core.Source, 0, len(handles))
	for i, handle := range handles {
		text, err := o.repository.GetChunkText(ctx, documentID, handle)
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn("skipping unresolved handle", "handle", handle)
			continue
		}
		if err != nil {
			return fail(err)
		}
		texts = append(texts, text)
		sources = append(sources, core.Source{ChunkText: text, Score: distances[i]})
	}
	block := AssembleContext(texts)
	stage = StageContextAssembled
	monitor.AfterContextAssembly(block, len(texts))

	reply, err := o.generator.Generate(ctx, BuildPrompt(block, question))
	if err != nil {
		if !errors.Is(err, core.ErrAnswerGeneration) {
			err = fmt.Errorf("%w: %w", core.ErrAnswerGeneration, err)
		}
		return fail(err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		logger.Warn("language model returned an empty reply")
		reply = FallbackAnswer
	}

	stage = StageAnswered
	answer := &core.Answer{
		DocumentID: documentID,
		Question:   question,
		Text:       reply,
		Sources:    sources,
		Elapsed:    time.Since(start).Round(time.Millisecond),
	}
	monitor.Finish(answer)
	logger.Debug("answered question", "stage", stage, "sources", len(sources), "elapsed", answer.Elapsed)
	return answer, nil
}

func (o *Orchestrator) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	vectors, err := o.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		if errors.Is(err, core.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	if _, err := ai.CheckEmbeddings(1, vectors); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// search returns no matches when the document has nothing indexed.
func (o *Orchestrator) search(doc *core.Document, query []float32, topK int) ([]int, []float32, error) {
	if doc.ChunkCount == 0 || doc.Metadata.EmbeddingDim <= 0 || !vectorindex.Exists(doc.IndexPath) {
		o.logger.Warn("document has no index, answering without context", "document_id", doc.ID)
		return []int{}, []float32{}, nil
	}
	ix, err := vectorindex.OpenOrCreate(doc.IndexPath, doc.Metadata.EmbeddingDim)
	if err != nil {
		return nil, nil, err
	}
	return ix.Search(query, topK)
}
