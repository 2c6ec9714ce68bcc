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


package core

import "errors"

// Pipeline errors. Every failure surfaced by ingestion or retrieval wraps
// exactly one of these so callers can branch with errors.Is or KindOf.
var (
	// ErrUnsupportedFormat indicates a file extension other than pdf or txt.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmptyDocument indicates that no text could be extracted from a document.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrExtraction indicates that a source file could not be read or parsed.
	ErrExtraction = errors.New("text extraction failed")

	// ErrInvalidChunkConfig indicates chunk size is not greater than overlap,
	// or overlap is negative.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

	// ErrEmptyInput indicates an empty batch was passed to the embedder or index.
	ErrEmptyInput = errors.New("empty input")

	// ErrDimensionMismatch indicates a vector or index of the wrong dimensionality.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexNotLoaded indicates a search against an uninitialised index.
	ErrIndexNotLoaded = errors.New("index not loaded")

	// ErrIndexIO indicates the index artifact could not be read or written.
	ErrIndexIO = errors.New("index i/o error")

	// ErrDocumentNotFound indicates the document id does not resolve.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrEmbedding indicates the embedding model failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrAnswerGeneration indicates the language model failed.
	ErrAnswerGeneration = errors.New("answer generation failed")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")
)

// Kinds returned by KindOf.
const (
	KindUnsupportedFormat  = "UnsupportedFormat"
	KindEmptyDocument      = "EmptyDocument"
	KindExtraction         = "ExtractionError"
	KindInvalidChunkConfig = "InvalidChunkConfig"
	KindEmptyInput         = "EmptyInput"
	KindDimensionMismatch  = "DimensionMismatch"
	KindIndexNotLoaded     = "IndexNotLoaded"
	KindIndexIO            = "IndexIOError"
	KindDocumentNotFound   = "DocumentNotFound"
	KindEmbedding          = "EmbeddingError"
	KindAnswerGeneration   = "AnswerGenerationError"
	KindInvalid            = "InvalidRecord"
	KindInternal           = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	// Stage errors first: an embedding failure caused by an empty batch is
	// still reported as an embedding failure.
	{ErrEmbedding, KindEmbedding},
	{ErrAnswerGeneration, KindAnswerGeneration},
	{ErrDocumentNotFound, KindDocumentNotFound},
	{ErrUnsupportedFormat, KindUnsupportedFormat},
	{ErrEmptyDocument, KindEmptyDocument},
	{ErrExtraction, KindExtraction},
	{ErrInvalidChunkConfig, KindInvalidChunkConfig},
	{ErrEmptyInput, KindEmptyInput},
	{ErrDimensionMismatch, KindDimensionMismatch},
	{ErrIndexNotLoaded, KindIndexNotLoaded},
	{ErrIndexIO, KindIndexIO},
	{ErrInvalidDocument, KindInvalid},
	{ErrInvalidChunk, KindInvalid},
}

// KindOf returns the stable machine-readable kind of err.
// Errors outside the taxonomy report KindInternal; nil reports "".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
