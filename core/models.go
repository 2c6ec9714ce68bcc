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

//go:generate go run ../cmd/musgen

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// MetadataVersion is the current DocumentMetadata schema version.
const MetadataVersion = 1

// Source formats accepted for ingestion.
const (
	FormatPDF = "pdf"
	FormatTXT = "txt"
)

// ContentHash returns the hex encoded 64-bit BLAKE2b digest of text.
// Identical extracted text always produces the same hash.
func ContentHash(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Document is an ingested source file. It is created once ingestion has
// fully succeeded and is immutable until deleted.
type Document struct {
	ID         string
	Filename   string           // Original name of the uploaded file
	CreatedAt  time.Time        // When ingestion completed
	ChunkCount int              // Number of chunks stored for the document
	Metadata   DocumentMetadata // Closed, versioned ingestion metadata
	IndexPath  string           // Location of the persisted vector index
}

// DocumentMetadata records facts established during ingestion.
type DocumentMetadata struct {
	Version      int
	EmbeddingDim int    // Dimensionality of every vector in the document's index
	TotalChunks  int    // Always equal to Document.ChunkCount
	SourceExt    string // FormatPDF or FormatTXT
	ContentHash  string // ContentHash of the extracted text
}

// Chunk is a contiguous window of a document's extracted text.
type Chunk struct {
	DocumentID   string
	Ordinal      int    // 0-based position assigned at split time; equals the index handle
	Page         int    // 1-based source page when known, 0 otherwise
	Text         string // Trimmed, never empty
	EmbeddingDim int
}

// Source is a retrieved chunk paired with its raw squared L2 distance
// from the question. Lower is more relevant.
type Source struct {
	ChunkText string
	Score     float32
}

// Answer is the result of answering a question against a document.
type Answer struct {
	DocumentID string
	Question   string
	Text       string
	Sources    []Source      // Ranked by ascending distance
	Elapsed    time.Duration // Rounded to the millisecond
}
