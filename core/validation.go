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

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID and Filename must not be empty
//   - ChunkCount must not be negative
//   - Metadata.TotalChunks must equal ChunkCount
//   - Metadata.EmbeddingDim must be positive when the document has chunks
//   - Metadata.Version must be known
//   - IndexPath must not be empty
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidDocument)
	}
	if doc.Filename == "" {
		return fmt.Errorf("%w: filename is empty", ErrInvalidDocument)
	}
	if doc.ChunkCount < 0 {
		return fmt.Errorf("%w: negative chunk count %d", ErrInvalidDocument, doc.ChunkCount)
	}
	if doc.Metadata.TotalChunks != doc.ChunkCount {
		return fmt.Errorf("%w: metadata reports %d chunks, document has %d",
			ErrInvalidDocument, doc.Metadata.TotalChunks, doc.ChunkCount)
	}
	if doc.ChunkCount > 0 && doc.Metadata.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding dimension %d", ErrInvalidDocument, doc.Metadata.EmbeddingDim)
	}
	if doc.Metadata.Version < 1 || doc.Metadata.Version > MetadataVersion {
		return fmt.Errorf("%w: unknown metadata version %d", ErrInvalidDocument, doc.Metadata.Version)
	}
	if doc.IndexPath == "" {
		return fmt.Errorf("%w: index path is empty", ErrInvalidDocument)
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.DocumentID == "" {
		return fmt.Errorf("%w: document id is empty", ErrInvalidChunk)
	}
	if chunk.Ordinal < 0 {
		return fmt.Errorf("%w: negative ordinal %d", ErrInvalidChunk, chunk.Ordinal)
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	return nil
}

// NormalizeExt lowercases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsSupportedFormat reports whether ext names an ingestible format.
func IsSupportedFormat(ext string) bool {
	switch NormalizeExt(ext) {
	case FormatPDF, FormatTXT:
		return true
	}
	return false
}
