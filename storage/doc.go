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


// Package storage provides the storage abstraction layer for docqa.
//
// This package defines the DocumentRepository interface that decouples
// document and chunk persistence from the ingestion and retrieval pipelines.
// Two backends implement it:
//
//   - storage/badger: embedded BadgerDB key-value store, records encoded with MUS
//   - storage/sqlstore: SQLite through GORM, one row per document and per chunk
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.DocumentRepository interface so
// callers cannot couple to a particular backend:
//
//	repo, err := badger.NewDocumentRepository(backend)  // returns storage.DocumentRepository
//
// # Handles and Chunks
//
// Every document has its own vector index. Chunks are added to that index in
// ordinal order, so the index handle of a chunk equals its ordinal and
// GetChunkText(documentID, handle) is a direct key lookup.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
