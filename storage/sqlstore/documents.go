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


// Package sqlstore implements storage.DocumentRepository on SQLite through
// GORM, using the pure Go glebarez driver.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const chunkBatchSize = 200

// DocumentRepository implements storage.DocumentRepository with GORM.
type DocumentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// gormLogWriter routes GORM's printf-style logging into slog.
type gormLogWriter struct {
	logger *slog.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}

// Open connects to the SQLite database named by dsn, for example a file
// path or "file:docs?mode=memory&cache=shared", and migrates the schema.
func Open(dsn string) (storage.DocumentRepository, error) {
	log := slog.Default().With("component", "sqlstore")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(gormLogWriter{logger: log}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	// SQLite permits a single writer; one connection avoids SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	repo, err := newDocumentRepository(db, log)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return repo, nil
}

// NewDocumentRepository wraps an existing GORM handle and migrates the schema.
func NewDocumentRepository(db *gorm.DB) (storage.DocumentRepository, error) {
	return newDocumentRepository(db, slog.Default().With("component", "sqlstore"))
}

func newDocumentRepository(db *gorm.DB, log *slog.Logger) (*DocumentRepository, error) {
	if db == nil {
		return nil, errors.New("gorm db required")
	}
	if err := db.AutoMigrate(&documentRow{}, &chunkRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DocumentRepository{db: db, logger: log}, nil
}

// Close closes the underlying connection pool.
func (r *DocumentRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateDocument stores a new document.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&documentRow{}).Where("id = ?", doc.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
		}
		err := tx.Create(toDocumentRow(doc)).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
		}
		return err
	})
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var row documentRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.toDocument(), nil
}

// ListDocuments returns every document ordered by creation time.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var rows []documentRow
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]*core.Document, len(rows))
	for i := range rows {
		docs[i] = rows[i].toDocument()
	}
	return docs, nil
}

// DeleteDocument removes a document and its chunks in one transaction.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&documentRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
		}
		return tx.Where("document_id = ?", id).Delete(&chunkRow{}).Error
	})
}

// SaveChunks upserts chunks keyed by (document_id, ordinal).
func (r *DocumentRepository) SaveChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]*chunkRow, len(chunks))
	for i, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		rows[i] = toChunkRow(chunk)
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "ordinal"}},
		DoUpdates: clause.AssignmentColumns([]string{"page", "text", "embedding_dim"}),
	}).CreateInBatches(rows, chunkBatchSize).Error
}

// GetChunkText returns the text of the chunk whose ordinal equals handle.
func (r *DocumentRepository) GetChunkText(ctx context.Context, documentID string, handle int) (string, error) {
	var row chunkRow
	err := r.db.WithContext(ctx).
		Select("text").
		Where("document_id = ? AND ordinal = ?", documentID, handle).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: chunk %s/%d", storage.ErrNotFound, documentID, handle)
	}
	if err != nil {
		return "", err
	}
	return row.Text, nil
}

// ListChunks returns a document's chunks ordered by ordinal.
func (r *DocumentRepository) ListChunks(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	var rows []chunkRow
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("ordinal ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	chunks := make([]*core.Chunk, len(rows))
	for i := range rows {
		chunks[i] = rows[i].toChunk()
	}
	return chunks, nil
}
