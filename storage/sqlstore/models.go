package sqlstore

import (
	"time"

	"github.com/poiesic/docqa/core"
)

// documentRow is the persisted form of core.Document.
type documentRow struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)"`
	Filename        string    `gorm:"type:varchar(512);not null"`
	CreatedAt       time.Time `gorm:"index"`
	ChunkCount      int       `gorm:"default:0"`
	MetadataVersion int       `gorm:"not null"`
	EmbeddingDim    int
	TotalChunks     int
	SourceExt       string `gorm:"type:varchar(8)"`
	ContentHash     string `gorm:"type:varchar(64);index"`
	IndexPath       string `gorm:"type:varchar(1024);not null"`
}

// TableName specifies the table name for documentRow.
func (documentRow) TableName() string {
	return "documents"
}

// chunkRow is the persisted form of core.Chunk.
type chunkRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	DocumentID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_chunk_document_ordinal"`
	Ordinal      int    `gorm:"not null;uniqueIndex:idx_chunk_document_ordinal"`
	Page         int    `gorm:"default:0"`
	Text         string `gorm:"type:text;not null"`
	EmbeddingDim int
}

// TableName specifies the table name for chunkRow.
func (chunkRow) TableName() string {
	return "document_chunks"
}

func toDocumentRow(doc *core.Document) *documentRow {
	return &documentRow{
		ID:              doc.ID,
		Filename:        doc.Filename,
		CreatedAt:       doc.CreatedAt,
		ChunkCount:      doc.ChunkCount,
		MetadataVersion: doc.Metadata.Version,
		EmbeddingDim:    doc.Metadata.EmbeddingDim,
		TotalChunks:     doc.Metadata.TotalChunks,
		SourceExt:       doc.Metadata.SourceExt,
		ContentHash:     doc.Metadata.ContentHash,
		IndexPath:       doc.IndexPath,
	}
}

func (r *documentRow) toDocument() *core.Document {
	return &core.Document{
		ID:         r.ID,
		Filename:   r.Filename,
		CreatedAt:  r.CreatedAt.UTC(),
		ChunkCount: r.ChunkCount,
		Metadata: core.DocumentMetadata{
			Version:      r.MetadataVersion,
			EmbeddingDim: r.EmbeddingDim,
			TotalChunks:  r.TotalChunks,
			SourceExt:    r.SourceExt,
			ContentHash:  r.ContentHash,
		},
		IndexPath: r.IndexPath,
	}
}

func toChunkRow(chunk *core.Chunk) *chunkRow {
	return &chunkRow{
		DocumentID:   chunk.DocumentID,
		Ordinal:      chunk.Ordinal,
		Page:         chunk.Page,
		Text:         chunk.Text,
		EmbeddingDim: chunk.EmbeddingDim,
	}
}

func (r *chunkRow) toChunk() *core.Chunk {
	return &core.Chunk{
		DocumentID:   r.DocumentID,
		Ordinal:      r.Ordinal,
		Page:         r.Page,
		Text:         r.Text,
		EmbeddingDim: r.EmbeddingDim,
	}
}
