package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Ingest runs the full pipeline for one uploaded document: extract,
	// chunk, embed, store. Re-uploading a filename replaces its chunks.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	// Search returns the org's chunks most similar to the query vector,
	// descending, at or above the configured similarity threshold.
	Search(ctx context.Context, queryVector []float32) ([]SearchResult, error)
	// ListDocuments summarizes the org's knowledge base per filename.
	ListDocuments(ctx context.Context) ([]DocumentSummary, error)
	// DeleteDocument removes every chunk of one (org, filename) pair.
	DeleteDocument(ctx context.Context, filename string) error
}

type Repository interface {
	InsertChunks(ctx context.Context, db *gorm.DB, chunks []Chunk) error
	DeleteByFilename(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filename string) (int64, error)
	Search(ctx context.Context, db *gorm.DB, orgID snowflake.ID, query []float32, threshold float64, topK int) ([]SearchResult, error)
	ListDocuments(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]DocumentSummary, error)
}

type IngestRequest struct {
	Filename    string
	ContentType string
	Data        []byte
}

type IngestResult struct {
	SourceFilename string `json:"source_filename"`
	ChunkCount     int    `json:"chunk_count"`
	Truncated      bool   `json:"truncated"`
}

type SearchResult struct {
	ChunkID        snowflake.ID `json:"chunk_id" gorm:"column:chunk_id"`
	SourceFilename string       `json:"source_filename" gorm:"column:source_filename"`
	Content        string       `json:"content" gorm:"column:content"`
	Similarity     float64      `json:"similarity" gorm:"column:similarity"`
}

type DocumentSummary struct {
	SourceFilename string    `json:"source_filename" gorm:"column:source_filename"`
	ChunkCount     int64     `json:"chunk_count" gorm:"column:chunk_count"`
	UploadedAt     time.Time `json:"uploaded_at" gorm:"column:uploaded_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidFilename     = errors.New("invalid_filename")
	ErrNoUsableContent     = errors.New("no_usable_content")
	ErrDimensionMismatch   = errors.New("dimension_mismatch")
	ErrDocumentNotFound    = errors.New("document_not_found")
)
