package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one embedded slice of an uploaded knowledge document. Rows are
// scoped to an organization; every query against this table carries org_id.
type Chunk struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	OrgID          snowflake.ID    `gorm:"column:org_id;not null;index:idx_knowledge_chunks_org_filename,priority:1"`
	SourceFilename string          `gorm:"column:source_filename;type:text;not null;index:idx_knowledge_chunks_org_filename,priority:2"`
	Content        string          `gorm:"type:text;not null"`
	Embedding      pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Chunk) TableName() string { return "knowledge_chunks" }
