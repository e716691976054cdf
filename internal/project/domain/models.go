// Package domain contains persistence models for RFP projects.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Project is one uploaded RFP and its extracted questions.
type Project struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"column:org_id;not null;index" json:"org_id"`
	UserID         snowflake.ID `gorm:"column:user_id;not null" json:"user_id"`
	RFPName        string       `gorm:"column:rfp_name;type:text;not null" json:"rfp_name"`
	SourceFilename string       `gorm:"column:source_filename;type:text" json:"source_filename"`
	Status         string       `gorm:"type:text;not null" json:"status"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }

// Question is one extracted RFP question plus its generated draft answer.
// ContextUsed holds the retrieved chunks the draft was grounded on, as JSON.
type Question struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	ProjectID       snowflake.ID   `gorm:"column:project_id;not null;index" json:"project_id"`
	QuestionText    string         `gorm:"column:question_text;type:text;not null" json:"question_text"`
	DraftAnswer     string         `gorm:"column:draft_answer;type:text" json:"draft_answer"`
	ConfidenceScore float64        `gorm:"column:confidence_score" json:"confidence_score"`
	ContextUsed     datatypes.JSON `gorm:"column:context_used" json:"context_used"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Question) TableName() string { return "questions" }
