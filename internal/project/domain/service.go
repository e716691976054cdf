package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_project_name")
	ErrEmptyDocument       = errors.New("empty_document")
	ErrEmptyDraft          = errors.New("empty_draft")
	ErrProjectNotFound     = errors.New("project_not_found")
	ErrQuestionNotFound    = errors.New("question_not_found")
	ErrProjectNotReady     = errors.New("project_not_ready")
)

// CreateRequest carries an uploaded RFP document.
type CreateRequest struct {
	RFPName     string
	Filename    string
	ContentType string
	UserID      snowflake.ID
	Data        []byte
}

// ProjectResponse is the API shape of a project.
type ProjectResponse struct {
	ID            snowflake.ID `json:"id"`
	RFPName       string       `json:"rfp_name"`
	Status        string       `json:"status"`
	QuestionCount int64        `json:"question_count"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Service manages RFP projects and their extracted questions.
type Service interface {
	// CreateFromUpload creates a project, extracts the document text,
	// pulls out the individual questions and stores them. The project
	// ends in StatusReady or StatusFailed. Zero extracted questions is
	// still a ready project.
	CreateFromUpload(ctx context.Context, req CreateRequest) (*Project, error)
	Get(ctx context.Context, projectID string) (*Project, error)
	List(ctx context.Context) ([]ProjectResponse, error)
	Delete(ctx context.Context, projectID string) error
	ListQuestions(ctx context.Context, projectID string) ([]Question, error)
	// UpdateDraft replaces a question's draft answer with user-edited
	// text. Confidence and retrieval context are left as generated.
	UpdateDraft(ctx context.Context, questionID, draft string) (*Question, error)
}

// Repository is the persistence layer for projects and questions.
type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, orgID, projectID snowflake.ID) (*Project, error)
	ListProjects(ctx context.Context, orgID snowflake.ID) ([]ProjectResponse, error)
	UpdateProjectStatus(ctx context.Context, projectID snowflake.ID, status string) error
	DeleteProject(ctx context.Context, orgID, projectID snowflake.ID) error
	InsertQuestions(ctx context.Context, questions []Question) error
	ListQuestions(ctx context.Context, projectID snowflake.ID) ([]Question, error)
	GetQuestion(ctx context.Context, orgID, questionID snowflake.ID) (*Question, error)
	UpdateQuestionAnswer(ctx context.Context, questionID snowflake.ID, draft string, confidence float64, contextUsed []byte) error
	UpdateQuestionDraft(ctx context.Context, questionID snowflake.ID, draft string) error
}
