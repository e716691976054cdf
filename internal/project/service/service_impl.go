// Package service implements project creation and question extraction.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	"github.com/velocibid/velocibid/internal/config"
	"github.com/velocibid/velocibid/internal/extractor"
	"github.com/velocibid/velocibid/internal/llm"
	"github.com/velocibid/velocibid/internal/orgcontext"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        projectdomain.Repository
	Retrieval   *config.RetrievalConfigHolder
	Extractor   *extractor.Extractor
	LLM         llm.Factory
	Credentials apikeydomain.Service
}

type service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	repo        projectdomain.Repository
	retrieval   *config.RetrievalConfigHolder
	extractor   *extractor.Extractor
	llm         llm.Factory
	credentials apikeydomain.Service
}

func New(p Params) projectdomain.Service {
	return &service{
		log:         p.Log.Named("project.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		retrieval:   p.Retrieval,
		extractor:   p.Extractor,
		llm:         p.LLM,
		credentials: p.Credentials,
	}
}

func (s *service) CreateFromUpload(ctx context.Context, req projectdomain.CreateRequest) (*projectdomain.Project, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.RFPName)
	if name == "" {
		name = strings.TrimSpace(req.Filename)
	}
	if name == "" {
		return nil, projectdomain.ErrInvalidName
	}
	if len(req.Data) == 0 {
		return nil, projectdomain.ErrEmptyDocument
	}

	now := time.Now().UTC()
	project := &projectdomain.Project{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		UserID:         req.UserID,
		RFPName:        name,
		SourceFilename: req.Filename,
		Status:         projectdomain.StatusProcessing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	questions, err := s.process(ctx, project, req)
	if err != nil {
		if updErr := s.repo.UpdateProjectStatus(ctx, project.ID, projectdomain.StatusFailed); updErr != nil {
			s.log.Error("failed to mark project failed",
				zap.String("project_id", project.ID.String()),
				zap.Error(updErr),
			)
		}
		project.Status = projectdomain.StatusFailed
		return nil, err
	}

	if err := s.repo.UpdateProjectStatus(ctx, project.ID, projectdomain.StatusReady); err != nil {
		return nil, err
	}
	project.Status = projectdomain.StatusReady

	s.log.Info("project created",
		zap.String("org_id", orgID.String()),
		zap.String("project_id", project.ID.String()),
		zap.Int("question_count", len(questions)),
	)
	return project, nil
}

// process runs the extraction pipeline for a freshly created project. Any
// error here leaves the project in StatusFailed.
func (s *service) process(ctx context.Context, project *projectdomain.Project, req projectdomain.CreateRequest) ([]projectdomain.Question, error) {
	text, err := s.extractor.ExtractText(ctx, req.Data, req.ContentType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, projectdomain.ErrEmptyDocument
	}

	apiKey, err := s.credentials.ActiveKey(ctx, apikeydomain.ProviderOpenAI)
	if err != nil {
		return nil, err
	}
	client := s.llm.NewClient(apiKey)

	extracted, err := s.extractQuestions(ctx, client, text)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	questions := make([]projectdomain.Question, 0, len(extracted))
	for _, q := range extracted {
		questions = append(questions, projectdomain.Question{
			ID:           s.genID.Generate(),
			ProjectID:    project.ID,
			QuestionText: q,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := s.repo.InsertQuestions(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *service) Get(ctx context.Context, projectID string) (*projectdomain.Project, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(projectID)
	if err != nil {
		return nil, projectdomain.ErrProjectNotFound
	}
	return s.repo.GetProject(ctx, orgID, id)
}

func (s *service) List(ctx context.Context) ([]projectdomain.ProjectResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProjects(ctx, orgID)
}

func (s *service) Delete(ctx context.Context, projectID string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(projectID)
	if err != nil {
		return projectdomain.ErrProjectNotFound
	}
	if err := s.repo.DeleteProject(ctx, orgID, id); err != nil {
		return err
	}
	s.log.Info("project deleted",
		zap.String("org_id", orgID.String()),
		zap.String("project_id", id.String()),
	)
	return nil
}

func (s *service) ListQuestions(ctx context.Context, projectID string) ([]projectdomain.Question, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(projectID)
	if err != nil {
		return nil, projectdomain.ErrProjectNotFound
	}
	// The project must belong to the caller's org.
	if _, err := s.repo.GetProject(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.repo.ListQuestions(ctx, id)
}

func (s *service) UpdateDraft(ctx context.Context, questionID, draft string) (*projectdomain.Question, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(draft) == "" {
		return nil, projectdomain.ErrEmptyDraft
	}
	id, err := parseID(questionID)
	if err != nil {
		return nil, projectdomain.ErrQuestionNotFound
	}
	// Org scoped lookup before the write.
	if _, err := s.repo.GetQuestion(ctx, orgID, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateQuestionDraft(ctx, id, draft); err != nil {
		return nil, err
	}
	return s.repo.GetQuestion(ctx, orgID, id)
}

func (s *service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, projectdomain.ErrInvalidOrganization
	}
	return orgID, nil
}

func parseID(s string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(s))
}
