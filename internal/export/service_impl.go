package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	orgdomain "github.com/velocibid/velocibid/internal/organization/domain"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Export is a rendered artifact plus the filename to serve it under.
type Export struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Service assembles a project's questions and answers into a deliverable.
type Service interface {
	ExportProject(ctx context.Context, projectID string) (*Export, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Projects projectdomain.Service
	Orgs     orgdomain.Service
	Renderer Renderer
}

type service struct {
	log      *zap.Logger
	projects projectdomain.Service
	orgs     orgdomain.Service
	renderer Renderer
}

func New(p Params) Service {
	return &service{
		log:      p.Log.Named("export.service"),
		projects: p.Projects,
		orgs:     p.Orgs,
		renderer: p.Renderer,
	}
}

func (s *service) ExportProject(ctx context.Context, projectID string) (*Export, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != projectdomain.StatusReady {
		return nil, projectdomain.ErrProjectNotReady
	}

	questions, err := s.projects.ListQuestions(ctx, projectID)
	if err != nil {
		return nil, err
	}

	orgName := s.orgName(ctx, project.OrgID)

	entries := make([]Entry, 0, len(questions))
	for _, q := range questions {
		entries = append(entries, Entry{
			Question:   q.QuestionText,
			Answer:     q.DraftAnswer,
			Confidence: q.ConfidenceScore,
		})
	}

	body, err := s.renderer.Render(ctx, Document{
		RFPName:     project.RFPName,
		OrgName:     orgName,
		GeneratedAt: time.Now().UTC(),
		Entries:     entries,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("project exported",
		zap.String("org_id", project.OrgID.String()),
		zap.String("project_id", project.ID.String()),
		zap.Int("entries", len(entries)),
	)

	return &Export{
		Filename:    exportFilename(project.RFPName),
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func (s *service) orgName(ctx context.Context, orgID snowflake.ID) string {
	org, err := s.orgs.GetByID(ctx, orgID.String())
	if err != nil || org == nil {
		return "Velocibid"
	}
	return org.Name
}

func exportFilename(rfpName string) string {
	base := slug.Make(strings.TrimSpace(rfpName))
	if base == "" {
		base = "rfp-response"
	}
	return fmt.Sprintf("%s-response.pdf", base)
}
