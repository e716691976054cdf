package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/velocibid/velocibid/internal/project/domain"
)

const insertBatchSize = 100

type repository struct {
	db *gorm.DB
}

// New returns a gorm backed project repository.
func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) CreateProject(ctx context.Context, p *domain.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) GetProject(ctx context.Context, orgID, projectID snowflake.ID) (*domain.Project, error) {
	var p domain.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", projectID, orgID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListProjects(ctx context.Context, orgID snowflake.ID) ([]domain.ProjectResponse, error) {
	var out []domain.ProjectResponse
	err := r.db.WithContext(ctx).
		Table("projects p").
		Select("p.id, p.rfp_name, p.status, p.created_at, COUNT(q.id) AS question_count").
		Joins("LEFT JOIN questions q ON q.project_id = p.id").
		Where("p.org_id = ?", orgID).
		Group("p.id, p.rfp_name, p.status, p.created_at").
		Order("p.created_at DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) UpdateProjectStatus(ctx context.Context, projectID snowflake.ID, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("id = ?", projectID).
		Update("status", status).Error
}

func (r *repository) DeleteProject(ctx context.Context, orgID, projectID snowflake.ID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND org_id = ?", projectID, orgID).
			Delete(&domain.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrProjectNotFound
		}
		return tx.Where("project_id = ?", projectID).
			Delete(&domain.Question{}).Error
	})
}

func (r *repository) InsertQuestions(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(questions, insertBatchSize).Error
}

func (r *repository) ListQuestions(ctx context.Context, projectID snowflake.ID) ([]domain.Question, error) {
	var out []domain.Question
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) GetQuestion(ctx context.Context, orgID, questionID snowflake.ID) (*domain.Question, error) {
	var q domain.Question
	err := r.db.WithContext(ctx).
		Table("questions q").
		Select("q.*").
		Joins("JOIN projects p ON p.id = q.project_id").
		Where("q.id = ? AND p.org_id = ?", questionID, orgID).
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repository) UpdateQuestionAnswer(ctx context.Context, questionID snowflake.ID, draft string, confidence float64, contextUsed []byte) error {
	return r.db.WithContext(ctx).
		Model(&domain.Question{}).
		Where("id = ?", questionID).
		Updates(map[string]any{
			"draft_answer":     draft,
			"confidence_score": confidence,
			"context_used":     contextUsed,
		}).Error
}

func (r *repository) UpdateQuestionDraft(ctx context.Context, questionID snowflake.ID, draft string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Question{}).
		Where("id = ?", questionID).
		Update("draft_answer", draft).Error
}
