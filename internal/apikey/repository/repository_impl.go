package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"encrypted_key", "key_hint", "is_active", "updated_at",
		}),
	}).Create(key).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider string) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := db.WithContext(ctx).
		Where("org_id = ? AND provider = ?", orgID, provider).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("provider ASC").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider string) error {
	return db.WithContext(ctx).
		Where("org_id = ? AND provider = ?", orgID, provider).
		Delete(&apikeydomain.APIKey{}).Error
}
