// Package seed bootstraps the default organization for self-hosted
// deployments.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/velocibid/velocibid/internal/organization/domain"
	"gorm.io/gorm"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureDefaultOrg seeds the default organization if none exists.
func EnsureDefaultOrg(db *gorm.DB) error {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	return ensure(db, node.Generate())
}

// EnsureDefaultOrgWithID seeds the default organization under a fixed ID so
// self-hosted installs keep stable references across reinstalls.
func EnsureDefaultOrgWithID(db *gorm.DB, id int64) error {
	return ensure(db, snowflake.ID(id))
}

func ensure(db *gorm.DB, id snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing orgdomain.Organization
		err := tx.Where("slug = ?", defaultOrgSlug).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		return tx.Create(&orgdomain.Organization{
			ID:                 id,
			Name:               defaultOrgName,
			Slug:               defaultOrgSlug,
			SubscriptionStatus: orgdomain.SubscriptionActive,
			CreatedAt:          now,
			UpdatedAt:          now,
		}).Error
	})
}
