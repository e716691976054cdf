package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey stores an organization's encrypted provider credential. The
// plaintext key never persists; EncryptedKey holds the vault envelope and
// KeyHint keeps only the last four characters for display.
type APIKey struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	OrgID        snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:ux_api_keys_org_provider,priority:1"`
	Provider     string       `gorm:"type:text;not null;uniqueIndex:ux_api_keys_org_provider,priority:2"`
	EncryptedKey string       `gorm:"column:encrypted_key;type:text;not null"`
	KeyHint      string       `gorm:"column:key_hint;type:text;not null"`
	IsActive     bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time    `gorm:"not null"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }
