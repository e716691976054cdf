package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

type Service interface {
	// Connect stores or replaces the org's credential for a provider.
	Connect(ctx context.Context, req ConnectRequest) (*Response, error)
	// List returns credential metadata for the org. Responses never carry
	// key material beyond the hint.
	List(ctx context.Context) ([]Response, error)
	// Revoke deletes the org's credential for a provider.
	Revoke(ctx context.Context, provider string) error
	// ActiveKey decrypts and returns the org's credential for immediate
	// use. Callers must not persist or log the result.
	ActiveKey(ctx context.Context, provider string) (string, error)
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]APIKey, error)
	Delete(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider string) error
}

type ConnectRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

type Response struct {
	Provider  string    `json:"provider"`
	KeyHint   string    `json:"key_hint"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProvider     = errors.New("invalid_provider")
	ErrInvalidKeyFormat    = errors.New("invalid_key_format")
	ErrMissingCredential   = errors.New("missing_credential")
)
