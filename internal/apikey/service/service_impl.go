package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	"github.com/velocibid/velocibid/internal/orgcontext"
	"github.com/velocibid/velocibid/internal/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const keyHintLength = 4

var supportedProviders = map[string]struct{}{
	apikeydomain.ProviderOpenAI:    {},
	apikeydomain.ProviderAnthropic: {},
	apikeydomain.ProviderGoogle:    {},
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  apikeydomain.Repository
	Vault *vault.Vault
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  apikeydomain.Repository
	genID *snowflake.Node
	vault *vault.Vault
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		vault: p.Vault,
	}
}

func (s *Service) Connect(ctx context.Context, req apikeydomain.ConnectRequest) (*apikeydomain.Response, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := normalizeProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	plaintext := strings.TrimSpace(req.APIKey)
	if err := validateKeyFormat(provider, plaintext); err != nil {
		return nil, err
	}

	encrypted, err := s.vault.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &apikeydomain.APIKey{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Provider:     provider,
		EncryptedKey: encrypted,
		KeyHint:      keyHint(plaintext),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Upsert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.log.Info("credential connected",
		zap.String("org_id", orgID.String()),
		zap.String("provider", provider),
	)

	resp := toResponse(key)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.Response, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Revoke(ctx context.Context, provider string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}

	normalized, err := normalizeProvider(provider)
	if err != nil {
		return err
	}

	existing, err := s.repo.Find(ctx, s.db, orgID, normalized)
	if err != nil {
		return err
	}
	if existing == nil {
		return apikeydomain.ErrMissingCredential
	}

	if err := s.repo.Delete(ctx, s.db, orgID, normalized); err != nil {
		return err
	}

	s.log.Info("credential revoked",
		zap.String("org_id", orgID.String()),
		zap.String("provider", normalized),
	)
	return nil
}

func (s *Service) ActiveKey(ctx context.Context, provider string) (string, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return "", err
	}

	normalized, err := normalizeProvider(provider)
	if err != nil {
		return "", err
	}

	key, err := s.repo.Find(ctx, s.db, orgID, normalized)
	if err != nil {
		return "", err
	}
	if key == nil || !key.IsActive {
		return "", apikeydomain.ErrMissingCredential
	}

	plaintext, err := s.vault.Decrypt(key.EncryptedKey)
	if err != nil {
		return "", err
	}
	return plaintext, nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, apikeydomain.ErrInvalidOrganization
	}
	return orgID, nil
}

func normalizeProvider(provider string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	if _, ok := supportedProviders[normalized]; !ok {
		return "", apikeydomain.ErrInvalidProvider
	}
	return normalized, nil
}

// validateKeyFormat rejects obviously wrong credentials before they are
// encrypted. OpenAI and Anthropic keys carry the sk- prefix; Google keys do
// not follow a fixed shape.
func validateKeyFormat(provider, key string) error {
	if key == "" {
		return apikeydomain.ErrInvalidKeyFormat
	}
	if provider == apikeydomain.ProviderGoogle {
		return nil
	}
	if !strings.HasPrefix(key, "sk-") {
		return apikeydomain.ErrInvalidKeyFormat
	}
	return nil
}

func keyHint(key string) string {
	if len(key) <= keyHintLength {
		return key
	}
	return key[len(key)-keyHintLength:]
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		Provider:  key.Provider,
		KeyHint:   key.KeyHint,
		IsActive:  key.IsActive,
		UpdatedAt: key.UpdatedAt,
	}
}
