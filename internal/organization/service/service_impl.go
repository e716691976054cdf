package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/velocibid/velocibid/internal/organization/domain"
	pkgdb "github.com/velocibid/velocibid/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:                 orgID,
		Name:               name,
		Slug:               slug.Make(name),
		SubscriptionStatus: domain.SubscriptionTrialing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.createWithMember(ctx, org, userID, now)
	if pkgdb.IsDuplicateKeyErr(err) {
		// Slug collision with another tenant; retry once with the org ID
		// as a disambiguating suffix.
		org.Slug = fmt.Sprintf("%s-%s", org.Slug, orgID.String())
		err = s.createWithMember(ctx, org, userID, now)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", orgID.String()),
		zap.String("slug", org.Slug),
	)

	return &domain.OrganizationResponse{
		ID:                 orgID.String(),
		Name:               name,
		Slug:               org.Slug,
		SubscriptionStatus: org.SubscriptionStatus,
	}, nil
}

func (s *service) createWithMember(ctx context.Context, org domain.Organization, userID snowflake.ID, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return repo.AddMember(ctx, domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		})
	})
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	orgID, err := parseOrgID(id)
	if err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrInvalidOrganization
	}

	return &domain.OrganizationResponse{
		ID:                 org.ID.String(),
		Name:               org.Name,
		Slug:               org.Slug,
		SubscriptionStatus: org.SubscriptionStatus,
	}, nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *service) MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	if orgID == 0 {
		return "", domain.ErrInvalidOrganization
	}
	if userID == 0 {
		return "", domain.ErrInvalidUser
	}

	role, err := s.repo.MemberRole(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", domain.ErrForbidden
	}
	return role, nil
}

func (s *service) InviteMembers(ctx context.Context, userID snowflake.ID, orgID string, invites []domain.InviteRequest) ([]domain.InviteResponse, error) {
	id, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	role, err := s.MemberRole(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleOwner && role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	now := time.Now().UTC()
	rows := make([]domain.OrganizationInvite, 0, len(invites))
	resp := make([]domain.InviteResponse, 0, len(invites))
	for _, invite := range invites {
		email := strings.ToLower(strings.TrimSpace(invite.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, domain.ErrInvalidEmail
		}
		inviteRole := strings.ToUpper(strings.TrimSpace(invite.Role))
		if inviteRole != domain.RoleAdmin && inviteRole != domain.RoleMember {
			return nil, domain.ErrInvalidRole
		}

		token := uuid.NewString()
		rows = append(rows, domain.OrganizationInvite{
			ID:        s.genID.Generate(),
			OrgID:     id,
			Email:     email,
			Role:      inviteRole,
			Token:     token,
			Status:    domain.InviteStatusPending,
			InvitedBy: userID,
			CreatedAt: now,
		})
		resp = append(resp, domain.InviteResponse{Email: email, Role: inviteRole, Token: token})
	}
	if len(rows) == 0 {
		return nil, domain.ErrInvalidEmail
	}

	if err := s.repo.CreateInvites(ctx, rows); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *service) AcceptInvite(ctx context.Context, userID snowflake.ID, email, token string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrInviteNotFound
	}

	invite, err := s.repo.GetInviteByToken(ctx, token)
	if err != nil {
		return err
	}
	if invite == nil || invite.Status != domain.InviteStatusPending {
		return domain.ErrInviteNotFound
	}
	if !strings.EqualFold(invite.Email, strings.TrimSpace(email)) {
		return domain.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		err := repo.AddMember(ctx, domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invite.OrgID,
			UserID:    userID,
			Role:      invite.Role,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil && !pkgdb.IsDuplicateKeyErr(err) {
			return err
		}
		return repo.UpdateInviteStatus(ctx, invite.ID, domain.InviteStatusAccepted)
	})
}

func (s *service) SubscriptionStatus(ctx context.Context, orgID snowflake.ID) (string, error) {
	if orgID == 0 {
		return "", domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return "", err
	}
	if org == nil {
		return "", domain.ErrInvalidOrganization
	}
	return org.SubscriptionStatus, nil
}

func (s *service) ActivateSubscription(ctx context.Context, orgID snowflake.ID, customerID, subscriptionID string) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org == nil {
		return domain.ErrInvalidOrganization
	}

	err = s.repo.UpdateSubscription(ctx, orgID, domain.SubscriptionActive, customerID, subscriptionID)
	if err != nil {
		return err
	}

	s.log.Info("subscription activated", zap.String("org_id", orgID.String()))
	return nil
}

func (s *service) UpdateSubscriptionByCustomer(ctx context.Context, customerID, status string) error {
	if !validSubscriptionStatus(status) {
		return domain.ErrInvalidStatus
	}

	org, err := s.repo.FindByStripeCustomer(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return err
	}
	if org == nil {
		return domain.ErrInvalidOrganization
	}

	if err := s.repo.UpdateSubscription(ctx, org.ID, status, "", ""); err != nil {
		return err
	}

	s.log.Info("subscription status updated",
		zap.String("org_id", org.ID.String()),
		zap.String("status", status),
	)
	return nil
}

func validSubscriptionStatus(status string) bool {
	switch status {
	case domain.SubscriptionTrialing,
		domain.SubscriptionActive,
		domain.SubscriptionInactive,
		domain.SubscriptionCanceled,
		domain.SubscriptionPastDue:
		return true
	}
	return false
}

func parseOrgID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, domain.ErrInvalidOrganization
	}
	return id, nil
}
