package signup

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/velocibid/velocibid/internal/auth/domain"
	orgdomain "github.com/velocibid/velocibid/internal/organization/domain"
	"github.com/velocibid/velocibid/internal/signup/domain"
	"go.uber.org/zap"
)

type service struct {
	log     *zap.Logger
	authsvc authdomain.Service
	orgsvc  orgdomain.Service
}

func NewService(log *zap.Logger, authsvc authdomain.Service, orgsvc orgdomain.Service) domain.Service {
	return &service{
		log:     log.Named("signup.service"),
		authsvc: authsvc,
		orgsvc:  orgsvc,
	}
}

func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}

	orgName := strings.TrimSpace(req.OrgName)
	if orgName == "" {
		orgName = strings.TrimSpace(req.Name)
	}
	if orgName == "" {
		orgName = defaultOrgName(req.Email)
	}

	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	})
	if err != nil {
		return nil, err
	}

	org, err := s.orgsvc.Create(ctx, user.ID, orgdomain.CreateOrganizationRequest{
		Name: orgName,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	orgID, err := snowflake.ParseString(org.ID)
	if err != nil {
		return nil, err
	}
	if err := s.authsvc.SetActiveOrg(ctx, session.SessionID, int64(orgID)); err != nil {
		return nil, err
	}

	s.log.Info("signup completed",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", org.ID),
	)

	return &domain.Result{
		UserID:    user.ID.String(),
		OrgID:     org.ID,
		RawToken:  session.RawToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func defaultOrgName(email string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return name
}
