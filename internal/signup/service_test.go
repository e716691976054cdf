package signup

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/velocibid/velocibid/internal/auth/domain"
	authrepo "github.com/velocibid/velocibid/internal/auth/repository"
	authservice "github.com/velocibid/velocibid/internal/auth/service"
	orgdomain "github.com/velocibid/velocibid/internal/organization/domain"
	orgrepo "github.com/velocibid/velocibid/internal/organization/repository"
	orgservice "github.com/velocibid/velocibid/internal/organization/service"
	"github.com/velocibid/velocibid/internal/signup/domain"
	dbpkg "github.com/velocibid/velocibid/pkg/db"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, authdomain.Service, orgdomain.Service) {
	t.Helper()

	db, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	err = db.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&orgdomain.OrganizationInvite{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}

	authsvc := authservice.New(zap.NewNop(),
		authrepo.NewUserRepository(db),
		authrepo.NewSessionRepository(db),
		node,
	)
	orgsvc := orgservice.New(orgservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  orgrepo.NewRepository(db),
	})

	return NewService(zap.NewNop(), authsvc, orgsvc), authsvc, orgsvc
}

func TestSignupProvisionsUserOrgAndSession(t *testing.T) {
	svc, authsvc, orgsvc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Signup(ctx, domain.Request{
		Email:    "founder@example.com",
		Password: "strong-password",
		Name:     "Founder",
		OrgName:  "Acme Proposals",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if result.RawToken == "" {
		t.Fatal("expected session token")
	}

	session, err := authsvc.Authenticate(ctx, result.RawToken)
	if err != nil {
		t.Fatalf("expected live session: %v", err)
	}
	if session.ActiveOrgID == nil {
		t.Fatal("expected active org pinned on session")
	}

	orgID, err := snowflake.ParseString(result.OrgID)
	if err != nil {
		t.Fatalf("bad org id: %v", err)
	}
	if *session.ActiveOrgID != int64(orgID) {
		t.Fatalf("expected active org %d, got %d", int64(orgID), *session.ActiveOrgID)
	}

	role, err := orgsvc.MemberRole(ctx, orgID, session.UserID)
	if err != nil {
		t.Fatalf("expected membership: %v", err)
	}
	if role != orgdomain.RoleOwner {
		t.Fatalf("expected OWNER role, got %s", role)
	}

	status, err := orgsvc.SubscriptionStatus(ctx, orgID)
	if err != nil {
		t.Fatalf("expected subscription status: %v", err)
	}
	if status != orgdomain.SubscriptionTrialing {
		t.Fatalf("expected trialing, got %s", status)
	}
}

func TestSignupDefaultsOrgNameFromEmail(t *testing.T) {
	svc, _, orgsvc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Signup(ctx, domain.Request{
		Email:    "solo@example.com",
		Password: "strong-password",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	org, err := orgsvc.GetByID(ctx, result.OrgID)
	if err != nil {
		t.Fatalf("expected organization: %v", err)
	}
	if org.Name != "solo" {
		t.Fatalf("expected org name from email, got %s", org.Name)
	}
}

func TestSignupValidatesRequest(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Signup(context.Background(), domain.Request{Email: "", Password: "x"})
	if err != domain.ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, domain.Request{Email: "dup@example.com", Password: "strong-password"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	_, err = svc.Signup(ctx, domain.Request{Email: "dup@example.com", Password: "strong-password"})
	if err != authdomain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}
