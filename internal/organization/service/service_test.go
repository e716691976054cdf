package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velocibid/velocibid/internal/organization/domain"
	"github.com/velocibid/velocibid/internal/organization/repository"
	"github.com/velocibid/velocibid/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&domain.Organization{},
		&domain.OrganizationMember{},
		&domain.OrganizationInvite{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.NewRepository(gdb),
	})
	return svc, gdb
}

func TestCreateProvisionsOwnerOnTrial(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme Bidding Co"})
	require.NoError(t, err)
	assert.Equal(t, "acme-bidding-co", resp.Slug)
	assert.Equal(t, domain.SubscriptionTrialing, resp.SubscriptionStatus)

	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	role, err := svc.MemberRole(ctx, orgID, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, role)
}

func TestCreateDisambiguatesSlugCollision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, 101, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, "acme", first.Slug)
	assert.NotEqual(t, first.Slug, second.Slug)
	assert.Contains(t, second.Slug, "acme-")
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), 0, domain.CreateOrganizationRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = svc.Create(context.Background(), 1, domain.CreateOrganizationRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestListOrganizationsByUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "First"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Second"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 200, domain.CreateOrganizationRequest{Name: "Other User"})
	require.NoError(t, err)

	orgs, err := svc.ListOrganizationsByUser(ctx, 100)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	for _, org := range orgs {
		assert.Equal(t, domain.RoleOwner, org.Role)
	}
}

func TestMemberRoleForbiddenForNonMember(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(resp.ID)

	_, err = svc.MemberRole(ctx, orgID, 999)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestInviteAndAcceptFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(resp.ID)

	invites, err := svc.InviteMembers(ctx, 100, resp.ID, []domain.InviteRequest{
		{Email: "New.Member@Example.com", Role: "member"},
	})
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, "new.member@example.com", invites[0].Email)
	assert.Equal(t, domain.RoleMember, invites[0].Role)
	require.NotEmpty(t, invites[0].Token)

	require.NoError(t, svc.AcceptInvite(ctx, 200, "new.member@example.com", invites[0].Token))

	role, err := svc.MemberRole(ctx, orgID, 200)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, role)

	// Accepted invites cannot be replayed.
	err = svc.AcceptInvite(ctx, 300, "new.member@example.com", invites[0].Token)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestInviteRequiresAdminRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	invites, err := svc.InviteMembers(ctx, 100, resp.ID, []domain.InviteRequest{
		{Email: "member@example.com", Role: "MEMBER"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AcceptInvite(ctx, 200, "member@example.com", invites[0].Token))

	_, err = svc.InviteMembers(ctx, 200, resp.ID, []domain.InviteRequest{
		{Email: "another@example.com", Role: "MEMBER"},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestInviteValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.InviteMembers(ctx, 100, resp.ID, []domain.InviteRequest{
		{Email: "not-an-email", Role: "MEMBER"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.InviteMembers(ctx, 100, resp.ID, []domain.InviteRequest{
		{Email: "a@example.com", Role: "OWNER"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestAcceptInviteEmailMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	invites, err := svc.InviteMembers(ctx, 100, resp.ID, []domain.InviteRequest{
		{Email: "invited@example.com", Role: "MEMBER"},
	})
	require.NoError(t, err)

	err = svc.AcceptInvite(ctx, 200, "someone.else@example.com", invites[0].Token)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSubscriptionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, 100, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(resp.ID)

	status, err := svc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTrialing, status)

	require.NoError(t, svc.ActivateSubscription(ctx, orgID, "cus_123", "sub_456"))

	status, err = svc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, status)

	require.NoError(t, svc.UpdateSubscriptionByCustomer(ctx, "cus_123", domain.SubscriptionPastDue))

	status, err = svc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionPastDue, status)
}

func TestUpdateSubscriptionByCustomerValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.UpdateSubscriptionByCustomer(ctx, "cus_unknown", domain.SubscriptionActive)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	err = svc.UpdateSubscriptionByCustomer(ctx, "cus_123", "super_premium")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
