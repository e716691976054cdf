package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Role      string
	CreatedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	FindByStripeCustomer(ctx context.Context, customerID string) (*Organization, error)
	UpdateSubscription(ctx context.Context, orgID snowflake.ID, status, customerID, subscriptionID string) error
	AddMember(ctx context.Context, member OrganizationMember) error
	MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	CreateInvites(ctx context.Context, invites []OrganizationInvite) error
	GetInviteByToken(ctx context.Context, token string) (*OrganizationInvite, error)
	UpdateInviteStatus(ctx context.Context, inviteID snowflake.ID, status string) error
}
