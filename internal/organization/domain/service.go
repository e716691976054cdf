package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER" // Read-only / Limited
)

const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
)

type Service interface {
	// Create provisions an organization with the caller as OWNER and a
	// trialing subscription.
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id string) (*OrganizationResponse, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)
	// MemberRole returns the caller's role in the org, or ErrForbidden
	// when no membership exists.
	MemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error)
	InviteMembers(ctx context.Context, userID snowflake.ID, orgID string, invites []InviteRequest) ([]InviteResponse, error)
	AcceptInvite(ctx context.Context, userID snowflake.ID, email, token string) error

	// SubscriptionStatus returns the org's current billing state.
	SubscriptionStatus(ctx context.Context, orgID snowflake.ID) (string, error)
	// ActivateSubscription records a completed checkout.
	ActivateSubscription(ctx context.Context, orgID snowflake.ID, customerID, subscriptionID string) error
	// UpdateSubscriptionByCustomer applies a webhook status change keyed
	// by the payment provider's customer reference.
	UpdateSubscriptionByCustomer(ctx context.Context, customerID, status string) error
}

type CreateOrganizationRequest struct {
	Name string
}

type InviteRequest struct {
	Email string
	Role  string
}

type InviteResponse struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

type OrganizationResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Slug               string `json:"slug"`
	SubscriptionStatus string `json:"subscription_status"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInviteNotFound      = errors.New("invite_not_found")
	ErrForbidden           = errors.New("forbidden")
)
