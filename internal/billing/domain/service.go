// Package domain contains types for the billing gate.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	EventTypeCheckoutCompleted   = "checkout_completed"
	EventTypeSubscriptionUpdated = "subscription_updated"
	EventTypeSubscriptionDeleted = "subscription_deleted"
)

// SubscriptionEvent is a provider-neutral view of a billing webhook event.
type SubscriptionEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	// OrgID is set for checkout events, carried via the checkout
	// session's client reference. Lifecycle updates are keyed by
	// CustomerID instead.
	OrgID          string
	CustomerID     string
	SubscriptionID string
	Status         string
	OccurredAt     time.Time
}

type Service interface {
	// HandleWebhook verifies, parses, and applies one provider webhook
	// delivery. Ignored event types return ErrEventIgnored.
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error
	// Allowed reports whether the org's subscription permits core
	// operations. Trialing and active subscriptions pass.
	Allowed(ctx context.Context, orgID int64) error
}

// Adapter verifies and parses provider webhook deliveries.
type Adapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*SubscriptionEvent, error)
}

var (
	ErrInvalidSignature       = errors.New("invalid_signature")
	ErrInvalidPayload         = errors.New("invalid_payload")
	ErrInvalidEvent           = errors.New("invalid_event")
	ErrEventIgnored           = errors.New("event_ignored")
	ErrSubscriptionInactive   = errors.New("subscription_inactive")
	ErrWebhookSecretUnset     = errors.New("webhook_secret_unset")
)
