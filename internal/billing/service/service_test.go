package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	billingdomain "github.com/velocibid/velocibid/internal/billing/domain"
	"github.com/velocibid/velocibid/internal/billing/stripe"
	orgdomain "github.com/velocibid/velocibid/internal/organization/domain"
	orgrepo "github.com/velocibid/velocibid/internal/organization/repository"
	orgservice "github.com/velocibid/velocibid/internal/organization/service"
	dbpkg "github.com/velocibid/velocibid/pkg/db"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

func newFixture(t *testing.T) (billingdomain.Service, orgdomain.Service) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&orgdomain.OrganizationInvite{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	orgsvc := orgservice.New(orgservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  orgrepo.NewRepository(db),
	})

	svc := New(Params{
		Log:     zap.NewNop(),
		Adapter: stripe.NewAdapter(testSecret),
		Orgs:    orgsvc,
	})
	return svc, orgsvc
}

func sign(payload []byte) http.Header {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%s.%s", timestamp, string(payload))))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func checkoutPayload(orgID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_checkout",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": %q,
			"customer": "cus_123",
			"subscription": "sub_456"
		}}
	}`, orgID))
}

func subscriptionPayload(eventType, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_sub",
		"type": %q,
		"data": {"object": {"id": "sub_456", "customer": "cus_123", "status": %q}}
	}`, eventType, status))
}

func TestWebhookActivatesSubscription(t *testing.T) {
	svc, orgsvc := newFixture(t)
	ctx := context.Background()

	org, err := orgsvc.Create(ctx, 100, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	payload := checkoutPayload(org.ID)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))

	orgID, _ := snowflake.ParseString(org.ID)
	status, err := orgsvc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.SubscriptionActive, status)
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	svc, orgsvc := newFixture(t)
	ctx := context.Background()

	org, err := orgsvc.Create(ctx, 100, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	payload := checkoutPayload(org.ID)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))

	payload = subscriptionPayload("customer.subscription.updated", "past_due")
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))

	orgID, _ := snowflake.ParseString(org.ID)
	status, err := orgsvc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.SubscriptionPastDue, status)

	payload = subscriptionPayload("customer.subscription.deleted", "canceled")
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))

	status, err = orgsvc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.SubscriptionCanceled, status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, orgsvc := newFixture(t)
	ctx := context.Background()

	org, err := orgsvc.Create(ctx, 100, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	payload := checkoutPayload(org.ID)
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1,v1=deadbeef")

	err = svc.HandleWebhook(ctx, payload, headers)
	assert.ErrorIs(t, err, billingdomain.ErrInvalidSignature)

	// The org stays on trial.
	orgID, _ := snowflake.ParseString(org.ID)
	status, err := orgsvc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.SubscriptionTrialing, status)
}

func TestWebhookIgnoredEvent(t *testing.T) {
	svc, _ := newFixture(t)

	payload := []byte(`{"id": "evt_x", "type": "invoice.paid", "data": {"object": {}}}`)
	err := svc.HandleWebhook(context.Background(), payload, sign(payload))
	assert.ErrorIs(t, err, billingdomain.ErrEventIgnored)
}

func TestWebhookUnknownStatusMapsToInactive(t *testing.T) {
	svc, orgsvc := newFixture(t)
	ctx := context.Background()

	org, err := orgsvc.Create(ctx, 100, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	payload := checkoutPayload(org.ID)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))

	payload = subscriptionPayload("customer.subscription.updated", "incomplete_expired")
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))

	orgID, _ := snowflake.ParseString(org.ID)
	status, err := orgsvc.SubscriptionStatus(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.SubscriptionInactive, status)
}

func TestAllowedGate(t *testing.T) {
	svc, orgsvc := newFixture(t)
	ctx := context.Background()

	org, err := orgsvc.Create(ctx, 100, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)

	// Trialing orgs pass.
	assert.NoError(t, svc.Allowed(ctx, int64(orgID)))

	payload := checkoutPayload(org.ID)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))
	assert.NoError(t, svc.Allowed(ctx, int64(orgID)))

	payload = subscriptionPayload("customer.subscription.deleted", "canceled")
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload)))
	assert.ErrorIs(t, svc.Allowed(ctx, int64(orgID)), billingdomain.ErrSubscriptionInactive)
}
