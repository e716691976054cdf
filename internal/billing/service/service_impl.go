package service

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/velocibid/velocibid/internal/billing/domain"
	orgdomain "github.com/velocibid/velocibid/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Adapter billingdomain.Adapter
	Orgs    orgdomain.Service
}

type Service struct {
	log     *zap.Logger
	adapter billingdomain.Adapter
	orgs    orgdomain.Service
}

func New(p Params) billingdomain.Service {
	return &Service{
		log:     p.Log.Named("billing.service"),
		adapter: p.Adapter,
		orgs:    p.Orgs,
	}
}

func (s *Service) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.Error(err))
		return err
	}

	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		return err
	}

	switch event.Type {
	case billingdomain.EventTypeCheckoutCompleted:
		err = s.applyCheckout(ctx, event)
	case billingdomain.EventTypeSubscriptionUpdated:
		err = s.orgs.UpdateSubscriptionByCustomer(ctx, event.CustomerID, mapStatus(event.Status))
	case billingdomain.EventTypeSubscriptionDeleted:
		err = s.orgs.UpdateSubscriptionByCustomer(ctx, event.CustomerID, orgdomain.SubscriptionCanceled)
	default:
		return billingdomain.ErrEventIgnored
	}
	if err != nil {
		return err
	}

	s.log.Info("webhook applied",
		zap.String("provider", event.Provider),
		zap.String("event_id", event.ProviderEventID),
		zap.String("event_type", event.Type),
	)
	return nil
}

func (s *Service) Allowed(ctx context.Context, orgID int64) error {
	status, err := s.orgs.SubscriptionStatus(ctx, snowflake.ID(orgID))
	if err != nil {
		return err
	}
	switch status {
	case orgdomain.SubscriptionTrialing, orgdomain.SubscriptionActive:
		return nil
	}
	return billingdomain.ErrSubscriptionInactive
}

func (s *Service) applyCheckout(ctx context.Context, event *billingdomain.SubscriptionEvent) error {
	orgID, err := snowflake.ParseString(event.OrgID)
	if err != nil {
		return billingdomain.ErrInvalidEvent
	}
	return s.orgs.ActivateSubscription(ctx, orgID, event.CustomerID, event.SubscriptionID)
}

// mapStatus folds provider statuses onto the organization model's set.
func mapStatus(providerStatus string) string {
	switch providerStatus {
	case "trialing":
		return orgdomain.SubscriptionTrialing
	case "active":
		return orgdomain.SubscriptionActive
	case "past_due":
		return orgdomain.SubscriptionPastDue
	case "canceled":
		return orgdomain.SubscriptionCanceled
	}
	return orgdomain.SubscriptionInactive
}
