package billing

import (
	billingdomain "github.com/velocibid/velocibid/internal/billing/domain"
	"github.com/velocibid/velocibid/internal/billing/service"
	"github.com/velocibid/velocibid/internal/billing/stripe"
	"github.com/velocibid/velocibid/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(newAdapter),
	fx.Provide(service.New),
)

func newAdapter(cfg config.Config) billingdomain.Adapter {
	return stripe.NewAdapter(cfg.StripeWebhookSecret)
}
