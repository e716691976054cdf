package organization

import (
	"github.com/velocibid/velocibid/internal/organization/repository"
	"github.com/velocibid/velocibid/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
