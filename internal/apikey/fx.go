package apikey

import (
	"github.com/velocibid/velocibid/internal/apikey/repository"
	"github.com/velocibid/velocibid/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
