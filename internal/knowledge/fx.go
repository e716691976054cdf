package knowledge

import (
	"github.com/velocibid/velocibid/internal/knowledge/repository"
	"github.com/velocibid/velocibid/internal/knowledge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("knowledge.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
