package project

import (
	"go.uber.org/fx"

	"github.com/velocibid/velocibid/internal/project/repository"
	"github.com/velocibid/velocibid/internal/project/service"
)

var Module = fx.Module("project",
	fx.Provide(
		repository.New,
		service.New,
	),
)
