package auth

import (
	"github.com/velocibid/velocibid/internal/auth/repository"
	"github.com/velocibid/velocibid/internal/auth/service"
	"github.com/velocibid/velocibid/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewSessionRepository),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
