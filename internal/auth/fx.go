package auth

import (
	"github.com/lgndcraft2/giving-tree/internal/auth/repository"
	"github.com/lgndcraft2/giving-tree/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
