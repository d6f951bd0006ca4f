package catalog

import (
	"github.com/lgndcraft2/giving-tree/internal/catalog/repository"
	"github.com/lgndcraft2/giving-tree/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
