package ledger

import (
	"github.com/lgndcraft2/giving-tree/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
