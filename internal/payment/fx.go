package payment

import (
	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/internal/payment/adapters"
	"github.com/lgndcraft2/giving-tree/internal/payment/adapters/midtrans"
	"github.com/lgndcraft2/giving-tree/internal/payment/adapters/paystack"
	"github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/internal/payment/liveevents"
	"github.com/lgndcraft2/giving-tree/internal/payment/repository"
	paymentservice "github.com/lgndcraft2/giving-tree/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			paystack.NewFactory(),
			midtrans.NewFactory(),
		)
	}),
	fx.Provide(func(registry *adapters.Registry, cfg config.Config, log *zap.Logger) (domain.Gateway, error) {
		return registry.NewGateway(cfg.Payment, log)
	}),
	fx.Provide(liveevents.NewHub),
	fx.Provide(paymentservice.NewService),
)
