package adapters

import (
	"strings"

	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"go.uber.org/zap"
)

const DefaultProvider = "paystack"

type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]domain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := normalize(factory.Provider())
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(provider)]
	return ok
}

// NewGateway builds the adapter named by cfg.Gateway, defaulting to Paystack.
func (r *Registry) NewGateway(cfg config.PaymentConfig, log *zap.Logger) (domain.Gateway, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider := normalize(cfg.Gateway)
	if provider == "" {
		provider = DefaultProvider
	}
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewGateway(cfg, log)
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
