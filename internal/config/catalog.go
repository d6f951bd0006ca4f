package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CatalogRules bounds how a charity may be shaped by the catalog API.
type CatalogRules struct {
	MinWishes int `mapstructure:"minWishes"`
	MaxWishes int `mapstructure:"maxWishes"`
}

func DefaultCatalogRules() CatalogRules {
	return CatalogRules{MinWishes: 3, MaxWishes: 5}
}

type CatalogRulesHolder struct {
	current atomic.Value // holds CatalogRules
}

// NewStaticCatalogRules returns a holder that never reloads.
func NewStaticCatalogRules(rules CatalogRules) *CatalogRulesHolder {
	holder := &CatalogRulesHolder{}
	holder.current.Store(rules)
	return holder
}

func NewCatalogRulesHolder(cfg Config, log *zap.Logger) (*CatalogRulesHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.catalog")

	v := viper.New()
	if cfg.CatalogRulesFile != "" {
		v.SetConfigFile(cfg.CatalogRulesFile)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/giving-tree")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GIVINGTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCatalogRules()
	v.SetDefault("catalog.minWishes", defaults.MinWishes)
	v.SetDefault("catalog.maxWishes", defaults.MaxWishes)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfg.CatalogRulesFile != "" {
			return nil, err
		}
		watch = false
	}

	var rules CatalogRules
	if err := v.UnmarshalKey("catalog", &rules); err != nil {
		return nil, err
	}
	if err := validateCatalogRules(rules); err != nil {
		return nil, err
	}

	holder := NewStaticCatalogRules(rules)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CatalogRules
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Warn("catalog rules reload failed", zap.Error(err))
			return
		}
		if err := validateCatalogRules(updated); err != nil {
			log.Warn("invalid catalog rules ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("catalog rules reloaded",
			zap.String("file", e.Name),
			zap.Int("min_wishes", updated.MinWishes),
			zap.Int("max_wishes", updated.MaxWishes),
		)
	})

	return holder, nil
}

func (h *CatalogRulesHolder) Get() CatalogRules {
	return h.current.Load().(CatalogRules)
}

func validateCatalogRules(rules CatalogRules) error {
	if rules.MinWishes < 1 {
		return errors.New("catalog.minWishes must be at least 1")
	}
	if rules.MaxWishes < rules.MinWishes {
		return errors.New("catalog.maxWishes cannot be lower than catalog.minWishes")
	}
	return nil
}
