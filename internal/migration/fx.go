package migration

import (
	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}

		created, err := seed.EnsureAdmin(conn, cfg.Admin)
		if err != nil {
			return err
		}
		if created {
			log.Info("admin user seeded", zap.String("username", cfg.Admin.Username))
		}
		return nil
	}),
)
