package migration

import (
	"strings"

	"github.com/smallbiznis/orderflow/internal/config"
	"github.com/smallbiznis/orderflow/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn, cfg); err != nil {
			return err
		}
		if cfg.SeedInventory {
			n, err := seed.EnsureInventory(conn)
			if err != nil {
				return err
			}
			log.Info("inventory seeded", zap.Int("products", n))
		}
		return nil
	}),
)

// Migrate runs the SQL migrations on postgres and AutoMigrate elsewhere.
func Migrate(conn *gorm.DB, cfg config.Config) error {
	if strings.EqualFold(cfg.DBType, "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if !cfg.DBAutoMigrate {
		return nil
	}
	return AutoMigrate(conn)
}
