package migration

import (
	"context"

	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, seeder *seed.Seeder, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		log.Info("database schema up to date", zap.String("dialect", conn.Dialector.Name()))

		if !cfg.Bootstrap.SampleData {
			return nil
		}
		_, err := seeder.Run(context.Background())
		return err
	}),
)
