package prefs

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trade_terminal/internal/modules/config"
	"trade_terminal/internal/modules/prefs/service"
	"trade_terminal/pkg/db"
)

// Module поднимает локальные настройки в файле (по умолчанию) или в postgres.
func Module() fx.Option {
	return fx.Module("prefs",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (service.Store, error) {
				if cfg.Prefs.Backend != "postgres" {
					log.Info("prefs: file store", zap.String("path", cfg.Prefs.Path))
					return service.NewFileStore(cfg.Prefs.Path)
				}

				ctx := context.Background()
				tx, err := db.Connect(ctx, db.PoolConfig{DSN: cfg.DB})
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						tx.Close()
						return nil
					},
				})
				log.Info("prefs: postgres store")
				return service.NewPgStore(ctx, tx)
			},
		),
	)
}
