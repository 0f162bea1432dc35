package session

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	apisvc "trade_terminal/internal/modules/api/service"
	"trade_terminal/internal/modules/config"
	"trade_terminal/internal/modules/session/service"
)

// Module поднимает менеджер стриминговой сессии. Подключается Reconciler-ом при входе.
func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(
			func(cfg *config.Config, api *apisvc.Client, log *zap.Logger) *service.Manager {
				return service.NewManager(cfg, api, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, m *service.Manager) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return m.Stop(ctx)
				},
			})
		}),
	)
}
