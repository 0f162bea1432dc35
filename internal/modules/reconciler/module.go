package reconciler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
	apisvc "trade_terminal/internal/modules/api/service"
	"trade_terminal/internal/modules/config"
	instrsvc "trade_terminal/internal/modules/instruments/service"
	prefsvc "trade_terminal/internal/modules/prefs/service"
	quotesvc "trade_terminal/internal/modules/quotes/service"
	"trade_terminal/internal/modules/reconciler/service"
	sessionsvc "trade_terminal/internal/modules/session/service"
)

func Module() fx.Option {
	return fx.Module("reconciler",
		fx.Provide(
			func(
				m *sessionsvc.Manager,
				api *apisvc.Client,
				prefs prefsvc.Store,
				quotes *quotesvc.Store,
				instruments *instrsvc.Store,
				b *bus.Bus,
				log *zap.Logger,
			) *service.Store {
				return service.NewStore(m, api, prefs, quotes, instruments, b, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Store, cfg *config.Config, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					cred := models.Credentials{Email: cfg.Auth.Email, Password: cfg.Auth.Password}
					tokens := models.Tokens{Token: cfg.Auth.Token, RefreshToken: cfg.Auth.RefreshToken}
					// без входа терминал всё равно поднимаем: health и повторный вход работают
					if err := s.Start(cred, tokens); err != nil {
						log.Error("sign in at startup failed", zap.Error(err))
					}
					return nil
				},
				OnStop: func(context.Context) error {
					s.Stop()
					return nil
				},
			})
		}),
	)
}
