package notify

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/modules/config"
	"trade_terminal/internal/modules/notify/service"
	reconsvc "trade_terminal/internal/modules/reconciler/service"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			// если TELEGRAM_* нет: пишем в лог
			func(cfg *config.Config, src *reconsvc.Store, log *zap.Logger) service.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					tg, err := service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, src, log)
					if err == nil {
						return tg
					}
					log.Warn("telegram unavailable, falling back to log", zap.Error(err))
				}
				return service.NewLog(log)
			},
			func(b *bus.Bus, n service.Notifier, log *zap.Logger) *service.Forwarder {
				return service.NewForwarder(b, n, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, f *service.Forwarder, n service.Notifier) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					if tg, ok := n.(*service.Telegram); ok {
						tg.Start(ctx)
					}
					go f.Run(ctx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					if tg, ok := n.(*service.Telegram); ok {
						tg.Stop()
					}
					return nil
				},
			})
		}),
	)
}
