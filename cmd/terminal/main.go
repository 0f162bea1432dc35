package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/modules/api"
	"trade_terminal/internal/modules/config"
	"trade_terminal/internal/modules/health"
	"trade_terminal/internal/modules/instruments"
	"trade_terminal/internal/modules/notify"
	"trade_terminal/internal/modules/prefs"
	"trade_terminal/internal/modules/quotes"
	"trade_terminal/internal/modules/reconciler"
	"trade_terminal/internal/modules/session"
	"trade_terminal/pkg/logger"
	"trade_terminal/pkg/tracing"
)

func main() {
	fx.New(options()).Run()
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			func(cfg *config.Config) (*zap.Logger, error) {
				logger.SetServiceName(cfg.Service.Name)
				return logger.New(cfg.Log.Level, cfg.Log.Development)
			},
			bus.New,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		config.Module(),
		fx.Invoke(initTracing),
		api.Module(),
		session.Module(),
		prefs.Module(),
		quotes.Module(),
		instruments.Module(),
		reconciler.Module(),
		notify.Module(),
		health.Module(),
	)
}

func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	tracing.SetServiceName(cfg.Service.Name)
	_, closer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	if cfg.Tracing.Enabled {
		log.Info("tracing enabled", zap.String("host", cfg.Tracing.Host), zap.Int("port", cfg.Tracing.Port))
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}
