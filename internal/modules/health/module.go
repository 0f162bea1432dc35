package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/modules/config"
	"trade_terminal/internal/modules/health/service"
	reconsvc "trade_terminal/internal/modules/reconciler/service"
	sessionsvc "trade_terminal/internal/modules/session/service"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: fmt.Sprintf(":%d", cfg.Service.AdminPort)}
}

func RunHTTP(lc fx.Lifecycle, cfg Config, state *service.State, m *sessionsvc.Manager, b *bus.Bus, src *reconsvc.Store, log *zap.Logger) {
	m.OnState(state.SetSession)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           service.NewRouter(state, src),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			go state.Watch(ctx, b)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Error("admin http stopped", zap.Error(err))
				}
			}()
			log.Info("admin http started", zap.String("addr", cfg.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
		),
		fx.Invoke(RunHTTP),
	)
}
