package api

import (
	"context"

	"go.uber.org/fx"

	"trade_terminal/internal/modules/api/service"
)

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(service.NewClient),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return c.Close()
				},
			})
		}),
	)
}
