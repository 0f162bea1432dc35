package instruments

import (
	"trade_terminal/internal/modules/instruments/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("instruments",
		fx.Provide(
			service.NewStore,
		),
	)
}
