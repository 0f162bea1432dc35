package quotes

import (
	"trade_terminal/internal/modules/quotes/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("quotes",
		fx.Provide(
			service.NewStore,
		),
	)
}
