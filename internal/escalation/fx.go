package escalation

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("escalation",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(RegisterSweeper),
)

func RegisterSweeper(lc fx.Lifecycle, cfg Config, sweeper *Sweeper) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sweeper.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
