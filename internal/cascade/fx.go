package cascade

import "go.uber.org/fx"

var Module = fx.Module("cascade",
	fx.Provide(New),
)
