package bus

import "go.uber.org/fx"

var Module = fx.Module("bus",
	fx.Provide(
		New,
		func(b *Bus) Publisher { return b },
	),
)
