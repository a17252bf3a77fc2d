package consumer

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("consumer",
	fx.Provide(NewPool),
	fx.Invoke(runPool),
)

func runPool(lc fx.Lifecycle, pool *Pool, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   = make(chan error, 1)
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				done <- pool.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case err := <-done:
				return err
			case <-stopCtx.Done():
				log.Warn("consumer pool did not drain before shutdown deadline")
				return nil
			}
		},
	})
}
