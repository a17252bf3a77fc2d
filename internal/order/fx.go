package order

import (
	"context"

	"github.com/smallbiznis/orderflow/internal/config"
	"github.com/smallbiznis/orderflow/internal/order/repository"
	"github.com/smallbiznis/orderflow/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

// ReconcilerModule runs the republish sweep alongside the intake API.
var ReconcilerModule = fx.Module("order.reconciler",
	fx.Provide(service.ReconcilerConfigFrom),
	fx.Provide(service.NewReconciler),
	fx.Invoke(runReconciler),
)

func runReconciler(lc fx.Lifecycle, cfg config.Config, r *service.Reconciler) {
	if !cfg.Reconciler.Enabled {
		return
	}
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go r.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
