package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderflow/internal/billing"
	"github.com/smallbiznis/orderflow/internal/bus"
	"github.com/smallbiznis/orderflow/internal/clock"
	"github.com/smallbiznis/orderflow/internal/config"
	"github.com/smallbiznis/orderflow/internal/inventory"
	"github.com/smallbiznis/orderflow/internal/migration"
	"github.com/smallbiznis/orderflow/internal/notification"
	"github.com/smallbiznis/orderflow/internal/observability"
	"github.com/smallbiznis/orderflow/internal/order"
	"github.com/smallbiznis/orderflow/internal/providers"
	"github.com/smallbiznis/orderflow/internal/queue"
	"github.com/smallbiznis/orderflow/internal/ratelimit"
	"github.com/smallbiznis/orderflow/internal/server"
	"github.com/smallbiznis/orderflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		queue.Module,
		bus.Module,
		ratelimit.Module,
		order.Module,
		order.ReconcilerModule,

		// Read side of the consumers, served by the inspection routes.
		providers.Module,
		inventory.Module,
		notification.Module,
		billing.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
