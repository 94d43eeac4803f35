package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tradeway/internal/cache"
	"github.com/smallbiznis/tradeway/internal/cart"
	"github.com/smallbiznis/tradeway/internal/catalog"
	"github.com/smallbiznis/tradeway/internal/client"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/config"
	"github.com/smallbiznis/tradeway/internal/fanout"
	"github.com/smallbiznis/tradeway/internal/inventory"
	"github.com/smallbiznis/tradeway/internal/lock"
	"github.com/smallbiznis/tradeway/internal/migration"
	"github.com/smallbiznis/tradeway/internal/notification"
	"github.com/smallbiznis/tradeway/internal/observability"
	"github.com/smallbiznis/tradeway/internal/order"
	"github.com/smallbiznis/tradeway/internal/payment"
	"github.com/smallbiznis/tradeway/internal/points"
	"github.com/smallbiznis/tradeway/internal/pricing"
	"github.com/smallbiznis/tradeway/internal/ratelimit"
	"github.com/smallbiznis/tradeway/internal/server"
	"github.com/smallbiznis/tradeway/internal/tierpricing"
	"github.com/smallbiznis/tradeway/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		cache.Module,

		catalog.Module,
		pricing.Module,
		tierpricing.Module,
		inventory.Module,
		points.Module,
		client.Module,
		cart.Module,
		order.Module,
		fanout.Module,
		notification.Module,
		payment.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
