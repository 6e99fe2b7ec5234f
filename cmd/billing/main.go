package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/omniboxhq/omnibox/internal/clock"
	"github.com/omniboxhq/omnibox/internal/config"
	"github.com/omniboxhq/omnibox/internal/migration"
	"github.com/omniboxhq/omnibox/internal/observability"
	"github.com/omniboxhq/omnibox/internal/rating"
	"github.com/omniboxhq/omnibox/internal/scheduler"
	"github.com/omniboxhq/omnibox/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		migration.Module,
		rating.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
