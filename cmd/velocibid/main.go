package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/velocibid/velocibid/internal/migration"
	"github.com/velocibid/velocibid/internal/server"
	"github.com/velocibid/velocibid/pkg/db"
	"github.com/velocibid/velocibid/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(registerSnowflake),
		log.Module,
		db.Module,
		server.Module,
		migration.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
