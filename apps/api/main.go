package main

import (
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/idgen"
	"github.com/smallbiznis/rentbook/internal/observability"
	"github.com/smallbiznis/rentbook/internal/server"
	"github.com/smallbiznis/rentbook/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		clock.Module,

		// Migrations run through rentctl; accrual runs in apps/scheduler.
		server.Module,
	)
	app.Run()
}
