package main

import (
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/idgen"
	"github.com/smallbiznis/rentbook/internal/migration"
	"github.com/smallbiznis/rentbook/internal/observability"
	"github.com/smallbiznis/rentbook/internal/scheduler"
	"github.com/smallbiznis/rentbook/internal/seed"
	"github.com/smallbiznis/rentbook/internal/server"
	"github.com/smallbiznis/rentbook/pkg/db"
	"go.uber.org/fx"
)

// rentbook runs the API, migrations and the accrual scheduler in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		clock.Module,

		server.Module,
		seed.Module,
		migration.Module,
		scheduler.Module,
	)
	app.Run()
}
