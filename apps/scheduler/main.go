package main

import (
	"context"

	"github.com/smallbiznis/rentbook/internal/audit"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/idgen"
	"github.com/smallbiznis/rentbook/internal/observability"
	"github.com/smallbiznis/rentbook/internal/property"
	"github.com/smallbiznis/rentbook/internal/rent"
	"github.com/smallbiznis/rentbook/internal/scheduler"
	"github.com/smallbiznis/rentbook/internal/tenancy"
	"github.com/smallbiznis/rentbook/internal/tenant"
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

		// Domain services required by the accrual job
		audit.Module,
		property.Module,
		tenant.Module,
		rent.Module,
		tenancy.Module,

		// No HTTP server in this binary.
		scheduler.Components,
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
