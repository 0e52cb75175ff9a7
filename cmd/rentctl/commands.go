package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/audit"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/idgen"
	"github.com/smallbiznis/rentbook/internal/migration"
	"github.com/smallbiznis/rentbook/internal/observability"
	obscontext "github.com/smallbiznis/rentbook/internal/observability/context"
	"github.com/smallbiznis/rentbook/internal/property"
	"github.com/smallbiznis/rentbook/internal/rent"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
	rentservice "github.com/smallbiznis/rentbook/internal/rent/service"
	"github.com/smallbiznis/rentbook/internal/seed"
	"github.com/smallbiznis/rentbook/internal/tenancy"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
	"github.com/smallbiznis/rentbook/internal/tenant"
	"github.com/smallbiznis/rentbook/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rentctl",
		Short:         "Operate the rentbook database and rent schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		migrateCmd(),
		accrueCmd(),
		scheduleCmd(),
		seedCmd(),
	)
	return rootCmd
}

// withApp starts a short-lived fx app, fills targets and runs fn.
func withApp(ctx context.Context, fn func() error, targets ...any) error {
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		clock.Module,
		audit.Module,
		property.Module,
		tenant.Module,
		rent.Module,
		tenancy.Module,
		seed.Module,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			return withApp(cmd.Context(), func() error {
				if err := migration.Migrate(conn); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", conn.Dialector.Name())
				return nil
			}, &conn)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample properties, tenants and tenancies",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seeder *seed.Seeder
			return withApp(cmd.Context(), func() error {
				result, err := seeder.Run(actorContext(cmd.Context()))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d properties, %d tenants, %d tenancies, %d rent records\n",
					result.Properties, result.Tenants, result.Tenancies, result.Records)
				return nil
			}, &seeder)
		},
	}
}

func accrueCmd() *cobra.Command {
	var asOfFlag string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Insert rent records that have become due for every active tenancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf := time.Now().UTC()
			if asOfFlag != "" {
				parsed, err := time.Parse(dateLayout, asOfFlag)
				if err != nil {
					return fmt.Errorf("--as-of: %w", rentdomain.ErrInvalidAsOf)
				}
				asOf = parsed
			}

			var tenancySvc tenancydomain.Service
			return withApp(cmd.Context(), func() error {
				result, err := tenancySvc.AccrueDue(actorContext(cmd.Context()), asOf, batchSize)
				fmt.Fprintf(cmd.OutOrStdout(), "as of %s: %d tenancies scanned, %d records inserted, %d failed\n",
					asOf.Format(dateLayout), result.Tenancies, result.Records, result.Failed)
				return err
			}, &tenancySvc)
		},
	}
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "accrue as of this date (YYYY-MM-DD), default today")
	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "tenancies loaded per batch")
	return cmd
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect rent schedules",
	}
	cmd.AddCommand(schedulePreviewCmd())
	return cmd
}

func schedulePreviewCmd() *cobra.Command {
	var startFlag, rentFlag, endFlag, asOfFlag string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the due periods for a tenancy without saving anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parsePreviewFlags(startFlag, rentFlag, endFlag, asOfFlag)
			if err != nil {
				return err
			}

			policy, err := config.NewRentPolicyHolder()
			if err != nil {
				return err
			}
			svc := rentservice.New(rentservice.Params{
				Log:    zap.NewNop(),
				Clock:  clock.NewSystemClock(),
				Policy: policy,
			})
			resp, err := svc.Preview(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writePreview(cmd.OutOrStdout(), policy.Get().Currency, resp)
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "tenancy start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&rentFlag, "rent", "", "monthly rent")
	cmd.Flags().StringVar(&endFlag, "end", "", "tenancy end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "preview as of this date (YYYY-MM-DD), default today")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("rent")
	return cmd
}

func parsePreviewFlags(start, rent, end, asOf string) (rentdomain.PreviewRequest, error) {
	var req rentdomain.PreviewRequest

	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return req, fmt.Errorf("--start: %w", rentdomain.ErrInvalidStartDate)
	}
	monthlyRent, err := decimal.NewFromString(rent)
	if err != nil {
		return req, fmt.Errorf("--rent: %w", rentdomain.ErrInvalidMonthlyRent)
	}
	req.StartDate = startDate
	req.MonthlyRent = monthlyRent

	if end != "" {
		endDate, err := time.Parse(dateLayout, end)
		if err != nil {
			return req, fmt.Errorf("--end: %w", rentdomain.ErrInvalidScheduleInput)
		}
		req.EndDate = &endDate
	}
	if asOf != "" {
		asOfDate, err := time.Parse(dateLayout, asOf)
		if err != nil {
			return req, fmt.Errorf("--as-of: %w", rentdomain.ErrInvalidAsOf)
		}
		req.AsOf = &asOfDate
	}
	return req, nil
}

func writePreview(out io.Writer, currency string, resp rentdomain.PreviewResponse) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tDUE DATE\tAMOUNT")
	for _, period := range resp.Periods {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			period.PeriodStart.Format("Jan 2006"),
			period.DueDate.Format(dateLayout),
			period.AmountDue.StringFixed(2),
		)
	}
	fmt.Fprintf(w, "TOTAL\t%d periods\t%s %s\n", len(resp.Periods), resp.Total.StringFixed(2), currency)
	return w.Flush()
}

func actorContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return obscontext.WithActor(ctx, "system", "rentctl")
}
