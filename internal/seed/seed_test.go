package seed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rentbook/internal/clock"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	propertyrepository "github.com/smallbiznis/rentbook/internal/property/repository"
	propertyservice "github.com/smallbiznis/rentbook/internal/property/service"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
	rentrepository "github.com/smallbiznis/rentbook/internal/rent/repository"
	rentservice "github.com/smallbiznis/rentbook/internal/rent/service"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
	tenancyrepository "github.com/smallbiznis/rentbook/internal/tenancy/repository"
	tenancyservice "github.com/smallbiznis/rentbook/internal/tenancy/service"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/rentbook/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/rentbook/internal/tenant/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSeeder(t *testing.T) (*Seeder, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:seed_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&propertydomain.Property{},
		&tenantdomain.Tenant{},
		&tenancydomain.Tenancy{},
		&rentdomain.RentRecord{},
	))

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, time.April, 20, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	propertyRepo := propertyrepository.Provide()
	propertySvc := propertyservice.New(propertyservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: propertyRepo})
	tenantSvc := tenantservice.New(tenantservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: tenantrepository.Provide()})
	rentSvc := rentservice.New(rentservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: rentrepository.Provide()})
	tenancySvc := tenancyservice.New(tenancyservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        tenancyrepository.Provide(),
		PropertySvc: propertySvc,
		TenantSvc:   tenantSvc,
		RentSvc:     rentSvc,
	})

	return New(Params{
		DB:           db,
		Log:          log,
		PropertyRepo: propertyRepo,
		PropertySvc:  propertySvc,
		TenantSvc:    tenantSvc,
		TenancySvc:   tenancySvc,
	}), db
}

func TestRunSeedsSamplePortfolio(t *testing.T) {
	seeder, db := newSeeder(t)

	result, err := seeder.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Properties: 4, Tenants: 4, Tenancies: 3, Records: 28}, result)

	var counts struct {
		Active int64
		Vacant int64
	}
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM tenancies WHERE status = 'active'`).Scan(&counts.Active).Error)
	assert.EqualValues(t, 3, counts.Active)
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM properties p WHERE NOT EXISTS (SELECT 1 FROM tenancies t WHERE t.property_id = p.id)`,
	).Scan(&counts.Vacant).Error)
	assert.EqualValues(t, 1, counts.Vacant)

	var first rentdomain.RentRecord
	require.NoError(t, db.Order("period_start ASC").First(&first).Error)
	assert.Equal(t, time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC), first.PeriodStart.UTC())
}

func TestRunIsIdempotent(t *testing.T) {
	seeder, db := newSeeder(t)
	ctx := context.Background()

	_, err := seeder.Run(ctx)
	require.NoError(t, err)

	again, err := seeder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, again)

	var tenants, records int64
	require.NoError(t, db.Model(&tenantdomain.Tenant{}).Count(&tenants).Error)
	require.NoError(t, db.Model(&rentdomain.RentRecord{}).Count(&records).Error)
	assert.EqualValues(t, 4, tenants)
	assert.EqualValues(t, 28, records)
}
