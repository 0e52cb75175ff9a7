package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:dashboard_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&propertydomain.Property{},
		&tenantdomain.Tenant{},
		&tenancydomain.Tenancy{},
		&rentdomain.RentRecord{},
		&auditdomain.AuditLog{},
	))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedPortfolio(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := day(2024, time.May, 1)

	properties := []propertydomain.Property{
		{ID: 1, Slug: "oak", Address: "123 Oak Street", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: 2, Slug: "maple", Address: "456 Maple Avenue", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: 3, Slug: "pine", Address: "789 Pine Road", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: 4, Slug: "elm", Address: "321 Elm Boulevard", IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, db.Create(&properties).Error)
	require.NoError(t, db.Model(&propertydomain.Property{}).Where("id = ?", 4).Update("is_active", false).Error)

	tenants := []tenantdomain.Tenant{
		{ID: 11, Name: "John Smith", CreatedAt: now, UpdatedAt: now},
		{ID: 12, Name: "Sarah Johnson", CreatedAt: now, UpdatedAt: now},
		{ID: 13, Name: "Michael Brown", CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, db.Create(&tenants).Error)

	tenancies := []tenancydomain.Tenancy{
		{ID: 21, PropertyID: 1, TenantID: 11, StartDate: day(2023, time.December, 1), MonthlyRent: decimal.NewFromInt(10000), Status: tenancydomain.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: 22, PropertyID: 2, TenantID: 12, StartDate: day(2023, time.December, 1), MonthlyRent: decimal.NewFromInt(5000), Status: tenancydomain.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: 23, PropertyID: 4, TenantID: 13, StartDate: day(2023, time.June, 1), MonthlyRent: decimal.NewFromInt(8000), Status: tenancydomain.StatusTerminated, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, db.Create(&tenancies).Error)

	rec := func(id, tenancy snowflake.ID, period time.Time, due, paid int64, status rentdomain.Status) rentdomain.RentRecord {
		return rentdomain.RentRecord{
			ID:          id,
			TenancyID:   tenancy,
			PeriodStart: period,
			AmountDue:   decimal.NewFromInt(due),
			AmountPaid:  decimal.NewFromInt(paid),
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	records := []rentdomain.RentRecord{
		rec(31, 21, day(2024, time.February, 1), 10000, 10000, rentdomain.StatusPaid),
		rec(32, 21, day(2024, time.March, 1), 10000, 0, rentdomain.StatusPending),
		rec(33, 21, day(2024, time.April, 1), 10000, 4000, rentdomain.StatusPartial),
		rec(34, 21, day(2024, time.May, 1), 10000, 0, rentdomain.StatusPending),
		rec(35, 22, day(2024, time.January, 1), 5000, 0, rentdomain.StatusPending),
	}
	require.NoError(t, db.Create(&records).Error)
}

func TestSummary(t *testing.T) {
	db := setupTestDB(t)
	seedPortfolio(t, db)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, time.May, 10, 15, 0, 0, 0, time.UTC)),
	})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, day(2024, time.May, 10), summary.AsOf)
	assert.Equal(t, "INR", summary.Currency)
	assert.EqualValues(t, 3, summary.ActiveProperties)
	assert.EqualValues(t, 2, summary.OccupiedProperties)
	assert.EqualValues(t, 1, summary.VacantProperties)
	assert.EqualValues(t, 3, summary.Tenants)
	assert.EqualValues(t, 2, summary.ActiveTenancies)
	assert.EqualValues(t, 3, summary.PendingRecords)
	assert.EqualValues(t, 1, summary.PartialRecords)
	assert.True(t, decimal.NewFromInt(31000).Equal(summary.TotalOutstanding), summary.TotalOutstanding.String())

	require.Len(t, summary.Aging, 4)
	expected := []struct {
		label  string
		count  int64
		amount int64
	}{
		{label: "0-30", count: 1, amount: 10000},
		{label: "31-60", count: 1, amount: 6000},
		{label: "61-90", count: 1, amount: 10000},
		{label: "90+", count: 1, amount: 5000},
	}
	for i, want := range expected {
		t.Run(want.label, func(t *testing.T) {
			got := summary.Aging[i]
			assert.Equal(t, want.label, got.Label)
			assert.Equal(t, want.count, got.Count)
			assert.True(t, decimal.NewFromInt(want.amount).Equal(got.Amount), got.Amount.String())
		})
	}
}

func TestSummaryEmpty(t *testing.T) {
	svc := NewService(Params{
		DB:    setupTestDB(t),
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(day(2024, time.May, 10)),
	})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.ActiveProperties)
	assert.True(t, summary.TotalOutstanding.IsZero())
	for _, bucket := range summary.Aging {
		assert.Zero(t, bucket.Count)
	}
}

func TestListActivity(t *testing.T) {
	db := setupTestDB(t)
	at := day(2024, time.May, 2)
	target := "32"
	entries := []auditdomain.AuditLog{
		{ID: 1, ActorType: "user", Action: "tenancy.create", TargetType: "tenancy", Metadata: datatypes.JSONMap{"start_date": "2024-01-15"}, CreatedAt: at},
		{ID: 2, ActorType: "user", Action: "rent_record.mark_paid", TargetType: "rent_record", TargetID: &target, Metadata: datatypes.JSONMap{"period_start": "2024-03-01", "amount_paid": "10000.00"}, CreatedAt: at.Add(time.Hour)},
		{ID: 3, ActorType: "user", Action: "tenant.update", TargetType: "tenant", CreatedAt: at.Add(2 * time.Hour)},
	}
	require.NoError(t, db.Create(&entries).Error)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), Clock: clock.NewFakeClock(at)})
	resp, err := svc.ListActivity(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, resp.Activity, 2)
	assert.Equal(t, "Rent for Mar 2024 paid in full (10000.00)", resp.Activity[0].Message)
	assert.Equal(t, "Tenancy started on 2024-01-15", resp.Activity[1].Message)
}

func TestBucketIndex(t *testing.T) {
	thirty := 30
	buckets := []config.AgingBucket{
		{Label: "current", MinDays: 0, MaxDays: &thirty},
		{Label: "late", MinDays: 31},
	}

	cases := []struct {
		days int
		want int
	}{
		{days: -1, want: -1},
		{days: 0, want: 0},
		{days: 30, want: 0},
		{days: 31, want: 1},
		{days: 400, want: 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, bucketIndex(buckets, tc.days), "days=%d", tc.days)
	}
}
