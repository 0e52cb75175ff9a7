package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/clock"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	propertyrepository "github.com/smallbiznis/rentbook/internal/property/repository"
	propertyservice "github.com/smallbiznis/rentbook/internal/property/service"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
	rentrepository "github.com/smallbiznis/rentbook/internal/rent/repository"
	rentservice "github.com/smallbiznis/rentbook/internal/rent/service"
	"github.com/smallbiznis/rentbook/internal/tenancy/domain"
	"github.com/smallbiznis/rentbook/internal/tenancy/repository"
	"github.com/smallbiznis/rentbook/internal/tenancy/service"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/rentbook/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/rentbook/internal/tenant/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	clock       *clock.FakeClock
	propertySvc propertydomain.Service
	tenantSvc   tenantdomain.Service
	rentSvc     rentdomain.Service
	svc         domain.Service
}

func newFixture(t *testing.T, now time.Time) fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:tenancy_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&propertydomain.Property{},
		&tenantdomain.Tenant{},
		&domain.Tenancy{},
		&rentdomain.RentRecord{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)
	log := zap.NewNop()

	propertySvc := propertyservice.New(propertyservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: propertyrepository.Provide(),
	})
	tenantSvc := tenantservice.New(tenantservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: tenantrepository.Provide(),
	})
	rentSvc := rentservice.New(rentservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: rentrepository.Provide(),
	})
	svc := service.New(service.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		PropertySvc: propertySvc,
		TenantSvc:   tenantSvc,
		RentSvc:     rentSvc,
	})
	return fixture{clock: clk, propertySvc: propertySvc, tenantSvc: tenantSvc, rentSvc: rentSvc, svc: svc}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f fixture) seed(t *testing.T, address, tenant string) (string, string) {
	t.Helper()
	ctx := context.Background()

	property, err := f.propertySvc.Create(ctx, propertydomain.CreatePropertyRequest{Address: address})
	require.NoError(t, err)
	person, err := f.tenantSvc.Create(ctx, tenantdomain.CreateTenantRequest{Name: tenant})
	require.NoError(t, err)
	return property.ID.String(), person.ID.String()
}

func (f fixture) create(t *testing.T, propertyID, tenantID string, start time.Time, rent int64) domain.CreateTenancyResponse {
	t.Helper()

	resp, err := f.svc.Create(context.Background(), domain.CreateTenancyRequest{
		PropertyID:    propertyID,
		TenantID:      tenantID,
		StartDate:     start,
		MonthlyRent:   decimal.NewFromInt(rent),
		AdvanceAmount: decimal.NewFromInt(rent * 2),
	})
	require.NoError(t, err)
	return resp
}

func periods(records []rentdomain.RentRecord) []time.Time {
	out := make([]time.Time, 0, len(records))
	for _, r := range records {
		out = append(out, r.PeriodStart.UTC())
	}
	return out
}

func TestCreateGeneratesInitialSchedule(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.April, 20, 9, 0, 0, 0, time.UTC))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")

	resp := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)
	assert.Equal(t, domain.StatusActive, resp.Tenancy.Status)
	assert.Equal(t, []time.Time{
		date(2024, time.February, 1),
		date(2024, time.March, 1),
		date(2024, time.April, 1),
	}, periods(resp.Records))

	stored, err := f.svc.ListRecords(context.Background(), resp.Tenancy.ID.String(), "")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestCreateRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))
	propertyID, tenantID := f.seed(t, "456 Maple Avenue, Suburb", "Sarah Johnson")
	f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	inactiveID, _ := f.seed(t, "789 Pine Road, City Center", "Michael Brown")
	inactive := false
	_, err := f.propertySvc.Update(ctx, propertydomain.UpdatePropertyRequest{ID: inactiveID, IsActive: &inactive})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  domain.CreateTenancyRequest
		err  error
	}{
		{
			name: "occupied property",
			req:  domain.CreateTenancyRequest{PropertyID: propertyID, TenantID: tenantID, StartDate: date(2024, time.March, 1), MonthlyRent: decimal.NewFromInt(1)},
			err:  domain.ErrPropertyOccupied,
		},
		{
			name: "inactive property",
			req:  domain.CreateTenancyRequest{PropertyID: inactiveID, TenantID: tenantID, StartDate: date(2024, time.March, 1), MonthlyRent: decimal.NewFromInt(1)},
			err:  domain.ErrPropertyInactive,
		},
		{
			name: "unknown property",
			req:  domain.CreateTenancyRequest{PropertyID: "42", TenantID: tenantID, StartDate: date(2024, time.March, 1), MonthlyRent: decimal.NewFromInt(1)},
			err:  domain.ErrInvalidProperty,
		},
		{
			name: "unknown tenant",
			req:  domain.CreateTenancyRequest{PropertyID: propertyID, TenantID: "42", StartDate: date(2024, time.March, 1), MonthlyRent: decimal.NewFromInt(1)},
			err:  domain.ErrInvalidTenant,
		},
		{
			name: "missing start date",
			req:  domain.CreateTenancyRequest{PropertyID: propertyID, TenantID: tenantID, MonthlyRent: decimal.NewFromInt(1)},
			err:  domain.ErrInvalidStartDate,
		},
		{
			name: "negative rent",
			req:  domain.CreateTenancyRequest{PropertyID: propertyID, TenantID: tenantID, StartDate: date(2024, time.March, 1), MonthlyRent: decimal.NewFromInt(-5)},
			err:  domain.ErrInvalidMonthlyRent,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestUpdateRentReconcilesAndKeepsPaidRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	created := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	_, err := f.rentSvc.MarkPaid(ctx, rentdomain.MarkPaidRequest{ID: created.Records[0].ID.String()})
	require.NoError(t, err)

	rent := decimal.NewFromInt(12000)
	resp, err := f.svc.Update(ctx, domain.UpdateTenancyRequest{ID: created.Tenancy.ID.String(), MonthlyRent: &rent})
	require.NoError(t, err)
	require.NotNil(t, resp.Plan)
	assert.Len(t, resp.Plan.ToDelete, 2)
	assert.Len(t, resp.Plan.ToInsert, 2)

	records, err := f.svc.ListRecords(ctx, created.Tenancy.ID.String(), "")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, rentdomain.StatusPaid, records[0].Status)
	assert.True(t, decimal.NewFromInt(10000).Equal(records[0].AmountDue))
	assert.True(t, rent.Equal(records[1].AmountDue))
	assert.True(t, rent.Equal(records[2].AmountDue))
}

func TestUpdateNotesLeavesScheduleAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	created := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	notes := "parking spot 4"
	resp, err := f.svc.Update(ctx, domain.UpdateTenancyRequest{ID: created.Tenancy.ID.String(), Notes: &notes})
	require.NoError(t, err)
	assert.Nil(t, resp.Plan)
	assert.Equal(t, notes, resp.Tenancy.Notes)

	records, err := f.svc.ListRecords(ctx, created.Tenancy.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, periods(created.Records), periods(records))
	for i := range records {
		assert.Equal(t, created.Records[i].ID, records[i].ID)
	}
}

func TestEndDropsPendingRecordsAfterEndDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	created := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	end := date(2024, time.March, 20)
	ended, err := f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String(), EndDate: &end, Status: "terminated"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, ended.Status)
	require.NotNil(t, ended.EndDate)

	records, err := f.svc.ListRecords(ctx, created.Tenancy.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, time.February, 1), date(2024, time.March, 1)}, periods(records))

	_, err = f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotActive)
}

func TestEndValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	created := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	before := date(2023, time.December, 1)
	_, err := f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String(), EndDate: &before})
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	future := date(2024, time.September, 30)
	_, err = f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String(), EndDate: &future})
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	_, err = f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String(), Status: "active"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.End(ctx, domain.EndTenancyRequest{ID: "99"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEndedPropertyCanBeLetAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	created := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	_, err := f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String()})
	require.NoError(t, err)

	next := f.create(t, propertyID, tenantID, date(2024, time.March, 20), 11000)
	assert.Len(t, next.Records, 1)

	active, err := f.svc.List(ctx, domain.ListTenancyRequest{PropertyID: propertyID, Status: "active"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, next.Tenancy.ID, active[0].ID)

	all, err := f.svc.List(ctx, domain.ListTenancyRequest{PropertyID: propertyID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.List(ctx, domain.ListTenancyRequest{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	created := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	plan, err := f.svc.Sync(ctx, created.Tenancy.ID.String())
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestAccrueDueCatchesUpActiveTenancies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.April, 20))

	p1, t1 := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	p2, t2 := f.seed(t, "456 Maple Avenue, Suburb", "Sarah Johnson")
	p3, t3 := f.seed(t, "789 Pine Road, City Center", "Michael Brown")
	first := f.create(t, p1, t1, date(2024, time.January, 15), 10000)
	second := f.create(t, p2, t2, date(2024, time.March, 1), 18000)
	ended := f.create(t, p3, t3, date(2024, time.January, 10), 8000)
	_, err := f.svc.End(ctx, domain.EndTenancyRequest{ID: ended.Tenancy.ID.String()})
	require.NoError(t, err)

	f.clock.Set(date(2024, time.June, 20))
	result, err := f.svc.AccrueDue(ctx, f.clock.Now(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Tenancies)
	assert.Equal(t, 4, result.Records)
	assert.Zero(t, result.Failed)

	records, err := f.svc.ListRecords(ctx, first.Tenancy.ID.String(), "")
	require.NoError(t, err)
	assert.Len(t, records, 5)

	records, err = f.svc.ListRecords(ctx, second.Tenancy.ID.String(), "")
	require.NoError(t, err)
	assert.Len(t, records, 3)

	again, err := f.svc.AccrueDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, again.Records)
}

func TestFutureEndDateKeepsTenancyAccruing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, time.May, 10))
	propertyID, tenantID := f.seed(t, "123 Oak Street, Downtown", "John Smith")
	created := f.create(t, propertyID, tenantID, date(2024, time.January, 15), 10000)

	future := date(2024, time.September, 30)
	_, err := f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String(), EndDate: &future})
	require.ErrorIs(t, err, domain.ErrInvalidEndDate)

	got, err := f.svc.GetByID(ctx, created.Tenancy.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Nil(t, got.EndDate)

	f.clock.Set(date(2024, time.October, 20))
	result, err := f.svc.AccrueDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tenancies)
	assert.Equal(t, 6, result.Records)

	records, err := f.svc.ListRecords(ctx, created.Tenancy.ID.String(), "")
	require.NoError(t, err)
	assert.Len(t, records, 9)

	// Ending on the real last day stops accrual from then on.
	end := date(2024, time.October, 20)
	_, err = f.svc.End(ctx, domain.EndTenancyRequest{ID: created.Tenancy.ID.String(), EndDate: &end})
	require.NoError(t, err)

	f.clock.Set(date(2024, time.December, 20))
	after, err := f.svc.AccrueDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, after.Records)
}
