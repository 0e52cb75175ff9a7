package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/rent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:rent_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.RentRecord{}))
	return db
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock, mockDB
}

func record(id, tenancyID snowflake.ID, period time.Time, status domain.Status) domain.RentRecord {
	now := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	return domain.RentRecord{
		ID:          id,
		TenancyID:   tenancyID,
		PeriodStart: period,
		AmountDue:   decimal.NewFromInt(10000),
		AmountPaid:  decimal.Zero,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func month(m time.Month) time.Time {
	return time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestInsertFindDelete(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	r := Provide()

	tenancyID := snowflake.ID(10)
	records := []domain.RentRecord{
		record(1, tenancyID, month(time.February), domain.StatusPaid),
		record(2, tenancyID, month(time.March), domain.StatusPending),
		record(3, tenancyID, month(time.April), domain.StatusPending),
		record(4, snowflake.ID(11), month(time.March), domain.StatusPending),
	}
	require.NoError(t, r.InsertMany(ctx, db, records))

	all, err := r.Find(ctx, db, tenancyID, domain.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, month(time.February), all[0].PeriodStart.UTC())
	assert.True(t, decimal.NewFromInt(10000).Equal(all[0].AmountDue))

	pending, err := r.Find(ctx, db, tenancyID, domain.RecordFilter{Statuses: []domain.Status{domain.StatusPending}})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	from := month(time.March)
	ranged, err := r.Find(ctx, db, tenancyID, domain.RecordFilter{PeriodFrom: &from})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	require.NoError(t, r.DeleteMany(ctx, db, tenancyID, domain.RecordFilter{
		Statuses:     []domain.Status{domain.StatusPending},
		PeriodStarts: []time.Time{month(time.February), month(time.March)},
	}))

	left, err := r.Find(ctx, db, tenancyID, domain.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, domain.StatusPaid, left[0].Status)
	assert.Equal(t, month(time.April), left[1].PeriodStart.UTC())

	other, err := r.Find(ctx, db, snowflake.ID(11), domain.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestInsertManyRejectsDuplicatePeriod(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	r := Provide()

	require.NoError(t, r.InsertMany(ctx, db, []domain.RentRecord{record(1, 10, month(time.March), domain.StatusPending)}))
	err := r.InsertMany(ctx, db, []domain.RentRecord{record(2, 10, month(time.March), domain.StatusPending)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestInsertManyEmptyIsNoop(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	require.NoError(t, Provide().InsertMany(context.Background(), db, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockByIDAndUpdatePayment(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	r := Provide()

	require.NoError(t, r.InsertMany(ctx, db, []domain.RentRecord{record(5, 10, month(time.March), domain.StatusPending)}))

	missing, err := r.LockByID(ctx, db, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	found, err := r.LockByID(ctx, db, 5)
	require.NoError(t, err)
	require.NotNil(t, found)

	paidOn := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	found.Status = domain.StatusPaid
	found.AmountPaid = found.AmountDue
	found.PaidDate = &paidOn
	found.Remarks = "Paid: 10000.00 | Remaining: 0.00"
	found.UpdatedAt = paidOn
	require.NoError(t, r.UpdatePayment(ctx, db, found))

	reloaded, err := r.LockByID(ctx, db, 5)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, domain.StatusPaid, reloaded.Status)
	assert.True(t, decimal.NewFromInt(10000).Equal(reloaded.AmountPaid))
	require.NotNil(t, reloaded.PaidDate)
	assert.Equal(t, paidOn, reloaded.PaidDate.UTC())
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")

	cases := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		call   func(db *gorm.DB) error
		op     string
	}{
		{
			name: "find",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "rent_records" WHERE tenancy_id = \$1`).WillReturnError(cause)
			},
			call: func(db *gorm.DB) error {
				_, err := Provide().Find(ctx, db, 10, domain.RecordFilter{})
				return err
			},
			op: "find",
		},
		{
			name: "insert many",
			expect: func(mock sqlmock.Sqlmock) {
				mock.MatchExpectationsInOrder(false)
				mock.ExpectQuery(`INSERT INTO "rent_records"`).WillReturnError(cause)
				mock.ExpectExec(`INSERT INTO "rent_records"`).WillReturnError(cause)
			},
			call: func(db *gorm.DB) error {
				return Provide().InsertMany(ctx, db, []domain.RentRecord{record(1, 10, month(time.March), domain.StatusPending)})
			},
			op: "insert_many",
		},
		{
			name: "delete many",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM "rent_records" WHERE tenancy_id = \$1`).WillReturnError(cause)
			},
			call: func(db *gorm.DB) error {
				return Provide().DeleteMany(ctx, db, 10, domain.RecordFilter{})
			},
			op: "delete_many",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, mockDB := newMockDB(t)
			defer mockDB.Close()
			tc.expect(mock)

			err := tc.call(db)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
			assert.True(t, errors.Is(err, cause))

			var storeErr *domain.StoreError
			require.True(t, errors.As(err, &storeErr))
			assert.Equal(t, tc.op, storeErr.Op)
		})
	}
}
