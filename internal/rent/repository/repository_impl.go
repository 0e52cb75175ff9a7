package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/rent/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 100

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenancyID snowflake.ID, filter domain.RecordFilter) ([]domain.RentRecord, error) {
	var records []domain.RentRecord
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.RentRecord{}).Where("tenancy_id = ?", tenancyID), filter)
	if err := stmt.Order("period_start asc").Find(&records).Error; err != nil {
		return nil, domain.NewStoreError("find", err)
	}
	return records, nil
}

func (r *repo) InsertMany(ctx context.Context, db *gorm.DB, records []domain.RentRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error; err != nil {
		return domain.NewStoreError("insert_many", err)
	}
	return nil
}

func (r *repo) DeleteMany(ctx context.Context, db *gorm.DB, tenancyID snowflake.ID, filter domain.RecordFilter) error {
	stmt := applyFilter(db.WithContext(ctx).Where("tenancy_id = ?", tenancyID), filter)
	if err := stmt.Delete(&domain.RentRecord{}).Error; err != nil {
		return domain.NewStoreError("delete_many", err)
	}
	return nil
}

// LockByID reads a record for update. Dialects without row locks fall back to
// a plain read inside the caller's transaction.
func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RentRecord, error) {
	var record domain.RentRecord
	stmt := db.WithContext(ctx).Model(&domain.RentRecord{}).Where("id = ?", id)
	if db.Dialector != nil && db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStoreError("lock_by_id", err)
	}
	return &record, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, record *domain.RentRecord) error {
	if record == nil {
		return nil
	}
	err := db.WithContext(ctx).Exec(
		`UPDATE rent_records
		 SET status = ?, amount_paid = ?, paid_date = ?, remarks = ?, updated_at = ?
		 WHERE id = ?`,
		record.Status,
		record.AmountPaid,
		record.PaidDate,
		record.Remarks,
		record.UpdatedAt,
		record.ID,
	).Error
	if err != nil {
		return domain.NewStoreError("update_payment", err)
	}
	return nil
}

func applyFilter(stmt *gorm.DB, filter domain.RecordFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if len(filter.PeriodStarts) > 0 {
		stmt = stmt.Where("period_start IN ?", filter.PeriodStarts)
	}
	if filter.PeriodFrom != nil {
		stmt = stmt.Where("period_start >= ?", *filter.PeriodFrom)
	}
	if filter.PeriodTo != nil {
		stmt = stmt.Where("period_start <= ?", *filter.PeriodTo)
	}
	return stmt
}
