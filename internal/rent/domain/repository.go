package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PaymentStore is the persistence boundary of the schedule engine.
type PaymentStore interface {
	Find(ctx context.Context, db *gorm.DB, tenancyID snowflake.ID, filter RecordFilter) ([]RentRecord, error)
	InsertMany(ctx context.Context, db *gorm.DB, records []RentRecord) error
	DeleteMany(ctx context.Context, db *gorm.DB, tenancyID snowflake.ID, filter RecordFilter) error
}

// Repository adds single-record payment updates on top of PaymentStore.
type Repository interface {
	PaymentStore
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RentRecord, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, record *RentRecord) error
}
