package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListRecordsRequest struct {
	TenancyID string
	Status    string
}

type MarkPaidRequest struct {
	ID       string
	PaidDate *time.Time
	Remarks  string
}

type RecordPartialRequest struct {
	ID         string
	AmountPaid decimal.Decimal
	Remarks    string
}

type PreviewRequest struct {
	StartDate   time.Time
	MonthlyRent decimal.Decimal
	EndDate     *time.Time
	AsOf        *time.Time
}

type PreviewResponse struct {
	AsOf    time.Time       `json:"as_of"`
	Periods []Draft         `json:"periods"`
	Total   decimal.Decimal `json:"total"`
}

// Service owns rent record persistence. Methods taking a *gorm.DB run on that
// handle so callers can include them in their own transaction; nil means the
// service's default connection.
type Service interface {
	List(ctx context.Context, req ListRecordsRequest) ([]RentRecord, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (RentRecord, error)
	RecordPartial(ctx context.Context, req RecordPartialRequest) (RentRecord, error)
	Preview(ctx context.Context, req PreviewRequest) (PreviewResponse, error)

	GenerateInitial(ctx context.Context, db *gorm.DB, terms Terms) ([]RentRecord, error)
	Sync(ctx context.Context, db *gorm.DB, terms Terms) (Plan, error)
	Accrue(ctx context.Context, db *gorm.DB, terms Terms, asOf time.Time) (int, error)
}
