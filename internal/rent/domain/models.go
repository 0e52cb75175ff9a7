package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Protected reports whether a record carries payment history and must never
// be deleted or regenerated by reconciliation.
func (s Status) Protected() bool {
	return s != StatusPending
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusPaid:
		return true
	}
	return false
}

// RentRecord is the rent obligation of one tenancy for one billing period.
type RentRecord struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenancyID   snowflake.ID    `gorm:"not null;uniqueIndex:ux_rent_records_tenancy_period,priority:1" json:"tenancy_id"`
	PeriodStart time.Time       `gorm:"type:date;not null;uniqueIndex:ux_rent_records_tenancy_period,priority:2" json:"period_start"`
	AmountDue   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount_due"`
	AmountPaid  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"amount_paid"`
	Status      Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	PaidDate    *time.Time      `gorm:"type:date" json:"paid_date,omitempty"`
	Remarks     string          `gorm:"type:text;not null;default:''" json:"remarks"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (RentRecord) TableName() string { return "rent_records" }

func (r RentRecord) Key() RecordKey {
	return RecordKey{TenancyID: r.TenancyID, PeriodStart: r.PeriodStart}
}

// Outstanding is the unpaid remainder, never negative.
func (r RentRecord) Outstanding() decimal.Decimal {
	remaining := r.AmountDue.Sub(r.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// RecordKey identifies a rent record by its natural key.
type RecordKey struct {
	TenancyID   snowflake.ID `json:"tenancy_id"`
	PeriodStart time.Time    `json:"period_start"`
}

// Draft is a rent record computed by the schedule engine and not yet stored.
type Draft struct {
	TenancyID   snowflake.ID    `json:"tenancy_id"`
	PeriodStart time.Time       `json:"period_start"`
	DueDate     time.Time       `json:"due_date"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	Status      Status          `json:"status"`
	PaidDate    *time.Time      `json:"paid_date"`
	Remarks     string          `json:"remarks"`
}

// Record materializes the draft with a fresh id.
func (d Draft) Record(id snowflake.ID, now time.Time) RentRecord {
	return RentRecord{
		ID:          id,
		TenancyID:   d.TenancyID,
		PeriodStart: d.PeriodStart,
		AmountDue:   d.AmountDue,
		AmountPaid:  decimal.Zero,
		Status:      d.Status,
		PaidDate:    d.PaidDate,
		Remarks:     d.Remarks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Plan is the outcome of reconciling a tenancy schedule. The caller deletes
// ToDelete and then inserts ToInsert.
type Plan struct {
	ToDelete []RecordKey `json:"to_delete"`
	ToInsert []Draft     `json:"to_insert"`
}

func (p Plan) Empty() bool {
	return len(p.ToDelete) == 0 && len(p.ToInsert) == 0
}

// Terms are the tenancy fields that drive schedule generation.
type Terms struct {
	TenancyID   snowflake.ID
	StartDate   time.Time
	EndDate     *time.Time
	MonthlyRent decimal.Decimal
}

// RecordFilter narrows PaymentStore reads and deletes. Zero values match all.
type RecordFilter struct {
	Statuses     []Status
	PeriodStarts []time.Time
	PeriodFrom   *time.Time
	PeriodTo     *time.Time
}
