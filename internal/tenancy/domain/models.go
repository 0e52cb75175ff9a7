package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusTerminated:
		return true
	}
	return false
}

// Tenancy binds a tenant to a property for a rent term. StartDate and
// EndDate are civil dates stored at midnight UTC.
type Tenancy struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	PropertyID    snowflake.ID    `gorm:"not null;index" json:"property_id"`
	TenantID      snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	StartDate     time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate       *time.Time      `gorm:"type:date" json:"end_date,omitempty"`
	MonthlyRent   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"monthly_rent"`
	AdvanceAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"advance_amount"`
	Status        Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	Notes         string          `gorm:"type:text;not null;default:''" json:"notes"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Tenancy) TableName() string { return "tenancies" }

// Terms returns the fields that drive the rent schedule.
func (t Tenancy) Terms() rentdomain.Terms {
	return rentdomain.Terms{
		TenancyID:   t.ID,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		MonthlyRent: t.MonthlyRent,
	}
}
